// SPDX-License-Identifier: MIT
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	applog "eqviewer/internal/log"
	"eqviewer/internal/session"
)

// Endpoints holds the request paths of the remote services.
type Endpoints struct {
	Spectrum    string
	Spectrogram string
	Equalizer   string
	Save        string
	MusicAI     string
	HumanAI     string
}

// DefaultEndpoints are the paths served by the reference backend.
var DefaultEndpoints = Endpoints{
	Spectrum:    "/calculatefft",
	Spectrogram: "/spectrogram",
	Equalizer:   "/applyEqualizer",
	Save:        "/saveEQ",
	MusicAI:     "/MusicAi",
	HumanAI:     "/HumanAi",
}

// DefaultTimeout bounds a single remote call.
const DefaultTimeout = 120 * time.Second

// Client talks to the analysis, equalizer and AI backends over HTTP.
type Client struct {
	BaseURL   string
	AIBaseURL string
	Endpoints Endpoints
	HTTP      *http.Client

	timeout time.Duration
}

var (
	_ SpectrumService    = (*Client)(nil)
	_ SpectrogramService = (*Client)(nil)
	_ EqualizerService   = (*Client)(nil)
	_ AIService          = (*Client)(nil)
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAIBaseURL routes AI requests to a separate host.
func WithAIBaseURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.AIBaseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithEndpoints overrides the request paths. Empty fields keep defaults.
func WithEndpoints(e Endpoints) ClientOption {
	return func(c *Client) {
		c.Endpoints = mergeEndpoints(c.Endpoints, e)
	}
}

// WithHTTPClient replaces the underlying HTTP client. The client is copied,
// so a later WithTimeout never changes the caller's value.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.HTTP = hc
		}
	}
}

// WithTimeout sets the per-request timeout, regardless of option order.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	base := strings.TrimRight(baseURL, "/")
	c := &Client{
		BaseURL:   base,
		AIBaseURL: base,
		Endpoints: DefaultEndpoints,
		HTTP:      &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	hc := *c.HTTP
	if c.timeout > 0 {
		hc.Timeout = c.timeout
	}
	c.HTTP = &hc
	return c
}

func mergeEndpoints(base, override Endpoints) Endpoints {
	pick := func(a, b string) string {
		if b != "" {
			return b
		}
		return a
	}
	return Endpoints{
		Spectrum:    pick(base.Spectrum, override.Spectrum),
		Spectrogram: pick(base.Spectrogram, override.Spectrogram),
		Equalizer:   pick(base.Equalizer, override.Equalizer),
		Save:        pick(base.Save, override.Save),
		MusicAI:     pick(base.MusicAI, override.MusicAI),
		HumanAI:     pick(base.HumanAI, override.HumanAI),
	}
}

// --- Wire payloads ---

type analysisRequest struct {
	Samples []float64 `json:"samples"`
	Fs      int       `json:"fs"`
}

type equalizerRequest struct {
	Samples []float64      `json:"samples"`
	Fs      int            `json:"fs"`
	Sliders []session.Band `json:"sliders"`
}

type editResponse struct {
	Samples     []float64 `json:"samples"`
	SampleRate  int       `json:"sampleRate,omitempty"`
	Frequencies []float64 `json:"frequencies"`
	Magnitudes  []float64 `json:"magnitudes"`
}

type saveRequest struct {
	Samples    []float64 `json:"samples"`
	SampleRate int       `json:"sampleRate"`
	Mode       string    `json:"mode"`
}

type saveResponse struct {
	URL string `json:"url"`
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// remoteMessage extracts the server's message: a JSON "error" or "detail"
// field, else the raw body text.
func remoteMessage(status int, body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if eb.Error != "" {
			return eb.Error
		}
		if eb.Detail != "" {
			return eb.Detail
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return fmt.Sprintf("request failed with status %d", status)
}

// do sends req and returns the status and body.
func (c *Client) do(req *http.Request) (int, []byte, error) {
	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	applog.Debugf("ServiceClient: %s %s -> %d (%d bytes, %v)",
		req.Method, req.URL.Path, resp.StatusCode, len(body), time.Since(start))
	return resp.StatusCode, body, nil
}

func (c *Client) postJSON(ctx context.Context, url string, payload any) (int, []byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// --- Analysis ---

// Spectrum posts samples to the FFT endpoint.
func (c *Client) Spectrum(ctx context.Context, samples []float64, sampleRate int) (Spectrum, error) {
	status, body, err := c.postJSON(ctx, c.BaseURL+c.Endpoints.Spectrum, analysisRequest{samples, sampleRate})
	if err != nil {
		return Spectrum{}, fmt.Errorf("%w: spectrum: %v", ErrAnalysis, err)
	}
	if status != http.StatusOK {
		return Spectrum{}, fmt.Errorf("%w: spectrum: %s", ErrAnalysis, remoteMessage(status, body))
	}
	var out Spectrum
	if err := json.Unmarshal(body, &out); err != nil {
		return Spectrum{}, fmt.Errorf("%w: spectrum: malformed response: %v", ErrAnalysis, err)
	}
	return out, nil
}

// Spectrogram posts samples to the spectrogram endpoint.
func (c *Client) Spectrogram(ctx context.Context, samples []float64, sampleRate int) (Spectrogram, error) {
	status, body, err := c.postJSON(ctx, c.BaseURL+c.Endpoints.Spectrogram, analysisRequest{samples, sampleRate})
	if err != nil {
		return Spectrogram{}, fmt.Errorf("%w: spectrogram: %v", ErrAnalysis, err)
	}
	if status != http.StatusOK {
		return Spectrogram{}, fmt.Errorf("%w: spectrogram: %s", ErrAnalysis, remoteMessage(status, body))
	}
	var out Spectrogram
	if err := json.Unmarshal(body, &out); err != nil {
		return Spectrogram{}, fmt.Errorf("%w: spectrogram: malformed response: %v", ErrAnalysis, err)
	}
	return out, nil
}

// --- Editing ---

// Equalize applies band gains on the deterministic equalizer.
func (c *Client) Equalize(ctx context.Context, samples []float64, sampleRate int, bands []session.Band) (EditResult, error) {
	status, body, err := c.postJSON(ctx, c.BaseURL+c.Endpoints.Equalizer, equalizerRequest{samples, sampleRate, bands})
	if err != nil {
		return EditResult{}, &EqualizerError{Message: err.Error()}
	}
	if status != http.StatusOK {
		return EditResult{}, &EqualizerError{Status: status, Message: remoteMessage(status, body)}
	}
	res, err := decodeEdit(body)
	if err != nil {
		return EditResult{}, &EqualizerError{Status: status, Message: err.Error()}
	}
	return res, nil
}

// Enhance uploads the input as WAV with the band list to the mode's AI
// endpoint.
func (c *Client) Enhance(ctx context.Context, mode string, input Signal, bands []session.Band) (EditResult, error) {
	fail := func(status int, msg string) (EditResult, error) {
		return EditResult{}, &AIServiceError{Mode: mode, Status: status, Message: msg}
	}

	var path string
	switch mode {
	case session.ModeMusical:
		path = c.Endpoints.MusicAI
	case session.ModeHumanVoices:
		path = c.Endpoints.HumanAI
	default:
		return fail(0, fmt.Sprintf("no AI endpoint for mode %q", mode))
	}

	wavData, err := WAVBytes(input.Samples, input.SampleRate)
	if err != nil {
		return fail(0, err.Error())
	}
	sliders, err := json.Marshal(bands)
	if err != nil {
		return fail(0, err.Error())
	}

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	fw, err := mw.CreateFormFile("file", mode+"_input.wav")
	if err != nil {
		return fail(0, err.Error())
	}
	if _, err := fw.Write(wavData); err != nil {
		return fail(0, err.Error())
	}
	if err := mw.WriteField("sliders", string(sliders)); err != nil {
		return fail(0, err.Error())
	}
	if err := mw.Close(); err != nil {
		return fail(0, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.AIBaseURL+path, &form)
	if err != nil {
		return fail(0, err.Error())
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	status, body, err := c.do(req)
	if err != nil {
		return fail(0, err.Error())
	}
	if status != http.StatusOK {
		return fail(status, remoteMessage(status, body))
	}
	res, err := decodeEdit(body)
	if err != nil {
		return fail(status, err.Error())
	}
	return res, nil
}

func decodeEdit(body []byte) (EditResult, error) {
	var resp editResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return EditResult{}, fmt.Errorf("malformed response: %v", err)
	}
	if len(resp.Samples) == 0 {
		return EditResult{}, fmt.Errorf("malformed response: no samples")
	}
	return EditResult{
		Samples:    resp.Samples,
		SampleRate: resp.SampleRate,
		Spectrum:   Spectrum{Frequencies: resp.Frequencies, Magnitudes: resp.Magnitudes},
	}, nil
}

// --- Persistence ---

// RemoteSink persists edited output through the backend's save endpoint.
type RemoteSink struct {
	client *Client
}

var _ OutputSink = (*RemoteSink)(nil)

// NewRemoteSink returns a sink backed by c.
func NewRemoteSink(c *Client) *RemoteSink {
	return &RemoteSink{client: c}
}

// Save posts the signal and returns the stored reference.
func (s *RemoteSink) Save(ctx context.Context, mode string, sig Signal) (string, error) {
	c := s.client
	status, body, err := c.postJSON(ctx, c.BaseURL+c.Endpoints.Save, saveRequest{sig.Samples, sig.SampleRate, mode})
	if err != nil {
		return "", fmt.Errorf("save output: %w", err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("save output: %s", remoteMessage(status, body))
	}
	var out saveResponse
	if err := json.Unmarshal(body, &out); err != nil || out.URL == "" {
		return "", fmt.Errorf("save output: malformed response")
	}
	return out.URL, nil
}
