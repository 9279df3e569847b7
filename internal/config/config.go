// SPDX-License-Identifier: MIT
package config

import "time"

// Defaults for every configuration section.
const (
	DefaultLogLevel = "info"

	DefaultServiceBaseURL = "http://localhost:8080"
	DefaultServiceTimeout = 120 * time.Second

	DefaultMaxPoints = 2000
	DefaultMaxZoom   = 2000
	DefaultZoomStep  = 1.5

	DefaultAssetDir  = "."
	DefaultOutputDir = "./output"
	DefaultCacheTTL  = 30 * time.Minute

	DefaultPlaybackBackend = "clock"
	DefaultDeviceID        = MinDeviceID
	DefaultFramesPerBuffer = 1024
	DefaultUpdateInterval  = 50 * time.Millisecond

	DefaultListenAddr    = "127.0.0.1:8765"
	DefaultFrameInterval = 100 * time.Millisecond

	// Hardware limits
	MinDeviceID     = -1   // -1 represents system default device
	MaxBufferFrames = 8192 // Maximum frames per buffer (power of 2)
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug    bool           `yaml:"debug"`    // Enable debug logging.
	Log      LogConfig      `yaml:"log"`      // Log level and destinations.
	Service  ServiceConfig  `yaml:"service"`  // Remote analysis, equalizer and AI backends.
	Viewport ViewportConfig `yaml:"viewport"` // Zoom and decimation limits for every view.
	Storage  StorageConfig  `yaml:"storage"`  // Where signals are read from and written to.
	Playback PlaybackConfig `yaml:"playback"` // Waveform playback backend.
	Server   ServerConfig   `yaml:"server"`   // WebSocket presentation server.
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error fatal"` // Minimum level.
	File  string `yaml:"file"`                                                      // Rotated JSON log file, empty to disable.
	JSON  bool   `yaml:"json"`                                                      // JSON console output.
}

// EndpointsConfig overrides individual request paths. Empty values keep the
// service defaults.
type EndpointsConfig struct {
	Spectrum    string `yaml:"spectrum"`
	Spectrogram string `yaml:"spectrogram"`
	Equalizer   string `yaml:"equalizer"`
	Save        string `yaml:"save"`
	MusicAI     string `yaml:"music_ai"`
	HumanAI     string `yaml:"human_ai"`
}

// ServiceConfig holds settings for the remote backends.
type ServiceConfig struct {
	BaseURL    string          `yaml:"base_url" validate:"required,url"`     // Analysis and equalizer host.
	AIBaseURL  string          `yaml:"ai_base_url" validate:"omitempty,url"` // AI host, defaults to base_url.
	Timeout    time.Duration   `yaml:"timeout" validate:"gt=0"`              // Per-request timeout.
	Endpoints  EndpointsConfig `yaml:"endpoints"`                            // Request path overrides.
	RemoteSink bool            `yaml:"remote_sink"`                          // Persist edits through the backend instead of local files.
}

// ViewportConfig bounds zooming and rendering.
type ViewportConfig struct {
	MaxPoints int     `yaml:"max_points" validate:"gte=2"` // Render cap per visible slice.
	MaxZoom   float64 `yaml:"max_zoom" validate:"gte=1"`   // Upper zoom clamp.
	ZoomStep  float64 `yaml:"zoom_step" validate:"gt=1"`   // Zoom factor per step.
}

// StorageConfig holds signal locations.
type StorageConfig struct {
	AssetDir  string        `yaml:"asset_dir"`                       // Base directory for relative signal references.
	OutputDir string        `yaml:"output_dir" validate:"required"`  // Directory for edited output files.
	CacheTTL  time.Duration `yaml:"cache_ttl" validate:"gte=0"`      // Lifetime of decoded signals in memory.
}

// PlaybackConfig selects and tunes the waveform player.
type PlaybackConfig struct {
	Backend         string        `yaml:"backend" validate:"oneof=none clock portaudio"` // Player implementation.
	Device          int           `yaml:"device" validate:"gte=-1"`                      // PortAudio output device (-1 for default).
	FramesPerBuffer int           `yaml:"frames_per_buffer" validate:"gt=0"`             // PortAudio buffer size (power of 2).
	UpdateInterval  time.Duration `yaml:"update_interval" validate:"gt=0"`               // Position update period.
}

// ServerConfig holds the WebSocket server settings.
type ServerConfig struct {
	ListenAddr     string        `yaml:"listen_addr" validate:"required,hostname_port"` // host:port to listen on.
	FrameInterval  time.Duration `yaml:"frame_interval" validate:"gt=0"`                // Minimum gap between playback frames.
	AllowedOrigins []string      `yaml:"allowed_origins"`                               // Accepted Origin headers, empty allows all.
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
		Service: ServiceConfig{
			BaseURL: DefaultServiceBaseURL,
			Timeout: DefaultServiceTimeout,
		},
		Viewport: ViewportConfig{
			MaxPoints: DefaultMaxPoints,
			MaxZoom:   DefaultMaxZoom,
			ZoomStep:  DefaultZoomStep,
		},
		Storage: StorageConfig{
			AssetDir:  DefaultAssetDir,
			OutputDir: DefaultOutputDir,
			CacheTTL:  DefaultCacheTTL,
		},
		Playback: PlaybackConfig{
			Backend:         DefaultPlaybackBackend,
			Device:          DefaultDeviceID,
			FramesPerBuffer: DefaultFramesPerBuffer,
			UpdateInterval:  DefaultUpdateInterval,
		},
		Server: ServerConfig{
			ListenAddr:    DefaultListenAddr,
			FrameInterval: DefaultFrameInterval,
		},
	}
}
