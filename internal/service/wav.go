// SPDX-License-Identifier: MIT
package service

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// outputBitDepth is used for every WAV the module writes.
const outputBitDepth = 16

// DecodeWAV reads a PCM WAV stream and mixes it down to mono samples in
// [-1, 1].
func DecodeWAV(r io.ReadSeeker) ([]float64, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, errors.New("not a valid WAV file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode PCM data: %w", err)
	}

	channels := max(buf.Format.NumChannels, 1)
	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		bitDepth = buf.SourceBitDepth
	}
	scale := math.Exp2(float64(bitDepth - 1))
	if bitDepth == 8 {
		// 8-bit PCM is unsigned.
		scale = 128
	}

	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := range frames {
		var sum float64
		for c := range channels {
			v := float64(buf.Data[i*channels+c])
			if bitDepth == 8 {
				v -= 128
			}
			sum += v
		}
		samples[i] = clamp(sum / float64(channels) / scale)
	}
	return samples, buf.Format.SampleRate, nil
}

// EncodeWAV writes mono samples as 16-bit PCM.
func EncodeWAV(w io.WriteSeeker, samples []float64, sampleRate int) error {
	enc := wav.NewEncoder(w, sampleRate, outputBitDepth, 1, 1)

	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, len(samples)),
		SourceBitDepth: outputBitDepth,
	}
	for i, s := range samples {
		buf.Data[i] = int(math.Round(clamp(s) * math.MaxInt16))
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write WAV data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV header: %w", err)
	}
	return nil
}

// WAVBytes encodes samples into an in-memory WAV file.
func WAVBytes(samples []float64, sampleRate int) ([]byte, error) {
	ws := &writeSeeker{}
	if err := EncodeWAV(ws, samples, sampleRate); err != nil {
		return nil, err
	}
	return ws.buf, nil
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}

// writeSeeker is an in-memory io.WriteSeeker; the WAV encoder seeks back to
// patch chunk sizes on Close.
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	if end := w.pos + len(p); end > len(w.buf) {
		w.buf = append(w.buf, make([]byte, end-len(w.buf))...)
	}
	n := copy(w.buf[w.pos:], p)
	w.pos += n
	return n, nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(w.pos) + offset
	case io.SeekEnd:
		abs = int64(len(w.buf)) + offset
	default:
		return 0, errors.New("writeSeeker: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("writeSeeker: negative position")
	}
	w.pos = int(abs)
	return abs, nil
}

var _ io.WriteSeeker = (*writeSeeker)(nil)

// decodeBytes is DecodeWAV over an in-memory payload.
func decodeBytes(data []byte) ([]float64, int, error) {
	return DecodeWAV(bytes.NewReader(data))
}
