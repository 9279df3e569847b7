// SPDX-License-Identifier: MIT
package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	applog "eqviewer/internal/log"

	"github.com/google/uuid"
)

// FileSink writes edited output as 16-bit mono WAV files.
type FileSink struct {
	dir    string
	loader *WAVLoader
}

var _ OutputSink = (*FileSink)(nil)

// NewFileSink writes into dir. When loader is set, saved signals are primed
// into its cache so re-display skips decoding.
func NewFileSink(dir string, loader *WAVLoader) *FileSink {
	return &FileSink{dir: dir, loader: loader}
}

// Save writes sig to <dir>/<mode>_<uuid>.wav and returns its absolute path.
func (s *FileSink) Save(ctx context.Context, mode string, sig Signal) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s.wav", mode, uuid.NewString())
	path, err := filepath.Abs(filepath.Join(s.dir, name))
	if err != nil {
		return "", err
	}

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	if err := EncodeWAV(file, sig.Samples, sig.SampleRate); err != nil {
		file.Close()
		os.Remove(path)
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close output file: %w", err)
	}

	if s.loader != nil {
		s.loader.Prime(Signal{Samples: sig.Samples, SampleRate: sig.SampleRate, Ref: path})
	}
	applog.Infof("FileSink: saved %d samples @ %d Hz to %s", len(sig.Samples), sig.SampleRate, path)
	return path, nil
}
