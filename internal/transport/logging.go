// SPDX-License-Identifier: MIT
package transport

import (
	applog "eqviewer/internal/log"
	"eqviewer/internal/workbench"
)

// LoggingTransport implements the Transport interface by logging a summary
// of every frame at debug level.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received data.
func (lt *LoggingTransport) Send(data any) error {
	switch f := data.(type) {
	case workbench.Frame:
		applog.Debugf("LOG_TRANSPORT: %s mode=%q gen=%d status=%s views=%d clocks=%v",
			f.Type, f.Mode, f.Generation, f.Status, len(f.Views), f.Clocks)
	default:
		applog.Debugf("LOG_TRANSPORT: Received (%T)", data)
	}
	return nil // Logging transport never fails to "send"
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	applog.Debugf("LOG_TRANSPORT: Close called.")
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
