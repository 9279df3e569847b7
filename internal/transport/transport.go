// SPDX-License-Identifier: MIT
/*
Package transport delivers workbench frames to presentation clients and
feeds their commands back. A Publisher turns session events and playback
position changes into frames and fans them out to any number of Transports;
the WebSocketTransport additionally accepts JSON commands from its clients.
*/
package transport

import (
	"context"

	"eqviewer/internal/session"
	"eqviewer/internal/workbench"
)

// Transport defines a generic interface for sending frames or replies.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// Source produces the frames a Publisher distributes.
type Source interface {
	Frame() workbench.Frame
	PlaybackFrame() workbench.Frame
	Positions() <-chan struct{}
	Subscribe(fn session.Listener) func()
}

// Executor runs client commands.
type Executor interface {
	Execute(ctx context.Context, cmd workbench.Command) (workbench.Reply, error)
	Frame() workbench.Frame
}

var (
	_ Source   = (*workbench.Workbench)(nil)
	_ Executor = (*workbench.Workbench)(nil)
)
