// SPDX-License-Identifier: MIT
package workbench

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"eqviewer/internal/edit"
	applog "eqviewer/internal/log"
	"eqviewer/internal/series"
	"eqviewer/internal/session"

	"github.com/go-playground/validator/v10"
)

// Command names accepted by Execute.
const (
	CmdSetMode    = "setMode"
	CmdZoomIn     = "zoomIn"
	CmdZoomOut    = "zoomOut"
	CmdPan        = "pan"
	CmdResetView  = "resetView"
	CmdSetBand    = "setBand"
	CmdAddBand    = "addBand"
	CmdRemoveBand = "removeBand"
	CmdToggleAI   = "toggleAI"
	CmdApply      = "apply"
	CmdPlay       = "play"
	CmdPause      = "pause"
	CmdStop       = "stop"
	CmdSetRate    = "setRate"
	CmdMute       = "mute"
	CmdRevert     = "revert"
	CmdExport     = "export"
)

// ErrUnknownCommand is returned for a command type Execute does not know.
var ErrUnknownCommand = errors.New("unknown command")

// ErrNoPlayback is returned by transport commands on a view without playback.
var ErrNoPlayback = errors.New("view has no playback")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Command is one user action. Which fields are used depends on Type.
type Command struct {
	ID      string        `json:"id,omitempty"` // Echoed in the response by adapters.
	Type    string        `json:"type" validate:"required"`
	Mode    string        `json:"mode,omitempty"`
	Role    string        `json:"role,omitempty"`
	Index   int           `json:"index,omitempty" validate:"gte=0"`
	Value   float64       `json:"value,omitempty"`
	Offset  float64       `json:"offset,omitempty"`
	Enabled bool          `json:"enabled,omitempty"`
	Band    *session.Band `json:"band,omitempty"`
}

// Reply carries the optional payload of a successful command.
type Reply struct {
	Type     string          `json:"type"`
	Slice    *series.Slice   `json:"slice,omitempty"`
	Edit     *edit.Result    `json:"edit,omitempty"`
	Document json.RawMessage `json:"document,omitempty"`
}

// Async reports whether the command waits on remote services. Adapters run
// these off their input loop so local actions stay responsive.
func (c Command) Async() bool {
	switch c.Type {
	case CmdSetMode, CmdApply, CmdRevert:
		return true
	}
	return false
}

// ParseCommand decodes and validates a JSON command.
func ParseCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("malformed command: %w", err)
	}
	if err := validate.Struct(cmd); err != nil {
		return Command{}, fmt.Errorf("invalid command: %w", err)
	}
	return cmd, nil
}

// Execute runs one command against the workbench.
func (w *Workbench) Execute(ctx context.Context, cmd Command) (Reply, error) {
	reply := Reply{Type: cmd.Type}
	applog.Debugf("Workbench: command %s %+v", cmd.Type, cmd)

	switch cmd.Type {
	case CmdSetMode:
		return reply, w.modes.SetMode(ctx, cmd.Mode)

	case CmdZoomIn, CmdZoomOut, CmdPan, CmdResetView:
		view, err := w.view(cmd.Role)
		if err != nil {
			return reply, err
		}
		var s series.Slice
		switch cmd.Type {
		case CmdZoomIn:
			s = view.ZoomIn()
		case CmdZoomOut:
			s = view.ZoomOut()
		case CmdPan:
			s = view.Pan(cmd.Offset)
		default:
			s = view.Reset()
		}
		reply.Slice = &s
		return reply, nil

	case CmdSetBand:
		return reply, w.state.SetBandValue(cmd.Index, cmd.Value)

	case CmdAddBand:
		if cmd.Band == nil {
			return reply, fmt.Errorf("%w: missing band", session.ErrInvalidBand)
		}
		return reply, w.state.AddBand(*cmd.Band)

	case CmdRemoveBand:
		return reply, w.state.RemoveBand(cmd.Index)

	case CmdToggleAI:
		target := cmd.Mode
		if target == "" {
			target = w.state.Mode()
		}
		return reply, w.state.SetAIEnabled(target, cmd.Enabled)

	case CmdApply:
		res, err := w.edits.Apply(ctx)
		if err != nil {
			return reply, err
		}
		reply.Edit = &res
		return reply, nil

	case CmdPlay, CmdPause, CmdStop, CmdSetRate, CmdMute:
		return reply, w.transport(cmd)

	case CmdRevert:
		if err := w.state.Reset(); err != nil {
			return reply, err
		}
		return reply, w.modes.Reload(ctx)

	case CmdExport:
		doc, err := w.state.Export()
		if err != nil {
			return reply, err
		}
		reply.Document = doc
		return reply, nil

	default:
		return reply, fmt.Errorf("%w: '%s'", ErrUnknownCommand, cmd.Type)
	}
}

func (w *Workbench) view(name string) (*series.View, error) {
	role, err := session.ParseRole(name)
	if err != nil {
		return nil, err
	}
	return w.state.View(role), nil
}

func (w *Workbench) transport(cmd Command) error {
	view, err := w.view(cmd.Role)
	if err != nil {
		return err
	}
	track := view.Track()
	if track == nil {
		return fmt.Errorf("%w: %s", ErrNoPlayback, cmd.Role)
	}
	switch cmd.Type {
	case CmdPlay:
		return track.Play()
	case CmdPause:
		return track.Pause()
	case CmdStop:
		return track.Stop()
	case CmdSetRate:
		track.SetRate(cmd.Value)
	case CmdMute:
		track.SetMuted(cmd.Enabled)
	}
	return nil
}
