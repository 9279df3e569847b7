// SPDX-License-Identifier: MIT
package session

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"

	applog "eqviewer/internal/log"
	"eqviewer/internal/series"
)

// EventKind identifies a state change.
type EventKind int

const (
	EventLoaded EventKind = iota
	EventModeChanged
	EventBandsChanged
	EventViewsUpdated
	EventReset
)

func (k EventKind) String() string {
	switch k {
	case EventLoaded:
		return "loaded"
	case EventModeChanged:
		return "mode-changed"
	case EventBandsChanged:
		return "bands-changed"
	case EventViewsUpdated:
		return "views-updated"
	case EventReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Event is delivered to listeners after the state lock is released.
type Event struct {
	Kind       EventKind
	Mode       string
	Generation uint64
}

// Listener receives state events.
type Listener func(Event)

// ViewFactory builds the view for a role on first use.
type ViewFactory func(Role) *series.View

// Target is a resolved, displayable mode captured at a given generation.
type Target struct {
	Mode       string
	InputRef   string
	OutputRef  string
	Generation uint64
}

// Ticket captures what an equalizer edit needs from the state when it starts.
type Ticket struct {
	Mode       string
	Generation uint64
	InputRef   string
	OutputRef  string
	UseAI      bool
	Bands      []Band
}

// EditOutput is a persisted edit ready to be shown in the output views.
type EditOutput struct {
	Ref         string
	Waveform    series.Data
	Spectrum    series.Data
	Spectrogram series.Data
}

// State owns the session document, the active mode, per-mode AI toggles and
// the role-keyed view registry. All mutation goes through its methods.
type State struct {
	mu         sync.RWMutex
	original   *Document
	doc        *Document
	mode       string
	generation uint64
	ai         map[string]bool
	views      map[Role]*series.View
	newView    ViewFactory

	lmu          sync.Mutex
	listeners    map[uint64]Listener
	nextListener uint64
}

// NewState returns an empty state. A nil factory builds plain views.
func NewState(factory ViewFactory) *State {
	if factory == nil {
		factory = func(r Role) *series.View { return series.New(r.Variant()) }
	}
	return &State{
		ai:        make(map[string]bool),
		views:     make(map[Role]*series.View),
		newView:   factory,
		listeners: make(map[uint64]Listener),
	}
}

// Subscribe registers a listener and returns its cancel function.
func (s *State) Subscribe(fn Listener) func() {
	s.lmu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lmu.Lock()
			delete(s.listeners, id)
			s.lmu.Unlock()
		})
	}
}

func (s *State) emit(events ...Event) {
	s.lmu.Lock()
	fns := slices.Collect(maps.Values(s.listeners))
	s.lmu.Unlock()
	for _, ev := range events {
		for _, fn := range fns {
			fn(ev)
		}
	}
}

// Load installs a document, keeping a deep copy as the revert point. The
// active mode starts at "generic" when present.
func (s *State) Load(doc *Document) error {
	if doc == nil || len(doc.Modes) == 0 {
		return fmt.Errorf("%w: document has no modes", ErrNotReady)
	}
	for name, entry := range doc.Modes {
		for _, b := range slices.Concat(entry.Sliders, entry.AISliders) {
			if err := b.Validate(); err != nil {
				return fmt.Errorf("mode %q: %w", name, err)
			}
		}
	}

	s.mu.Lock()
	s.original = doc.Clone()
	s.doc = doc.Clone()
	s.mode = initialMode(s.doc)
	s.ai = make(map[string]bool)
	s.generation++
	rebinds := s.clearViewsLocked()
	ev := Event{Kind: EventLoaded, Mode: s.mode, Generation: s.generation}
	s.mu.Unlock()
	Rebind(rebinds)

	applog.Infof("Session: loaded %d modes, initial mode %q", len(doc.Modes), ev.Mode)
	s.emit(ev)
	return nil
}

func initialMode(doc *Document) string {
	if _, ok := doc.Modes[ModeGeneric]; ok {
		return ModeGeneric
	}
	for _, name := range doc.ModeNames() {
		if doc.Modes[name].Displayable() {
			return name
		}
	}
	return ""
}

// Loaded reports whether a document is installed.
func (s *State) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc != nil
}

// Reset restores the document captured at Load, clears AI toggles and every
// view, and invalidates in-flight work. The active mode name is kept.
func (s *State) Reset() error {
	s.mu.Lock()
	if s.original == nil {
		s.mu.Unlock()
		return ErrNotReady
	}
	s.doc = s.original.Clone()
	s.ai = make(map[string]bool)
	s.generation++
	rebinds := s.clearViewsLocked()
	ev := Event{Kind: EventReset, Mode: s.mode, Generation: s.generation}
	s.mu.Unlock()
	Rebind(rebinds)

	applog.Infof("Session: document reset to original")
	s.emit(ev)
	return nil
}

func (s *State) clearViewsLocked() []func() {
	rebinds := make([]func(), 0, len(s.views))
	for _, v := range s.views {
		rebinds = append(rebinds, v.Replace(series.Data{}))
	}
	return rebinds
}

// Rebind runs the playback rebinds collected from series.View.Replace. Call
// it after the state lock is released.
func Rebind(rebinds []func()) {
	for _, fn := range rebinds {
		fn()
	}
}

// Export serializes the current document.
func (s *State) Export() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return nil, ErrNotReady
	}
	return json.MarshalIndent(s.doc, "", "  ")
}

// Document returns a copy of the current document.
func (s *State) Document() *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// Mode returns the active mode name.
func (s *State) Mode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// Generation changes on every load, reset and mode commit.
func (s *State) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Entry returns a copy of a mode's entry.
func (s *State) Entry(mode string) (*ModeEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return nil, ErrNotReady
	}
	entry, ok := s.doc.Modes[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	return entry.clone(), nil
}

// Resolve checks that a mode exists and has an output signal.
func (s *State) Resolve(mode string) (Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return Target{}, ErrNotReady
	}
	entry, ok := s.doc.Modes[mode]
	if !ok {
		return Target{}, fmt.Errorf("%w: %q is not in the document", ErrInvalidMode, mode)
	}
	if !entry.Displayable() {
		return Target{}, fmt.Errorf("%w: %q has no output signal", ErrInvalidMode, mode)
	}
	return Target{
		Mode:       mode,
		InputRef:   s.doc.InputRef(mode),
		OutputRef:  entry.OutputSignal,
		Generation: s.generation,
	}, nil
}

// View returns the view for a role, creating it on first use.
func (s *State) View(role Role) *series.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked(role)
}

func (s *State) viewLocked(role Role) *series.View {
	v, ok := s.views[role]
	if !ok {
		v = s.newView(role)
		s.views[role] = v
	}
	return v
}

// Views returns every role's view, creating missing ones.
func (s *State) Views() map[Role]*series.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Role]*series.View, len(Roles))
	for _, r := range Roles {
		out[r] = s.viewLocked(r)
	}
	return out
}

// CommitMode makes t the active mode and lets push replace the view data while
// the state is locked. The playback rebinds push returns run after the lock is
// released. It fails with ErrStale if the state changed since Resolve.
func (s *State) CommitMode(t Target, push func(map[Role]*series.View) []func()) error {
	s.mu.Lock()
	if s.generation != t.Generation {
		s.mu.Unlock()
		return ErrStale
	}
	s.mode = t.Mode
	s.generation++
	views := make(map[Role]*series.View, len(Roles))
	for _, r := range Roles {
		views[r] = s.viewLocked(r)
	}
	rebinds := push(views)
	gen := s.generation
	s.mu.Unlock()
	Rebind(rebinds)

	s.emit(
		Event{Kind: EventModeChanged, Mode: t.Mode, Generation: gen},
		Event{Kind: EventViewsUpdated, Mode: t.Mode, Generation: gen},
	)
	return nil
}

// Ticket captures the active mode's edit parameters.
func (s *State) Ticket() (Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return Ticket{}, ErrNotReady
	}
	entry, ok := s.doc.Modes[s.mode]
	if !ok {
		return Ticket{}, fmt.Errorf("%w: no active mode", ErrNotReady)
	}
	useAI := s.usesAILocked(s.mode)
	bands := entry.Sliders
	if useAI {
		bands = entry.AISliders
	}
	return Ticket{
		Mode:       s.mode,
		Generation: s.generation,
		InputRef:   s.doc.InputRef(s.mode),
		OutputRef:  entry.OutputSignal,
		UseAI:      useAI,
		Bands:      slices.Clone(bands),
	}, nil
}

// CommitEdit installs an edited output if t is still current. Only the
// generation check, replace and the document write happen under the state
// lock; check may veto the commit with an error and is called under the lock
// too. Playback is rebound after the lock is released.
func (s *State) CommitEdit(t Ticket, out EditOutput, check func() error) error {
	s.mu.Lock()
	if s.doc == nil || s.generation != t.Generation || s.mode != t.Mode {
		s.mu.Unlock()
		return ErrStale
	}
	if check != nil {
		if err := check(); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	rebinds := []func(){
		s.viewLocked(OutputWaveform).Replace(out.Waveform),
		s.viewLocked(OutputSpectrum).Replace(out.Spectrum),
		s.viewLocked(OutputSpectrogram).Replace(out.Spectrogram),
	}
	if entry, ok := s.doc.Modes[t.Mode]; ok && out.Ref != "" {
		entry.OutputSignal = out.Ref
	}
	gen := s.generation
	s.mu.Unlock()
	Rebind(rebinds)

	s.emit(Event{Kind: EventViewsUpdated, Mode: t.Mode, Generation: gen})
	return nil
}

// AIEnabled reports the AI toggle for a mode.
func (s *State) AIEnabled(mode string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ai[mode]
}

// UsesAI reports whether edits in mode go to the AI service.
func (s *State) UsesAI(mode string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usesAILocked(mode)
}

func (s *State) usesAILocked(mode string) bool {
	return IsAIMode(mode) && s.ai[mode]
}

// SetAIEnabled flips a mode's AI toggle. Only musical and human_voices
// support it.
func (s *State) SetAIEnabled(mode string, on bool) error {
	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		return ErrNotReady
	}
	if _, ok := s.doc.Modes[mode]; !ok || !IsAIMode(mode) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q has no AI path", ErrInvalidMode, mode)
	}
	s.ai[mode] = on
	ev := Event{Kind: EventBandsChanged, Mode: mode, Generation: s.generation}
	s.mu.Unlock()

	s.emit(ev)
	return nil
}

// Bands returns a copy of the active band list.
func (s *State) Bands() []Band {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.activeBandsLocked()
	if list == nil {
		return nil
	}
	return slices.Clone(*list)
}

func (s *State) activeBandsLocked() *[]Band {
	if s.doc == nil {
		return nil
	}
	entry, ok := s.doc.Modes[s.mode]
	if !ok {
		return nil
	}
	if s.usesAILocked(s.mode) {
		return &entry.AISliders
	}
	return &entry.Sliders
}

// mutateBands applies fn to the active band list and emits BandsChanged.
func (s *State) mutateBands(fn func(*[]Band) error) error {
	s.mu.Lock()
	list := s.activeBandsLocked()
	if list == nil {
		s.mu.Unlock()
		return ErrNotReady
	}
	if err := fn(list); err != nil {
		s.mu.Unlock()
		return err
	}
	ev := Event{Kind: EventBandsChanged, Mode: s.mode, Generation: s.generation}
	s.mu.Unlock()

	s.emit(ev)
	return nil
}

// SetBandValue sets the gain of the band at index in the active list.
func (s *State) SetBandValue(index int, value float64) error {
	return s.mutateBands(func(list *[]Band) error {
		if index < 0 || index >= len(*list) {
			return fmt.Errorf("%w: index %d out of range", ErrInvalidBand, index)
		}
		b := (*list)[index]
		b.Value = value
		if err := b.Validate(); err != nil {
			return err
		}
		(*list)[index] = b
		return nil
	})
}

// AddBand appends a band to the active list.
func (s *State) AddBand(b Band) error {
	if err := b.Validate(); err != nil {
		return err
	}
	return s.mutateBands(func(list *[]Band) error {
		*list = append(*list, b)
		return nil
	})
}

// RemoveBand deletes the band at index from the active list. It is a local
// edit only.
func (s *State) RemoveBand(index int) error {
	return s.mutateBands(func(list *[]Band) error {
		if index < 0 || index >= len(*list) {
			return fmt.Errorf("%w: index %d out of range", ErrInvalidBand, index)
		}
		*list = slices.Delete(*list, index, index+1)
		return nil
	})
}
