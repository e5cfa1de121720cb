package editor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/modbusreader/internal/deviceconfig"
	"github.com/muurk/modbusreader/internal/logging"
	"github.com/muurk/modbusreader/internal/notify"
	"github.com/muurk/modbusreader/internal/runtimeconfig"
)

var (
	// ErrNotLoaded is returned by edits and saves before the first successful load.
	ErrNotLoaded = errors.New("runtime configuration not loaded")
	// ErrLoadInProgress is returned when a load is requested while another
	// load is still waiting for the service, or when saving during a load.
	ErrLoadInProgress = errors.New("runtime configuration load already in progress")
	// ErrSaveInProgress is returned when a save is requested while another is in flight.
	ErrSaveInProgress = errors.New("runtime configuration save already in progress")
	// ErrClosed is returned by every operation after Close, and by operations
	// whose result arrived after the session was closed.
	ErrClosed = errors.New("editing session closed")
)

// SavedMessage is the info notification emitted after a successful save.
const SavedMessage = "Runtime configuration saved"

// Service is the part of the configuration service a session talks to.
// *deviceconfig.Client satisfies it.
type Service interface {
	GetRuntimeConfig(ctx context.Context) (*runtimeconfig.Shape, error)
	PutRuntimeConfig(ctx context.Context, shape *runtimeconfig.Shape) error
}

// Session holds the runtime configuration one operator is editing.
//
// Loads replace the in-memory object wholesale. Saves send the flattened
// object and leave local state alone; the next load is authoritative.
// After Close, late results of in-flight calls are dropped.
type Session struct {
	svc      Service
	notifier notify.Notifier

	mu         sync.Mutex
	config     *runtimeconfig.RuntimeConfiguration
	baseline   *runtimeconfig.RuntimeConfiguration
	loading    bool
	saving     bool
	closed     bool
	generation uint64
}

// NewSession creates a session. A nil notifier discards notifications.
func NewSession(svc Service, notifier notify.Notifier) *Session {
	if notifier == nil {
		notifier = notify.NotifierFunc(func(notify.Kind, string) {})
	}
	return &Session{svc: svc, notifier: notifier}
}

// Load fetches the runtime configuration once and replaces the edited object.
// On failure one error notification is emitted and the previous object is kept.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.loading {
		s.mu.Unlock()
		return ErrLoadInProgress
	}
	s.loading = true
	gen := s.generation
	s.mu.Unlock()

	shape, err := s.svc.GetRuntimeConfig(ctx)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		logging.Debug("Discarding load result for closed session")
		return ErrClosed
	}
	s.loading = false
	if err != nil {
		s.mu.Unlock()
		s.fail("load", err)
		return err
	}
	s.config = runtimeconfig.New(shape)
	s.baseline = s.config.Clone()
	s.mu.Unlock()

	logging.Debug("Runtime configuration loaded")
	return nil
}

// Save writes the full flattened configuration. Success emits one info
// notification, failure one error notification; local state is unchanged
// either way.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case s.loading:
		s.mu.Unlock()
		return ErrLoadInProgress
	case s.saving:
		s.mu.Unlock()
		return ErrSaveInProgress
	case s.config == nil:
		s.mu.Unlock()
		return ErrNotLoaded
	}
	s.saving = true
	gen := s.generation
	shape := s.config.Flatten()
	s.mu.Unlock()

	err := s.svc.PutRuntimeConfig(ctx, shape)

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		logging.Debug("Discarding save result for closed session")
		return ErrClosed
	}
	s.saving = false
	s.mu.Unlock()

	if err != nil {
		s.fail("save", err)
		return err
	}
	s.notifier.Notify(notify.KindInfo, SavedMessage)
	return nil
}

func (s *Session) fail(op string, err error) {
	logging.Warn("Runtime configuration "+op+" failed", zap.Error(err))
	s.notifier.Notify(notify.KindError, deviceconfig.NotificationMessage(err))
}

// Close ends the session. Results of calls still in flight are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.generation++
	s.config = nil
	s.baseline = nil
	s.loading = false
	s.saving = false
}

// Loaded reports whether a load has succeeded.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config != nil
}

// Busy reports whether a load or save is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading || s.saving
}

// Dirty reports whether the edited object differs from what was last loaded.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config != nil && !s.config.Equal(s.baseline)
}

func (s *Session) edit(fn func(rc *runtimeconfig.RuntimeConfiguration)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.config == nil {
		return ErrNotLoaded
	}
	fn(s.config)
	return nil
}

// SetFlag sets or clears one include flag, leaving every other selector bit alone.
func (s *Session) SetFlag(f runtimeconfig.Flag, on bool) error {
	return s.edit(func(rc *runtimeconfig.RuntimeConfiguration) { rc.SetFlag(f, on) })
}

// ToggleFlag inverts one include flag.
func (s *Session) ToggleFlag(f runtimeconfig.Flag) error {
	return s.edit(func(rc *runtimeconfig.RuntimeConfiguration) { rc.SetFlag(f, !rc.Flag(f)) })
}

// SetLength writes one scalar field.
func (s *Session) SetLength(l runtimeconfig.Length, v uint16) error {
	return s.edit(func(rc *runtimeconfig.RuntimeConfiguration) { rc.SetLength(l, v) })
}

// SetSelector replaces the whole memory selector, reserved bits included.
func (s *Session) SetSelector(sel runtimeconfig.Selector) error {
	return s.edit(func(rc *runtimeconfig.RuntimeConfiguration) { rc.SetSelector(sel) })
}

// Revert discards edits made since the last load.
func (s *Session) Revert() error {
	return s.edit(func(rc *runtimeconfig.RuntimeConfiguration) { *rc = *s.baseline })
}

// Config returns a copy of the edited object, or nil before the first load.
func (s *Session) Config() *runtimeconfig.RuntimeConfiguration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return nil
	}
	return s.config.Clone()
}

// Shape returns the flattened edited object, or nil before the first load.
func (s *Session) Shape() *runtimeconfig.Shape {
	if rc := s.Config(); rc != nil {
		return rc.Flatten()
	}
	return nil
}

// ApplyAssignment applies one "name=value" edit. Names are wire names:
// an include flag takes a boolean, a length field or memorySelector takes
// an unsigned 16-bit integer (decimal, 0x hex or 0b binary).
func (s *Session) ApplyAssignment(expr string) error {
	name, value, ok := strings.Cut(expr, "=")
	if !ok {
		return fmt.Errorf("invalid assignment %q: expected name=value", expr)
	}
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)

	if f, err := runtimeconfig.ParseFlag(name); err == nil {
		on, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %q is not a boolean", name, value)
		}
		return s.SetFlag(f, on)
	}

	v, err := strconv.ParseUint(value, 0, 16)
	if name == "memorySelector" {
		if err != nil {
			return fmt.Errorf("invalid value for %s: %q is not a 16-bit value", name, value)
		}
		return s.SetSelector(runtimeconfig.Selector(v))
	}

	l, lerr := runtimeconfig.ParseLength(name)
	if lerr != nil {
		return lerr
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %q is not a 16-bit value", name, value)
	}
	return s.SetLength(l, uint16(v))
}
