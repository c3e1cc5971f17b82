// Package pipeline drives a user request through the generation
// pipeline: narrate, illustrate, optionally revise, with results
// committed to the scrapbook only on full success.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/justinsane/ClassicRides/internal/gateway"
	"github.com/justinsane/ClassicRides/internal/memory"
	"github.com/justinsane/ClassicRides/internal/prompts"
)

// State is the session's position in the generation pipeline.
type State string

const (
	StateIdle         State = "idle"
	StateNarrating    State = "narrating"
	StateIllustrating State = "illustrating"
	StateReady        State = "ready"
	StateRevising     State = "revising"
	StateFailed       State = "failed"
)

var (
	// ErrBusy is returned when a run is requested while another is in
	// flight. Rejected calls are refused, not queued.
	ErrBusy = errors.New("a generation run is already in progress")

	// ErrNoActiveMemory is returned by ReviseActive when there is
	// nothing to revise.
	ErrNoActiveMemory = errors.New("no active memory to revise")
)

// Session owns one user's pipeline state: the current stage, the active
// memory, and the last error. At most one run is in flight at a time.
type Session struct {
	gen   gateway.Generator
	store memory.Store
	sink  EventSink

	mu      sync.Mutex
	state   State
	active  *memory.Memory
	lastErr error
}

func NewSession(gen gateway.Generator, store memory.Store, sink EventSink) *Session {
	return &Session{
		gen:   gen,
		store: store,
		sink:  sink,
		state: StateIdle,
	}
}

// State returns the session's current pipeline state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Active returns a copy of the active memory, if any.
func (s *Session) Active() (memory.Memory, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return memory.Memory{}, false
	}
	return *s.active, true
}

// Err returns the error that moved the session to Failed, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Begin runs the full pipeline for a new user prompt: narrate, then
// illustrate, then persist. Legal only when no run is in flight;
// starting a new memory discards any prior failed or incomplete run
// without persisting it. On failure nothing is stored and the session
// moves to Failed until the next Begin.
func (s *Session) Begin(ctx context.Context, userPrompt string) (*memory.Memory, error) {
	s.mu.Lock()
	if s.inFlight() {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.state = StateNarrating
	s.active = nil
	s.lastErr = nil
	s.mu.Unlock()

	s.publish(Event{Type: EventStage, Stage: StateNarrating, Message: prompts.StageNarrating})

	narration, err := s.gen.Narrate(ctx, userPrompt)
	if err != nil {
		return nil, s.fail(fmt.Errorf("narrate: %w", err))
	}

	s.setState(StateIllustrating)
	s.publish(Event{Type: EventStage, Stage: StateIllustrating, Message: prompts.StageIllustrating})

	imageURL, err := s.gen.Illustrate(ctx, narration.ImagePrompt)
	if err != nil {
		return nil, s.fail(fmt.Errorf("illustrate: %w", err))
	}

	m := memory.Memory{
		ID:          uuid.NewString(),
		UserPrompt:  userPrompt,
		Narrative:   prompts.ComposeNarrative(narration.Narrative, narration.FunFacts),
		ImagePrompt: narration.ImagePrompt,
		ImageURL:    imageURL,
	}
	if err := s.store.Upsert(ctx, m); err != nil {
		return nil, s.fail(fmt.Errorf("save memory: %w", err))
	}

	s.mu.Lock()
	s.active = &m
	s.state = StateReady
	s.mu.Unlock()

	slog.Info("memory generated", "id", m.ID, "userPrompt", userPrompt)
	s.publish(Event{Type: EventMemoryReady, Memory: &m})
	return &m, nil
}

// ReviseActive applies an instruction to the active memory's image.
// Legal only from Ready with an active memory. On success only the
// image is replaced and the stored record is overwritten in place. On
// failure the session returns to Ready with the previous image
// untouched and nothing persisted.
func (s *Session) ReviseActive(ctx context.Context, instruction string) (*memory.Memory, error) {
	s.mu.Lock()
	if s.inFlight() {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if s.active == nil {
		s.mu.Unlock()
		return nil, ErrNoActiveMemory
	}
	current := *s.active
	s.state = StateRevising
	s.mu.Unlock()

	s.publish(Event{Type: EventStage, Stage: StateRevising, Message: prompts.StageRevising})

	imageURL, err := s.gen.Revise(ctx, current.ImageURL, instruction)
	if err != nil {
		s.setState(StateReady)
		s.publish(Event{Type: EventError, Message: err.Error()})
		return nil, fmt.Errorf("revise: %w", err)
	}

	updated := current
	updated.ImageURL = imageURL
	if err := s.store.Upsert(ctx, updated); err != nil {
		s.setState(StateReady)
		s.publish(Event{Type: EventError, Message: err.Error()})
		return nil, fmt.Errorf("save revised memory: %w", err)
	}

	s.mu.Lock()
	s.active = &updated
	s.state = StateReady
	s.mu.Unlock()

	slog.Info("memory revised", "id", updated.ID)
	s.publish(Event{Type: EventMemoryReady, Memory: &updated})
	return &updated, nil
}

// SelectFromStore loads a previously saved memory as the active one.
// No generation calls are made.
func (s *Session) SelectFromStore(ctx context.Context, id string) (*memory.Memory, error) {
	s.mu.Lock()
	if s.inFlight() {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.mu.Unlock()

	m, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.active = &m
	s.state = StateReady
	s.lastErr = nil
	s.mu.Unlock()

	return &m, nil
}

// inFlight reports whether a run holds the pipeline. Callers must hold
// the mutex. Idle, Ready and Failed all accept a new request; Failed is
// resolved only by the user starting the next run.
func (s *Session) inFlight() bool {
	switch s.state {
	case StateNarrating, StateIllustrating, StateRevising:
		return true
	}
	return false
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) fail(err error) error {
	s.mu.Lock()
	s.state = StateFailed
	s.lastErr = err
	s.mu.Unlock()

	slog.Error("generation run failed", "error", err)
	s.publish(Event{Type: EventError, Message: err.Error()})
	return err
}

func (s *Session) publish(evt Event) {
	if s.sink != nil {
		s.sink.Publish(evt)
	}
}
