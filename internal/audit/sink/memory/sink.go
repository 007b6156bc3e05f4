// Package memory provides an in-process audit sink for tests and offline
// configurations.
package memory

import (
	"context"
	"sync"

	"bastion/internal/audit"
)

// Sink records every persisted event in memory. FailNext makes the next
// insert fail once, FailAlways makes every insert fail, for exercising the
// writer's requeue and drain paths.
type Sink struct {
	mu         sync.Mutex
	events     []audit.Event
	batches    int
	failNext   error
	failAlways error
}

func New() *Sink {
	return &Sink{}
}

func (s *Sink) InsertOne(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *Sink) InsertBatch(_ context.Context, events []audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return err
	}
	s.events = append(s.events, events...)
	s.batches++
	return nil
}

// FailNext arms a one-shot failure for the next insert.
func (s *Sink) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// FailAlways makes every subsequent insert fail with err (nil to heal).
func (s *Sink) FailAlways(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAlways = err
}

// Events returns a copy of everything persisted so far, in insertion order.
func (s *Sink) Events() []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Event{}, s.events...)
}

// Batches returns the number of successful batch inserts.
func (s *Sink) Batches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches
}

func (s *Sink) takeFailure() error {
	if s.failAlways != nil {
		return s.failAlways
	}
	if s.failNext == nil {
		return nil
	}
	err := s.failNext
	s.failNext = nil
	return err
}
