// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

package services

import (
	"context"
	"fmt"
)

// ContextRunner matches components whose Serve/Run method blocks until
// the context is canceled.
//
// Satisfied by *notify.Hub (Run) via RunnerFunc, *recognition.Reaper
// (Serve), and *message.Router (Run).
type ContextRunner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a bare func(ctx) error to ContextRunner.
type RunnerFunc func(ctx context.Context) error

// Run implements ContextRunner.
func (f RunnerFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// RunnerService wraps a blocking context-aware runner as a supervised
// service.
type RunnerService struct {
	runner ContextRunner
	name   string
}

// NewRunnerService names and wraps a blocking runner.
func NewRunnerService(name string, runner ContextRunner) *RunnerService {
	return &RunnerService{runner: runner, name: name}
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	return s.runner.Run(ctx)
}

// String implements fmt.Stringer for suture's log messages.
func (s *RunnerService) String() string {
	return s.name
}

// StartStopper matches components with a Start/Stop lifecycle.
//
// Satisfied by *store.GC and, with a shim for its void Start, the match
// cache sweeper.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop()
}

// StartStopService wraps a Start/Stop component as a supervised
// service: Start launches the component's own goroutine, Serve blocks
// until cancellation, Stop waits for the goroutine to exit.
type StartStopService struct {
	component StartStopper
	name      string
}

// NewStartStopService names and wraps a Start/Stop component.
func NewStartStopService(name string, component StartStopper) *StartStopService {
	return &StartStopService{component: component, name: name}
}

// Serve implements suture.Service. A Start failure is returned
// immediately so suture restarts the service under its backoff policy.
func (s *StartStopService) Serve(ctx context.Context) error {
	if err := s.component.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}
	<-ctx.Done()
	s.component.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for suture's log messages.
func (s *StartStopService) String() string {
	return s.name
}

// VoidStarter matches Start/Stop components whose Start cannot fail.
//
// Satisfied by *matchcache.Cache.
type VoidStarter interface {
	Start(ctx context.Context)
	Stop()
}

type voidStartAdapter struct {
	VoidStarter
}

func (a voidStartAdapter) Start(ctx context.Context) error {
	a.VoidStarter.Start(ctx)
	return nil
}

// NewVoidStartService wraps a component whose Start returns nothing.
func NewVoidStartService(name string, component VoidStarter) *StartStopService {
	return NewStartStopService(name, voidStartAdapter{component})
}
