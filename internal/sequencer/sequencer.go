// Copyright 2025 The Stackdeploy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sequencer executes an ordered list of idempotent deployment steps
// against a Kubernetes cluster. Steps run strictly in sequence; the first
// fatal outcome aborts the run. No state is kept between runs: each step
// re-derives where it stands from a live existence probe.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
)

// Presence is the outcome of an existence probe.
type Presence int

const (
	// PresenceUnknown means the probe could not determine existence, for
	// example because the API server was unreachable. Unknown is fatal; it
	// is deliberately not conflated with Absent.
	PresenceUnknown Presence = iota

	// PresenceAbsent means the resource does not exist.
	PresenceAbsent

	// PresencePresent means the resource exists but is not known to be in its
	// terminal ready state. Whether it is re-applied or only waited on is
	// decided by the step's policy.
	PresencePresent

	// PresenceReady means the resource exists and is already in the state the
	// step would produce, so the step is satisfied without further work.
	PresenceReady
)

func (p Presence) String() string {
	switch p {
	case PresenceAbsent:
		return "absent"
	case PresencePresent:
		return "present"
	case PresenceReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Policy decides what a step does when its probe reports the resource present.
type Policy int

const (
	// SkipOnExists leaves an existing resource alone. A resource reported
	// Ready satisfies the step outright; one reported Present is waited on
	// but never re-applied.
	SkipOnExists Policy = iota

	// UpgradeOnExists re-applies an existing resource as an upgrade.
	UpgradeOnExists

	// RequireExisting never applies anything. The resource must already exist
	// and become ready; absence aborts the run with DependencyUnavailable.
	RequireExisting
)

func (p Policy) String() string {
	switch p {
	case UpgradeOnExists:
		return "upgrade-on-exists"
	case RequireExisting:
		return "require-existing"
	default:
		return "skip-on-exists"
	}
}

// Result is the terminal outcome of one step.
type Result string

const (
	ResultCreated          Result = "created"
	ResultUpgraded         Result = "upgraded"
	ResultAlreadySatisfied Result = "already-satisfied"
	ResultTimedOut         Result = "timed-out"
	ResultFailed           Result = "failed"
)

// Step is one unit of work in a run. Probe must be side-effect free. Apply
// creates the resource (upgrade is true when re-applying an existing one) and
// Wait blocks until the resource is ready or ctx expires. Apply and Wait may
// be nil for steps that only gate on existing resources.
type Step struct {
	Name        string
	Policy      Policy
	Probe       func(ctx context.Context) (Presence, error)
	Apply       func(ctx context.Context, upgrade bool) error
	Wait        func(ctx context.Context) error
	WaitTimeout time.Duration
}

// DefaultWaitTimeout applies to steps that do not set their own.
const DefaultWaitTimeout = 300 * time.Second

// State is the run's position in its linear state machine.
type State int

const (
	StateNotStarted State = iota
	StateRunning
	StateSucceeded
	StateAborted
)

// Outcome records what happened to one step.
type Outcome struct {
	Step   string
	Result Result
}

// Sequencer walks an ordered step list. It is single-use: construct, Run once,
// inspect outcomes.
type Sequencer struct {
	steps  []Step
	logger *log.Logger

	state    State
	current  int
	outcomes []Outcome
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithLogger sets the logger used for per-step progress lines.
func WithLogger(logger *log.Logger) Option {
	return func(s *Sequencer) {
		s.logger = logger
	}
}

// New constructs a Sequencer over the given ordered steps.
func New(steps []Step, opts ...Option) *Sequencer {
	s := &Sequencer{
		steps: steps,
		state: StateNotStarted,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	return s
}

// State returns the run's current state.
func (s *Sequencer) State() State { return s.state }

// Outcomes returns the per-step outcomes recorded so far, in execution order.
func (s *Sequencer) Outcomes() []Outcome { return s.outcomes }

// Run executes every step in order and returns the outcomes. The first fatal
// outcome halts the run and is returned as an *AbortError; steps already
// applied are left as they are. Cancelling ctx aborts with UserCancelled.
func (s *Sequencer) Run(ctx context.Context) ([]Outcome, error) {
	if s.state != StateNotStarted {
		return s.outcomes, fmt.Errorf("sequencer has already run")
	}
	s.state = StateRunning

	total := len(s.steps)
	for i := range s.steps {
		s.current = i
		step := &s.steps[i]

		if err := ctx.Err(); err != nil {
			return s.abort(step.Name, ResultFailed, ReasonUserCancelled, err)
		}

		s.logger.Info("Running step", "step", step.Name, "progress", fmt.Sprintf("%d/%d", i+1, total))

		result, err := s.runStep(ctx, step)
		s.outcomes = append(s.outcomes, Outcome{Step: step.Name, Result: result})
		if err != nil {
			s.state = StateAborted
			s.logger.Error("Step failed, aborting run", "step", step.Name, "result", string(result), "err", err)
			return s.outcomes, err
		}
	}

	s.state = StateSucceeded
	s.logger.Info("All steps completed", "steps", total)
	return s.outcomes, nil
}

// runStep applies the per-step algorithm: probe, conditionally apply per
// policy, then wait for readiness under the step's timeout.
func (s *Sequencer) runStep(ctx context.Context, step *Step) (Result, error) {
	presence, err := step.Probe(ctx)
	if err != nil || presence == PresenceUnknown {
		if err == nil {
			err = fmt.Errorf("existence probe returned no verdict")
		}
		return ResultFailed, &AbortError{Reason: ReasonProbeFailed, Step: step.Name, Err: err}
	}

	switch step.Policy {
	case RequireExisting:
		if presence == PresenceAbsent {
			err := fmt.Errorf("required dependency is not deployed")
			return ResultFailed, &AbortError{Reason: ReasonDependencyUnavailable, Step: step.Name, Err: err}
		}
		s.logger.Info("Dependency found, checking readiness", "step", step.Name)
		if err := s.wait(ctx, step); err != nil {
			return s.classifyWaitError(step, err)
		}
		return ResultAlreadySatisfied, nil

	case UpgradeOnExists:
		upgrade := presence != PresenceAbsent
		if upgrade {
			s.logger.Warn("Resource already exists, upgrading", "step", step.Name)
		}
		if err := step.Apply(ctx, upgrade); err != nil {
			return ResultFailed, &AbortError{Reason: ReasonApplyFailed, Step: step.Name, Err: err}
		}
		if err := s.wait(ctx, step); err != nil {
			return s.classifyWaitError(step, err)
		}
		if upgrade {
			return ResultUpgraded, nil
		}
		return ResultCreated, nil

	default: // SkipOnExists
		switch presence {
		case PresenceReady:
			s.logger.Info("Step already satisfied", "step", step.Name)
			return ResultAlreadySatisfied, nil
		case PresencePresent:
			// Applied by a previous run but not terminal yet: wait without
			// re-applying.
			s.logger.Info("Resource exists but is not ready, waiting", "step", step.Name)
			if err := s.wait(ctx, step); err != nil {
				return s.classifyWaitError(step, err)
			}
			return ResultAlreadySatisfied, nil
		default:
			if err := step.Apply(ctx, false); err != nil {
				return ResultFailed, &AbortError{Reason: ReasonApplyFailed, Step: step.Name, Err: err}
			}
			if err := s.wait(ctx, step); err != nil {
				return s.classifyWaitError(step, err)
			}
			return ResultCreated, nil
		}
	}
}

// wait runs the step's readiness check under its timeout. A nil Wait means
// the step has no readiness gate.
func (s *Sequencer) wait(ctx context.Context, step *Step) error {
	if step.Wait == nil {
		return nil
	}

	timeout := step.WaitTimeout
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Info("Waiting for readiness", "step", step.Name, "timeout", timeout)
	return step.Wait(waitCtx)
}

// classifyWaitError maps a readiness failure to its abort reason: the parent
// context being cancelled is an operator abort, a deadline is a step timeout,
// anything else is a failed apply surfacing through the wait.
func (s *Sequencer) classifyWaitError(step *Step, err error) (Result, error) {
	switch {
	case errors.Is(err, context.Canceled):
		return ResultFailed, &AbortError{Reason: ReasonUserCancelled, Step: step.Name, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return ResultTimedOut, &AbortError{Reason: ReasonStepTimedOut, Step: step.Name, Err: err}
	default:
		return ResultFailed, &AbortError{Reason: ReasonApplyFailed, Step: step.Name, Err: err}
	}
}

// abort records a terminal outcome for the current step and halts the run.
func (s *Sequencer) abort(stepName string, result Result, reason Reason, err error) ([]Outcome, error) {
	s.state = StateAborted
	s.outcomes = append(s.outcomes, Outcome{Step: stepName, Result: result})
	return s.outcomes, &AbortError{Reason: reason, Step: stepName, Err: err}
}
