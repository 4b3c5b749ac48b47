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

package sequencer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStep builds a step whose probe, apply and wait are canned.
type stubStep struct {
	name     string
	policy   Policy
	presence Presence
	probeErr error
	applyErr error
	waitErr  error

	applied  int
	upgraded bool
	waited   int
}

func (s *stubStep) step() Step {
	return Step{
		Name:   s.name,
		Policy: s.policy,
		Probe: func(ctx context.Context) (Presence, error) {
			return s.presence, s.probeErr
		},
		Apply: func(ctx context.Context, upgrade bool) error {
			s.applied++
			s.upgraded = upgrade
			return s.applyErr
		},
		Wait: func(ctx context.Context) error {
			s.waited++
			return s.waitErr
		},
	}
}

func TestRunExecutesStepsInOrder(t *testing.T) {
	var order []string
	steps := make([]Step, 3)
	for i := range steps {
		name := fmt.Sprintf("step-%d", i)
		steps[i] = Step{
			Name:   name,
			Policy: SkipOnExists,
			Probe: func(ctx context.Context) (Presence, error) {
				return PresenceAbsent, nil
			},
			Apply: func(ctx context.Context, upgrade bool) error {
				order = append(order, name)
				return nil
			},
		}
	}

	seq := New(steps)
	outcomes, err := seq.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"step-0", "step-1", "step-2"}, order)
	require.Len(t, outcomes, 3)
	for _, outcome := range outcomes {
		assert.Equal(t, ResultCreated, outcome.Result)
	}
	assert.Equal(t, StateSucceeded, seq.State())
}

func TestRunIsSingleUse(t *testing.T) {
	seq := New(nil)
	_, err := seq.Run(context.Background())
	require.NoError(t, err)

	_, err = seq.Run(context.Background())
	require.Error(t, err)
}

func TestSkipOnExistsNeverReappliesExisting(t *testing.T) {
	tests := []struct {
		name       string
		presence   Presence
		wantResult Result
		wantApply  int
		wantWait   int
	}{
		{name: "ready resource satisfies the step outright", presence: PresenceReady, wantResult: ResultAlreadySatisfied, wantApply: 0, wantWait: 0},
		{name: "present resource is waited on but not reapplied", presence: PresencePresent, wantResult: ResultAlreadySatisfied, wantApply: 0, wantWait: 1},
		{name: "absent resource is applied and waited on", presence: PresenceAbsent, wantResult: ResultCreated, wantApply: 1, wantWait: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubStep{name: "redis", policy: SkipOnExists, presence: tt.presence}
			seq := New([]Step{stub.step()})

			outcomes, err := seq.Run(context.Background())
			require.NoError(t, err)

			require.Len(t, outcomes, 1)
			assert.Equal(t, tt.wantResult, outcomes[0].Result)
			assert.Equal(t, tt.wantApply, stub.applied)
			assert.Equal(t, tt.wantWait, stub.waited)
		})
	}
}

func TestUpgradeOnExistsUpgradesExisting(t *testing.T) {
	stub := &stubStep{name: "kafka", policy: UpgradeOnExists, presence: PresencePresent}
	seq := New([]Step{stub.step()})

	outcomes, err := seq.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ResultUpgraded, outcomes[0].Result)
	assert.Equal(t, 1, stub.applied)
	assert.True(t, stub.upgraded)
}

func TestUpgradeOnExistsInstallsAbsent(t *testing.T) {
	stub := &stubStep{name: "kafka", policy: UpgradeOnExists, presence: PresenceAbsent}
	seq := New([]Step{stub.step()})

	outcomes, err := seq.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ResultCreated, outcomes[0].Result)
	assert.Equal(t, 1, stub.applied)
	assert.False(t, stub.upgraded)
}

func TestRequireExistingAbortsOnAbsent(t *testing.T) {
	gate := &stubStep{name: "redis", policy: RequireExisting, presence: PresenceAbsent}
	next := &stubStep{name: "mariadb", policy: SkipOnExists, presence: PresenceAbsent}
	seq := New([]Step{gate.step(), next.step()})

	outcomes, err := seq.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, ReasonDependencyUnavailable, AbortReason(err))
	assert.Equal(t, StateAborted, seq.State())

	// The run halts at the gate; the next step never runs.
	require.Len(t, outcomes, 1)
	assert.Equal(t, ResultFailed, outcomes[0].Result)
	assert.Equal(t, 0, next.applied)
}

func TestRequireExistingWaitsOnPresent(t *testing.T) {
	gate := &stubStep{name: "redis", policy: RequireExisting, presence: PresencePresent}
	seq := New([]Step{gate.step()})

	outcomes, err := seq.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ResultAlreadySatisfied, outcomes[0].Result)
	assert.Equal(t, 0, gate.applied)
	assert.Equal(t, 1, gate.waited)
}

func TestUnknownPresenceIsFatal(t *testing.T) {
	stub := &stubStep{name: "redis", policy: SkipOnExists, presence: PresenceUnknown}
	seq := New([]Step{stub.step()})

	outcomes, err := seq.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, ReasonProbeFailed, AbortReason(err))
	assert.Equal(t, ResultFailed, outcomes[0].Result)
	assert.Equal(t, 0, stub.applied)
}

func TestProbeErrorIsFatal(t *testing.T) {
	stub := &stubStep{
		name:     "redis",
		policy:   UpgradeOnExists,
		presence: PresenceUnknown,
		probeErr: errors.New("connection refused"),
	}
	seq := New([]Step{stub.step()})

	_, err := seq.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, ReasonProbeFailed, AbortReason(err))
	assert.ErrorContains(t, err, "connection refused")
}

func TestApplyErrorAborts(t *testing.T) {
	stub := &stubStep{
		name:     "mariadb",
		policy:   SkipOnExists,
		presence: PresenceAbsent,
		applyErr: errors.New("chart not found"),
	}
	seq := New([]Step{stub.step()})

	outcomes, err := seq.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, ReasonApplyFailed, AbortReason(err))
	assert.Equal(t, ResultFailed, outcomes[0].Result)
}

func TestWaitTimeoutAborts(t *testing.T) {
	step := Step{
		Name:   "backend",
		Policy: SkipOnExists,
		Probe: func(ctx context.Context) (Presence, error) {
			return PresenceAbsent, nil
		},
		Apply: func(ctx context.Context, upgrade bool) error {
			return nil
		},
		Wait: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
		WaitTimeout: 10 * time.Millisecond,
	}

	seq := New([]Step{step})
	outcomes, err := seq.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, ReasonStepTimedOut, AbortReason(err))
	assert.Equal(t, ResultTimedOut, outcomes[0].Result)

	var abort *AbortError
	require.ErrorAs(t, err, &abort)
	assert.Equal(t, "backend", abort.Step)
}

func TestParentCancellationIsUserCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	step := Step{
		Name:   "backend",
		Policy: SkipOnExists,
		Probe: func(ctx context.Context) (Presence, error) {
			return PresenceAbsent, nil
		},
		Apply: func(ctx context.Context, upgrade bool) error {
			return nil
		},
		Wait: func(ctx context.Context) error {
			cancel()
			<-ctx.Done()
			return ctx.Err()
		},
		WaitTimeout: time.Minute,
	}

	seq := New([]Step{step})
	_, err := seq.Run(ctx)
	require.Error(t, err)

	assert.Equal(t, ReasonUserCancelled, AbortReason(err))
}

func TestCancelledContextStopsBeforeNextStep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stub := &stubStep{name: "redis", policy: SkipOnExists, presence: PresenceAbsent}
	seq := New([]Step{stub.step()})

	_, err := seq.Run(ctx)
	require.Error(t, err)

	assert.Equal(t, ReasonUserCancelled, AbortReason(err))
	assert.Equal(t, 0, stub.applied)
}

func TestRerunAfterPartialDeploymentSkipsDoneSteps(t *testing.T) {
	// Simulates the second run against a cluster where redis landed but
	// kafka did not: redis reports ready and is skipped, kafka is created.
	redis := &stubStep{name: "redis", policy: SkipOnExists, presence: PresenceReady}
	kafka := &stubStep{name: "kafka", policy: SkipOnExists, presence: PresenceAbsent}

	seq := New([]Step{redis.step(), kafka.step()})
	outcomes, err := seq.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ResultAlreadySatisfied, outcomes[0].Result)
	assert.Equal(t, ResultCreated, outcomes[1].Result)
	assert.Equal(t, 0, redis.applied)
	assert.Equal(t, 1, kafka.applied)
}

func TestStepWithoutWaitCompletesAfterApply(t *testing.T) {
	step := Step{
		Name:   "namespace",
		Policy: SkipOnExists,
		Probe: func(ctx context.Context) (Presence, error) {
			return PresenceAbsent, nil
		},
		Apply: func(ctx context.Context, upgrade bool) error {
			return nil
		},
	}

	seq := New([]Step{step})
	outcomes, err := seq.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResultCreated, outcomes[0].Result)
}
