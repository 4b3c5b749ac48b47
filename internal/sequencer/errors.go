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
	"errors"
	"fmt"
)

// Reason classifies why a run was aborted. Every reason is fatal: the run
// never continues past the step that produced it and nothing is rolled back.
type Reason string

const (
	// ReasonToolingMissing means a pre-flight check failed before any step ran,
	// e.g. the cluster could not be reached or a client could not be built.
	ReasonToolingMissing Reason = "tooling-missing"

	// ReasonUserCancelled means the operator declined the confirmation prompt
	// or interrupted the run.
	ReasonUserCancelled Reason = "user-cancelled"

	// ReasonDependencyUnavailable means a step with the RequireExisting policy
	// found its resource absent. The sequencer has no authority to create it.
	ReasonDependencyUnavailable Reason = "dependency-unavailable"

	// ReasonStepTimedOut means a readiness check did not resolve within its
	// configured timeout.
	ReasonStepTimedOut Reason = "step-timed-out"

	// ReasonApplyFailed means a create or upgrade action returned an error.
	ReasonApplyFailed Reason = "apply-failed"

	// ReasonProbeFailed means an existence probe could not determine whether
	// the resource exists. An unknown probe outcome is never treated as
	// absent; installing into a cluster we cannot query is worse than
	// stopping.
	ReasonProbeFailed Reason = "probe-failed"
)

// AbortError is the terminal error of a failed run. It names the step that
// halted the run and carries the underlying cause.
type AbortError struct {
	Reason Reason
	Step   string
	Err    error
}

func (e *AbortError) Error() string {
	if e.Step == "" {
		return fmt.Sprintf("run aborted (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("run aborted at step %q (%s): %v", e.Step, e.Reason, e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }

// AbortReason extracts the abort reason from err, or "" if err is not an
// AbortError.
func AbortReason(err error) Reason {
	var abort *AbortError
	if errors.As(err, &abort) {
		return abort.Reason
	}
	return ""
}
