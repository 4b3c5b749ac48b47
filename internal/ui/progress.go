// Package ui provides UI components for interactive flows
package ui

import "fmt"

// ProgressTracker tracks position in an ordered list of deployment steps
type ProgressTracker struct {
	currentStep int
	steps       []string
}

// NewProgressTracker creates a progress tracker over the given step names
func NewProgressTracker(steps []string) *ProgressTracker {
	return &ProgressTracker{steps: steps}
}

// NextStep increments the current step
func (pt *ProgressTracker) NextStep() { pt.currentStep++ }

// GetCurrentStep returns the current step label
func (pt *ProgressTracker) GetCurrentStep() string {
	if pt.currentStep >= len(pt.steps) {
		return "Complete"
	}
	return fmt.Sprintf("Step %d/%d: %s", pt.currentStep+1, len(pt.steps), pt.steps[pt.currentStep])
}
