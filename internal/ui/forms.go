// Package ui provides UI components for interactive flows
package ui

import (
	"fmt"

	"github.com/charmbracelet/huh"
)

// CreateConfirmGroup creates a confirm group for a form
func CreateConfirmGroup(title, description, affirmative, negative string, value *bool) *huh.Group {
	return huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(description).
			Affirmative(affirmative).
			Negative(negative).
			Value(value),
	)
}

// CreateConfirmForm creates a confirm form
func CreateConfirmForm(title, description, affirmative, negative string, value *bool) *huh.Form {
	return huh.NewForm(CreateConfirmGroup(title, description, affirmative, negative, value))
}

// CollectWithForm is a generic form collection helper to reduce code duplication
func CollectWithForm(form *huh.Form, errorMsg string) error {
	if err := form.Run(); err != nil {
		return fmt.Errorf("%s: %w", errorMsg, err)
	}
	return nil
}
