package down

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/term"
)

func TestPromptSkippedWithYes(t *testing.T) {
	assert.False(t, promptRequired(true))
}

func TestPromptSkippedOnNonInteractiveStdin(t *testing.T) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		t.Skip("stdin is a terminal")
	}
	assert.False(t, promptRequired(false))
}
