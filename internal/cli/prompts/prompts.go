package prompts

import (
	"errors"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// ErrNotInteractive is returned when a question needs an answer but stdin
// is not a terminal
var ErrNotInteractive = errors.New("confirmation required but stdin is not a terminal (pass --yes)")

// Interactive reports whether questions can be asked on stdin
var Interactive = func() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Confirm prompts for yes/no confirmation
func Confirm(title, description string, defaultVal bool) (bool, error) {
	if !Interactive() {
		return defaultVal, ErrNotInteractive
	}

	value := defaultVal
	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(&value).
		Run()

	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return defaultVal, err
	}

	return value, nil
}
