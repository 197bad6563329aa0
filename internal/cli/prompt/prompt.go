// Package prompt wraps promptui for iocomctl's interactive commands.
package prompt

import (
	"errors"
	"strconv"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user aborts a prompt (Ctrl+C).
var ErrAborted = errors.New("aborted")

// IsAborted reports whether err indicates the user aborted.
func IsAborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) || errors.Is(err, ErrAborted)
}

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsAborted(err) {
		return ErrAborted
	}
	return err
}

// Input prompts for text input with a default value.
func Input(label, defaultValue string) (string, error) {
	p := promptui.Prompt{Label: label, Default: defaultValue}
	result, err := p.Run()
	return result, wrapError(err)
}

// InputRequired prompts for text input that must not be empty.
func InputRequired(label string) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Validate: func(input string) error {
			if input == "" {
				return errors.New("value is required")
			}
			return nil
		},
	}
	result, err := p.Run()
	return result, wrapError(err)
}

// InputUint prompts for a non-negative integer.
func InputUint(label string, defaultValue uint32) (uint32, error) {
	p := promptui.Prompt{
		Label:   label,
		Default: strconv.FormatUint(uint64(defaultValue), 10),
		Validate: func(input string) error {
			_, err := strconv.ParseUint(input, 10, 32)
			return err
		},
	}
	result, err := p.Run()
	if err != nil {
		return 0, wrapError(err)
	}
	v, _ := strconv.ParseUint(result, 10, 32)
	return uint32(v), nil
}

// Password prompts for hidden input.
func Password(label string) (string, error) {
	p := promptui.Prompt{Label: label, Mask: '*'}
	result, err := p.Run()
	return result, wrapError(err)
}

// Select prompts to pick one of items.
func Select(label string, items []string) (string, error) {
	s := promptui.Select{Label: label, Items: items}
	_, result, err := s.Run()
	return result, wrapError(err)
}

// Confirm asks a yes/no question.
func Confirm(label string) (bool, error) {
	p := promptui.Prompt{Label: label, IsConfirm: true}
	_, err := p.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, wrapError(err)
	}
	return true, nil
}
