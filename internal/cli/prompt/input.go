// Package prompt asks for configuration values on the terminal.
package prompt

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/manifoldco/promptui"

	"github.com/marmos91/keystone/internal/bytesize"
)

// ErrAborted is returned when the user aborts a prompt (Ctrl+C).
var ErrAborted = errors.New("aborted")

// IsAborted reports whether err means the user gave up on a prompt.
func IsAborted(err error) bool {
	return errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, ErrAborted)
}

func wrapError(err error) error {
	if err != nil && IsAborted(err) {
		return ErrAborted
	}
	return err
}

// run shows a prompt with a default value and validator.
func run(label, def string, validate promptui.ValidateFunc) (string, error) {
	p := promptui.Prompt{
		Label:     label,
		Default:   def,
		AllowEdit: true,
		Validate:  validate,
	}
	result, err := p.Run()
	return result, wrapError(err)
}

// Input prompts for free text.
func Input(label, def string) (string, error) {
	return run(label, def, nil)
}

// InputAddress prompts for a "host:port" listen address.
func InputAddress(label, def string) (string, error) {
	return run(label, def, ValidateAddress)
}

// InputInt prompts for an integer no smaller than least.
func InputInt(label string, def, least int) (int, error) {
	result, err := run(label, strconv.Itoa(def), func(s string) error { return ValidateInt(s, least) })
	if err != nil {
		return 0, err
	}
	n, _ := strconv.Atoi(result)
	return n, nil
}

// InputDuration prompts for a Go duration such as "30s".
func InputDuration(label string, def time.Duration) (time.Duration, error) {
	result, err := run(label, def.String(), ValidateDuration)
	if err != nil {
		return 0, err
	}
	d, _ := time.ParseDuration(result)
	return d, nil
}

// InputByteSize prompts for a size such as "1MiB".
func InputByteSize(label string, def bytesize.ByteSize) (bytesize.ByteSize, error) {
	result, err := run(label, def.String(), ValidateByteSize)
	if err != nil {
		return 0, err
	}
	return bytesize.ParseByteSize(result)
}

// ValidateAddress accepts "host:port" with a non-empty port.
func ValidateAddress(s string) error {
	_, port, err := net.SplitHostPort(s)
	if err != nil {
		return fmt.Errorf("must be host:port")
	}
	if port == "" {
		return fmt.Errorf("port is required")
	}
	return nil
}

// ValidateInt accepts integers >= least.
func ValidateInt(s string, least int) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("must be a valid integer")
	}
	if n < least {
		return fmt.Errorf("must be at least %d", least)
	}
	return nil
}

// ValidateDuration accepts non-negative durations.
func ValidateDuration(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("must be a duration like 30s or 2m")
	}
	if d < 0 {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

// ValidateByteSize accepts sizes like 4KiB or 1048576.
func ValidateByteSize(s string) error {
	if _, err := bytesize.ParseByteSize(s); err != nil {
		return fmt.Errorf("must be a size like 4KiB or 1MiB")
	}
	return nil
}
