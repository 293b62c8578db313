// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package adc

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrAlreadyOpen indicates the register window is already mapped.
	ErrAlreadyOpen = errors.New("already open")

	// ErrChannelRange indicates a channel outside the range supported by
	// the ADC.
	ErrChannelRange = errors.New("channel out of range")

	// ErrNotReady indicates a sample was requested before the controller
	// was initialised.
	ErrNotReady = errors.New("controller not ready")

	// ErrClockEnableTimeout indicates the ADC_TSC clock module did not
	// report enabled within the allowed number of polls.
	ErrClockEnableTimeout = errors.New("timeout waiting for clock enable")

	// ErrConversionTimeout indicates a conversion did not reach the FIFO
	// within the conversion timeout.
	ErrConversionTimeout = errors.New("timeout waiting for conversion")
)

// MapError indicates the register window could not be mapped.
type MapError struct {
	Op   string
	Path string
	Err  error
}

func (e *MapError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *MapError) Unwrap() error {
	return e.Err
}

// IsTimeout returns true if the error is the result of the hardware failing
// to respond in time.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrClockEnableTimeout) || errors.Is(err, ErrConversionTimeout)
}

// CheckChannel returns an error if the channel is not supported by the ADC.
func CheckChannel(ch int) error {
	if ch < 0 || ch > MaxChannel {
		return errors.Wrapf(ErrChannelRange, "channel %d, must be 0-%d", ch, MaxChannel)
	}
	return nil
}
