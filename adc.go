// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

// Package adc provides access to the ADC_TSC analog to digital converter of
// the TI AM335x, as found on the BeagleBone Black and Blue.
//
// Supports:
// - bring-up of the ADC_TSC clock and step configuration
// - one-shot, software triggered, conversions of the 8 analog inputs (AIN0-7)
// - reading the same inputs through the Linux IIO sysfs interface
//
// Example of use:
//
//	m, err := adc.Open()
//	if err != nil {
//		panic(err)
//	}
//	defer m.Close()
//
//	c := adc.NewController(m)
//	if err := c.Init(); err != nil {
//		panic(err)
//	}
//	defer c.Close()
//
//	s, err := c.Sample(0)
//
// Conversions return raw 12 bit codes. Scaling to volts is performed by the
// calib package.
//
// See the AM335x Technical Reference Manual (spruh73) for full details of the
// ADC_TSC.
package adc

import (
	"time"

	"github.com/pkg/errors"
)

// Sample is a single conversion result.
type Sample struct {
	// Channel is the analog input sampled.
	Channel int
	// Code is the raw 12 bit conversion result.
	Code uint16
	// Time is the time the result was read from the ADC.
	Time time.Time
}

// State is the initialisation state of a Controller.
type State int

const (
	// Uninitialized indicates the ADC has not been touched.
	Uninitialized State = iota
	// ClockEnabling indicates the clock has been requested but not yet
	// confirmed.
	ClockEnabling
	// StepsConfigured indicates the steps are configured but the ADC is not
	// yet enabled.
	StepsConfigured
	// Ready indicates the ADC is accepting triggers.
	Ready
)

var stateNames = map[State]string{
	Uninitialized:   "uninitialized",
	ClockEnabling:   "clock-enabling",
	StepsConfigured: "steps-configured",
	Ready:           "ready",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Controller drives the ADC_TSC through its registers.
//
// A Controller is not safe for concurrent use.
type Controller struct {
	b     *Bank
	state State
	// time to sleep between polls of hardware status
	tpoll time.Duration
	// maximum number of polls of the clock enable
	clkPolls int
	// maximum time to wait for a conversion
	tconv time.Duration
	now   func() time.Time
}

// Option modifies the construction of a Controller.
type Option func(*Controller)

// WithPollInterval sets the time slept between polls of the hardware.
// A zero interval spins.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		c.tpoll = d
	}
}

// WithClockEnablePolls sets the number of times the clock control is polled
// for the clock enable before giving up.
func WithClockEnablePolls(n int) Option {
	return func(c *Controller) {
		c.clkPolls = n
	}
}

// WithConversionTimeout sets the maximum time to wait for a conversion
// result to reach the FIFO.
func WithConversionTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.tconv = d
	}
}

// WithClock sets the source of sample timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

const (
	defaultPollInterval      = 100 * time.Microsecond
	defaultClockEnablePolls  = 1000
	defaultConversionTimeout = 10 * time.Millisecond
)

// NewController creates a Controller for the ADC_TSC accessible through the
// registers.
//
// The hardware is not touched until Init is called.
func NewController(r Registers, options ...Option) *Controller {
	c := &Controller{
		b:        NewBank(r),
		tpoll:    defaultPollInterval,
		clkPolls: defaultClockEnablePolls,
		tconv:    defaultConversionTimeout,
		now:      time.Now,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// State returns the current initialisation state of the controller.
func (c *Controller) State() State {
	return c.state
}

// Init enables the ADC_TSC clock, configures a step for each channel and
// enables the ADC.
//
// Each step is configured as a one-shot, software triggered, conversion
// averaging 8 samples, with no open or sample delay.  Step config write
// protection is restored once the steps are configured.
//
// Init on a Ready controller does nothing.
func (c *Controller) Init() error {
	if c.state == Ready {
		return nil
	}
	c.state = ClockEnabling
	c.b.SetBits(RegClkCtrl, clkModuleEnable)
	if err := c.waitClock(); err != nil {
		c.state = Uninitialized
		return err
	}

	// ADC must be disabled while steps are configured
	c.b.ClearBits(RegCtrl, ctrlEnable)
	c.b.SetBits(RegCtrl, ctrlWriteProtectOff)
	for ch := 0; ch <= MaxChannel; ch++ {
		step := ch + 1
		c.b.Write(RegStepConfig(step), stepConfig(ch))
		c.b.Write(RegStepDelay(step), 0)
	}
	c.b.ClearBits(RegCtrl, ctrlWriteProtectOff)
	c.state = StepsConfigured

	c.b.Write(RegStepEn, 0)
	c.b.SetBits(RegCtrl, ctrlStepIDTag|ctrlEnable)
	c.state = Ready
	return nil
}

func (c *Controller) waitClock() error {
	for i := 0; i < c.clkPolls; i++ {
		if c.b.ReadBits(RegClkCtrl, clkModuleEnable) != 0 {
			return nil
		}
		time.Sleep(c.tpoll)
	}
	return errors.Wrapf(ErrClockEnableTimeout, "after %d polls", c.clkPolls)
}

// Close disables the ADC.
// The clock is left running.
func (c *Controller) Close() {
	if c.state == Uninitialized {
		return
	}
	c.b.Write(RegStepEn, 0)
	c.b.ClearBits(RegCtrl, ctrlEnable)
	c.state = Uninitialized
}

// Sample triggers a conversion of the channel and returns the result.
//
// Any stale results are flushed from the FIFO before the conversion is
// triggered, and results tagged with another step are discarded.
func (c *Controller) Sample(ch int) (Sample, error) {
	if err := CheckChannel(ch); err != nil {
		return Sample{}, err
	}
	if c.state != Ready {
		return Sample{}, errors.Wrapf(ErrNotReady, "state %s", c.state)
	}
	c.b.DrainFIFO()
	c.b.SetBits(RegStepEn, stepMask(ch))
	code, err := c.waitStep(ch + 1)
	if err != nil {
		// one-shot steps clear their own enable, except when they never ran
		c.b.ClearBits(RegStepEn, stepMask(ch))
		return Sample{}, errors.Wrapf(err, "channel %d", ch)
	}
	return Sample{Channel: ch, Code: code, Time: c.now()}, nil
}

// waitStep pops FIFO entries until one from the step is found.
func (c *Controller) waitStep(step int) (uint16, error) {
	deadline := time.Now().Add(c.tconv)
	for {
		for i := 0; i < FIFODepth && c.b.FIFOCount() > 0; i++ {
			if code, s := c.b.ReadFIFO(); s == step {
				return code, nil
			}
		}
		if !time.Now().Before(deadline) {
			return 0, errors.Wrapf(ErrConversionTimeout, "after %s", c.tconv)
		}
		if c.tpoll > 0 {
			time.Sleep(c.tpoll)
		}
	}
}
