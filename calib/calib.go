// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

// Package calib converts raw ADC codes to calibrated voltages and, for
// channels connected to an analog infrared range sensor, to distances.
//
// All conversions are pure: the same channel and code always produce the
// same reading.
package calib

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/warthog618/adc"
	"periph.io/x/conn/v3/physic"
)

// FullScale is the code corresponding to the channel gain.
const FullScale = 4095.0

// NoTarget is the distance reported when the sensor has no valid target in
// range.
const NoTarget float32 = -1

// Preset is a named set of calibration constants.
type Preset struct {
	Name string
	// Gain is the input voltage corresponding to a full scale code.
	Gain float32
	// Offset is added to the scaled voltage, but only on Channel.
	Offset float32
	// Channel is the channel the Offset was trimmed for, or -1 for none.
	Channel int
}

var (
	// Signal is the range of the bare 1.8V ADC inputs.
	Signal = Preset{Name: "signal", Gain: 1.8, Channel: -1}

	// DCJack is the BeagleBone Blue DC jack supply, seen through an 11:1
	// divider on AIN5.
	DCJack = Preset{Name: "dc-jack", Gain: 1.8 * 11, Offset: -0.15, Channel: 5}

	// LiPo is the BeagleBone Blue 2S LiPo supply, seen through an 11:1
	// divider on AIN6.
	LiPo = Preset{Name: "lipo", Gain: 1.8 * 11, Offset: -0.01, Channel: 6}

	presets = []Preset{Signal, DCJack, LiPo}
)

// ErrUnknownPreset indicates a preset name is not recognised.
var ErrUnknownPreset = errors.New("unknown preset")

// LookupPreset returns the named preset.
func LookupPreset(name string) (Preset, error) {
	for _, p := range presets {
		if p.Name == name {
			return p, nil
		}
	}
	return Preset{}, errors.Wrapf(ErrUnknownPreset, "'%s'", name)
}

// DefaultPreset returns the preset for the channel, which is the supply
// preset for the supply channels and Signal for all others.
func DefaultPreset(ch int) Preset {
	for _, p := range presets {
		if p.Channel == ch {
			return p
		}
	}
	return Signal
}

// Curve is the response of an analog infrared range sensor, where the
// distance is inversely proportional to the output voltage.
//
// The raw distance is 1/(v/K) - C, in the units of the fit, and is only
// valid for voltages above MinVolts and raw distances below MaxRange.
// Valid raw distances are multiplied by Scale to convert them to metres.
type Curve struct {
	K        float32
	C        float32
	MinVolts float32
	MaxRange float32
	Scale    float32
}

// IRRange is the fit for the infrared range sensor, which reports in cm.
var IRRange = Curve{K: 10.13, C: 3.8, MinVolts: 3.0, MaxRange: 40.0, Scale: 0.01}

// Distance returns the distance in metres for the sensor voltage, or
// NoTarget if the voltage is outside the valid range of the sensor.
func (c Curve) Distance(v float32) float32 {
	if v <= c.MinVolts {
		return NoTarget
	}
	d := (1.0 / (v / c.K)) - c.C
	if d >= c.MaxRange {
		return NoTarget
	}
	return d * c.Scale
}

// Reading is a calibrated sample.
type Reading struct {
	Channel int
	Time    time.Time
	// Voltage in volts.
	Voltage float32
	// Distance in metres, or NoTarget. Only set if HasDistance.
	Distance    float32
	HasDistance bool
}

// Potential returns the voltage as a physic.ElectricPotential.
func (r Reading) Potential() physic.ElectricPotential {
	return physic.ElectricPotential(float64(r.Voltage) * float64(physic.Volt))
}

// Range returns the distance as a physic.Distance, and false if there is no
// valid target.
func (r Reading) Range() (physic.Distance, bool) {
	if !r.HasDistance || r.Distance == NoTarget {
		return 0, false
	}
	return physic.Distance(float64(r.Distance) * float64(physic.Metre)), true
}

// Channel is the calibration of a single ADC channel.
type Channel struct {
	index  int
	preset Preset
	gain   float32
	offset float32
	curve  *Curve
}

// Option modifies the construction of a Channel.
type Option func(*channelOptions)

type channelOptions struct {
	preset *Preset
	gain   float32
	curve  *Curve
}

// WithPreset applies the preset to the channel.
// The preset offset only applies if the preset was trimmed for this channel.
func WithPreset(p Preset) Option {
	return func(o *channelOptions) {
		o.preset = &p
	}
}

// WithGain overrides the gain of the preset.
func WithGain(g float32) Option {
	return func(o *channelOptions) {
		o.gain = g
	}
}

// WithDistance enables conversion of the channel voltage to distance using
// the curve.
func WithDistance(c Curve) Option {
	return func(o *channelOptions) {
		o.curve = &c
	}
}

// NewChannel creates the calibration for a channel.
//
// Without options the channel uses its DefaultPreset and has no distance
// conversion.
func NewChannel(index int, options ...Option) (Channel, error) {
	if err := adc.CheckChannel(index); err != nil {
		return Channel{}, err
	}
	var o channelOptions
	for _, option := range options {
		option(&o)
	}
	p := DefaultPreset(index)
	if o.preset != nil {
		p = *o.preset
	}
	c := Channel{index: index, preset: p, gain: p.Gain}
	if p.Channel == index {
		c.offset = p.Offset
	}
	if o.gain != 0 {
		c.gain = o.gain
	}
	if !(c.gain > 0) || math.IsInf(float64(c.gain), 0) {
		return Channel{}, errors.Errorf("channel %d: invalid gain %v", index, c.gain)
	}
	if o.curve != nil {
		if !(o.curve.K > 0) || !(o.curve.Scale > 0) {
			return Channel{}, errors.Errorf("channel %d: invalid distance curve %+v", index, *o.curve)
		}
		c.curve = o.curve
	}
	return c, nil
}

// Index returns the ADC channel.
func (c Channel) Index() int {
	return c.index
}

// Preset returns the preset the channel is based on.
func (c Channel) Preset() Preset {
	return c.preset
}

// Gain returns the full scale voltage of the channel.
func (c Channel) Gain() float32 {
	return c.gain
}

// Offset returns the voltage offset of the channel.
func (c Channel) Offset() float32 {
	return c.offset
}

// HasDistance returns true if the channel converts voltage to distance.
func (c Channel) HasDistance() bool {
	return c.curve != nil
}

// Voltage converts a raw code to volts.
func (c Channel) Voltage(code uint16) float32 {
	return float32(code)*c.gain/FullScale + c.offset
}

// Distance converts a channel voltage to distance, in metres.
// It returns NoTarget if the channel has no distance conversion.
func (c Channel) Distance(v float32) float32 {
	if c.curve == nil {
		return NoTarget
	}
	return c.curve.Distance(v)
}

// Convert calibrates a sample from the channel.
func (c Channel) Convert(s adc.Sample) Reading {
	v := c.Voltage(s.Code)
	r := Reading{
		Channel:     c.index,
		Time:        s.Time,
		Voltage:     v,
		HasDistance: c.curve != nil,
	}
	if r.HasDistance {
		r.Distance = c.curve.Distance(v)
	}
	return r
}
