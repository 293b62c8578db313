// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package calib_test

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/adc"
	"github.com/warthog618/adc/calib"
	"periph.io/x/conn/v3/physic"
)

func mustChannel(t *testing.T, index int, options ...calib.Option) calib.Channel {
	t.Helper()
	c, err := calib.NewChannel(index, options...)
	require.Nil(t, err)
	return c
}

func TestVoltage(t *testing.T) {
	for _, g := range []float32{1.8, 19.8, 3.3} {
		c := mustChannel(t, 0, calib.WithGain(g))
		for r := 0; r <= 4095; r++ {
			expected := float64(r) * float64(g) / 4095
			assert.InDelta(t, expected, c.Voltage(uint16(r)), 1e-5, "code %d gain %v", r, g)
		}
	}
}

func TestVoltageScenarios(t *testing.T) {
	c := mustChannel(t, 0, calib.WithGain(1.8))
	assert.InDelta(t, 0.9002, c.Voltage(2048), 1e-3)

	c = mustChannel(t, 5, calib.WithPreset(calib.DCJack))
	assert.InDelta(t, 19.65, c.Voltage(4095), 1e-4)
}

func TestOffsetOnlyOnDesignatedChannel(t *testing.T) {
	for ch := 0; ch <= adc.MaxChannel; ch++ {
		c := mustChannel(t, ch, calib.WithPreset(calib.DCJack))
		if ch == calib.DCJack.Channel {
			assert.Equal(t, calib.DCJack.Offset, c.Offset())
		} else {
			assert.Zero(t, c.Offset(), "channel %d", ch)
			assert.InDelta(t, 19.8, c.Voltage(4095), 1e-5, "channel %d", ch)
		}
	}
	c := mustChannel(t, 5, calib.WithPreset(calib.LiPo))
	assert.Zero(t, c.Offset())
	c = mustChannel(t, 6, calib.WithPreset(calib.LiPo))
	assert.Equal(t, calib.LiPo.Offset, c.Offset())
}

func TestDefaultPreset(t *testing.T) {
	assert.Equal(t, calib.DCJack, calib.DefaultPreset(5))
	assert.Equal(t, calib.LiPo, calib.DefaultPreset(6))
	for _, ch := range []int{0, 1, 2, 3, 4, 7} {
		assert.Equal(t, calib.Signal, calib.DefaultPreset(ch))
	}
	c := mustChannel(t, 5)
	assert.Equal(t, calib.DCJack, c.Preset())
	assert.Equal(t, float32(19.8), c.Gain())
	assert.Equal(t, float32(-0.15), c.Offset())
	assert.False(t, c.HasDistance())
}

func TestGainOverride(t *testing.T) {
	// override keeps the preset offset
	c := mustChannel(t, 5, calib.WithGain(20), calib.WithPreset(calib.DCJack))
	assert.Equal(t, float32(20), c.Gain())
	assert.Equal(t, float32(-0.15), c.Offset())
}

func TestLookupPreset(t *testing.T) {
	for _, p := range []calib.Preset{calib.Signal, calib.DCJack, calib.LiPo} {
		l, err := calib.LookupPreset(p.Name)
		assert.Nil(t, err)
		assert.Equal(t, p, l)
	}
	_, err := calib.LookupPreset("bogus")
	assert.True(t, errors.Is(err, calib.ErrUnknownPreset))
}

func TestNewChannelInvalid(t *testing.T) {
	for _, ch := range []int{-1, 8} {
		_, err := calib.NewChannel(ch)
		assert.True(t, errors.Is(err, adc.ErrChannelRange), "channel %d", ch)
	}
	_, err := calib.NewChannel(0, calib.WithGain(-1.8))
	assert.NotNil(t, err)
	bad := calib.IRRange
	bad.K = 0
	_, err = calib.NewChannel(0, calib.WithDistance(bad))
	assert.NotNil(t, err)
}

func TestDistance(t *testing.T) {
	c := calib.IRRange
	assert.Equal(t, calib.NoTarget, c.Distance(3.0))
	assert.Equal(t, calib.NoTarget, c.Distance(2.0))
	assert.Equal(t, calib.NoTarget, c.Distance(0))
	assert.Equal(t, calib.NoTarget, c.Distance(-1))
	assert.InDelta(t, -0.01774, c.Distance(5.0), 1e-5)
	for v := float32(3.01); v < 18; v += 0.37 {
		raw := 1/(float64(v)/10.13) - 3.8
		assert.InDelta(t, raw/100, c.Distance(v), 1e-5, "voltage %v", v)
	}
}

func TestDistanceMaxRange(t *testing.T) {
	// a curve where the raw distance exceeds the range above MinVolts
	c := calib.Curve{K: 200, C: 0, MinVolts: 3.0, MaxRange: 40.0, Scale: 0.01}
	// raw distances 50, 25 and 39
	assert.Equal(t, calib.NoTarget, c.Distance(4.0))
	assert.InDelta(t, 0.25, c.Distance(8.0), 1e-6)
	assert.InDelta(t, 0.39, c.Distance(200/39.0), 1e-5)
}

func TestConvert(t *testing.T) {
	now := time.Date(2019, 2, 3, 4, 5, 6, 0, time.UTC)
	c := mustChannel(t, 1, calib.WithGain(18), calib.WithDistance(calib.IRRange))
	assert.True(t, c.HasDistance())
	s := adc.Sample{Channel: 1, Code: 1137, Time: now}
	r := c.Convert(s)
	assert.Equal(t, 1, r.Channel)
	assert.Equal(t, now, r.Time)
	assert.InDelta(t, 4.998, r.Voltage, 1e-3)
	assert.True(t, r.HasDistance)
	assert.InDelta(t, calib.IRRange.Distance(r.Voltage), r.Distance, 1e-9)
	// idempotent
	for i := 0; i < 10; i++ {
		assert.Equal(t, r, c.Convert(s))
	}

	// below threshold
	s.Code = 100
	r = c.Convert(s)
	assert.Equal(t, calib.NoTarget, r.Distance)
	_, ok := r.Range()
	assert.False(t, ok)

	// no distance on plain channels
	c = mustChannel(t, 2)
	r = c.Convert(adc.Sample{Channel: 2, Code: 4095})
	assert.False(t, r.HasDistance)
	assert.Equal(t, calib.NoTarget, c.Distance(5))
}

func TestReadingUnits(t *testing.T) {
	r := calib.Reading{Voltage: 1.5, Distance: 0.25, HasDistance: true}
	assert.InDelta(t, float64(1500*physic.MilliVolt), float64(r.Potential()), 1e3)
	d, ok := r.Range()
	assert.True(t, ok)
	assert.InDelta(t, float64(250*physic.MilliMetre), float64(d), 1e3)
}
