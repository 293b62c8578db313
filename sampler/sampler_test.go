// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package sampler_test

import (
	"context"
	"flag"
	"io"
	"os"
	"testing"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/adc"
	"github.com/warthog618/adc/calib"
	"github.com/warthog618/adc/od4"
	"github.com/warthog618/adc/sampler"
)

type fakeSource struct {
	codes map[int]uint16
	errs  map[int]error
	now   time.Time
	reads []int
}

func (f *fakeSource) Sample(ch int) (adc.Sample, error) {
	f.reads = append(f.reads, ch)
	if err := f.errs[ch]; err != nil {
		return adc.Sample{}, err
	}
	f.now = f.now.Add(time.Millisecond)
	return adc.Sample{Channel: ch, Code: f.codes[ch], Time: f.now}, nil
}

type sent struct {
	msg    od4.Message
	time   time.Time
	sender uint32
}

type fakePublisher struct {
	sent []sent
	err  error
}

func (f *fakePublisher) Send(m od4.Message, t time.Time, sender uint32) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sent{m, t, sender})
	return nil
}

func newChannel(t *testing.T, index int, options ...calib.Option) calib.Channel {
	t.Helper()
	c, err := calib.NewChannel(index, options...)
	require.Nil(t, err)
	return c
}

func TestNew(t *testing.T) {
	src := &fakeSource{}
	pub := &fakePublisher{}
	c0 := newChannel(t, 0)

	s, err := sampler.New(src, pub, []calib.Channel{c0})
	require.Nil(t, err)
	assert.Equal(t, time.Second, s.Period())

	s, err = sampler.New(src, pub, []calib.Channel{c0}, sampler.WithFrequency(10))
	require.Nil(t, err)
	assert.Equal(t, 100*time.Millisecond, s.Period())

	_, err = sampler.New(src, pub, nil)
	assert.NotNil(t, err)
	_, err = sampler.New(src, pub, []calib.Channel{c0, c0})
	assert.NotNil(t, err)
	_, err = sampler.New(src, pub, []calib.Channel{c0}, sampler.WithFrequency(0))
	assert.NotNil(t, err)
	_, err = sampler.New(src, pub, []calib.Channel{c0}, sampler.WithFrequency(-5))
	assert.NotNil(t, err)
}

func TestTick(t *testing.T) {
	start := time.Date(2019, 3, 4, 5, 6, 7, 0, time.UTC)
	src := &fakeSource{codes: map[int]uint16{0: 2048, 5: 4095}, now: start}
	pub := &fakePublisher{}
	channels := []calib.Channel{
		newChannel(t, 0, calib.WithGain(18), calib.WithDistance(calib.IRRange)),
		newChannel(t, 5),
	}
	s, err := sampler.New(src, pub, channels, sampler.WithSenderID(7))
	require.Nil(t, err)

	rr := s.Tick()
	require.Len(t, rr, 2)
	assert.Equal(t, []int{0, 5}, src.reads)
	require.Len(t, pub.sent, 3)

	// channel 0: voltage then distance, both stamped with capture time
	v, ok := pub.sent[0].msg.(od4.VoltageReading)
	require.True(t, ok)
	assert.InDelta(t, 2048*18/4095.0, v.Voltage, 1e-5)
	d, ok := pub.sent[1].msg.(od4.DistanceReading)
	require.True(t, ok)
	assert.Equal(t, calib.IRRange.Distance(v.Voltage), d.Distance)
	assert.Equal(t, start.Add(time.Millisecond), pub.sent[0].time)
	assert.Equal(t, start.Add(time.Millisecond), pub.sent[1].time)

	// supply channel: voltage only
	v, ok = pub.sent[2].msg.(od4.VoltageReading)
	require.True(t, ok)
	assert.InDelta(t, 19.65, v.Voltage, 1e-4)
	assert.Equal(t, start.Add(2*time.Millisecond), pub.sent[2].time)

	for _, p := range pub.sent {
		assert.Equal(t, uint32(7), p.sender)
	}
	assert.Equal(t, sampler.Stats{Ticks: 1, Published: 3}, s.Stats())
}

func TestTickSampleError(t *testing.T) {
	src := &fakeSource{
		codes: map[int]uint16{1: 100, 2: 200},
		errs:  map[int]error{1: errors.Wrap(adc.ErrConversionTimeout, "channel 1")},
	}
	pub := &fakePublisher{}
	s, err := sampler.New(src, pub, []calib.Channel{newChannel(t, 1), newChannel(t, 2)})
	require.Nil(t, err)

	rr := s.Tick()
	require.Len(t, rr, 1)
	assert.Equal(t, 2, rr[0].Channel)
	// nothing fabricated for the failed channel
	require.Len(t, pub.sent, 1)
	v, ok := pub.sent[0].msg.(od4.VoltageReading)
	require.True(t, ok)
	assert.InDelta(t, 200*1.8/4095, v.Voltage, 1e-6)

	// and the next tick carries on
	delete(src.errs, 1)
	rr = s.Tick()
	assert.Len(t, rr, 2)
	assert.Equal(t, sampler.Stats{Ticks: 2, Published: 3, SampleErrors: 1}, s.Stats())
}

// captureLog returns what glog writes to stderr while fn runs at the
// verbosity.
func captureLog(t *testing.T, verbosity string, fn func()) string {
	t.Helper()
	require.Nil(t, flag.Set("logtostderr", "true"))
	require.Nil(t, flag.Set("v", verbosity))
	defer flag.Set("v", "0")
	r, w, err := os.Pipe()
	require.Nil(t, err)
	defer r.Close()
	stderr := os.Stderr
	os.Stderr = w
	fn()
	glog.Flush()
	os.Stderr = stderr
	w.Close()
	b, err := io.ReadAll(r)
	require.Nil(t, err)
	return string(b)
}

func TestTickLogging(t *testing.T) {
	src := &fakeSource{
		codes: map[int]uint16{2: 200},
		errs:  map[int]error{1: errors.Wrap(adc.ErrConversionTimeout, "channel 1")},
	}
	s, err := sampler.New(src, &fakePublisher{}, []calib.Channel{newChannel(t, 1), newChannel(t, 2)})
	require.Nil(t, err)

	out := captureLog(t, "0", func() { s.Tick() })
	assert.Empty(t, out)

	out = captureLog(t, "1", func() { s.Tick() })
	assert.Contains(t, out, "channel 1: channel 1: timeout waiting for conversion")
	assert.Contains(t, out, "channel 2: voltage reading")
}

func TestTickPublishError(t *testing.T) {
	src := &fakeSource{codes: map[int]uint16{0: 1}}
	pub := &fakePublisher{err: errors.New("network down")}
	s, err := sampler.New(src, pub, []calib.Channel{newChannel(t, 0, calib.WithDistance(calib.IRRange))})
	require.Nil(t, err)
	rr := s.Tick()
	assert.Len(t, rr, 1)
	assert.Equal(t, sampler.Stats{Ticks: 1, PublishErrors: 2}, s.Stats())
}

func TestRun(t *testing.T) {
	src := &fakeSource{codes: map[int]uint16{3: 1000}}
	pub := &fakePublisher{}
	s, err := sampler.New(src, pub, []calib.Channel{newChannel(t, 3)}, sampler.WithFrequency(1000))
	require.Nil(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	select {
	case err := <-done:
		assert.Nil(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	stats := s.Stats()
	assert.GreaterOrEqual(t, stats.Ticks, uint64(2))
	assert.Equal(t, stats.Ticks, stats.Published)
}

func TestRunCancelled(t *testing.T) {
	src := &fakeSource{}
	pub := &fakePublisher{}
	s, err := sampler.New(src, pub, []calib.Channel{newChannel(t, 0)})
	require.Nil(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Nil(t, s.Run(ctx))
	assert.Equal(t, uint64(1), s.Stats().Ticks)
}
