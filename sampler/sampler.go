// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

// Package sampler periodically samples ADC channels and publishes the
// calibrated readings.
package sampler

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/warthog618/adc"
	"github.com/warthog618/adc/calib"
	"github.com/warthog618/adc/od4"
	"periph.io/x/conn/v3/physic"
)

// Source provides raw samples, e.g. an adc.Controller or adc.SysfsADC.
type Source interface {
	Sample(ch int) (adc.Sample, error)
}

// Publisher sends messages to the bus, e.g. an od4.Session.
type Publisher interface {
	Send(m od4.Message, sampleTime time.Time, senderStamp uint32) error
}

// Stats counts the activity of a Scheduler.
type Stats struct {
	Ticks         uint64
	Published     uint64
	SampleErrors  uint64
	PublishErrors uint64
}

// Scheduler samples a set of channels at a fixed frequency.
//
// A Scheduler runs in a single goroutine and is not safe for concurrent use.
type Scheduler struct {
	src      Source
	pub      Publisher
	channels []calib.Channel
	freq     physic.Frequency
	sender   uint32
	stats    Stats
}

// Option modifies the construction of a Scheduler.
type Option func(*Scheduler)

// WithFrequency sets the sampling frequency, in Hz.
func WithFrequency(hz float64) Option {
	return func(s *Scheduler) {
		s.freq = physic.Frequency(hz * float64(physic.Hertz))
	}
}

// WithSenderID sets the sender stamp attached to published readings, to
// distinguish between multiple instances on the same bus.
func WithSenderID(id uint32) Option {
	return func(s *Scheduler) {
		s.sender = id
	}
}

// New creates a Scheduler reading the channels from the source and
// publishing to the publisher.
//
// The default frequency is 1Hz.
func New(src Source, pub Publisher, channels []calib.Channel, options ...Option) (*Scheduler, error) {
	if len(channels) == 0 {
		return nil, errors.New("no channels")
	}
	seen := make(map[int]bool)
	for _, c := range channels {
		if seen[c.Index()] {
			return nil, errors.Errorf("duplicate channel %d", c.Index())
		}
		seen[c.Index()] = true
	}
	s := &Scheduler{
		src:      src,
		pub:      pub,
		channels: append([]calib.Channel(nil), channels...),
		freq:     physic.Hertz,
	}
	for _, option := range options {
		option(s)
	}
	if s.freq <= 0 || s.freq.Period() <= 0 {
		return nil, errors.Errorf("invalid frequency %s", s.freq)
	}
	return s, nil
}

// Period returns the time between ticks.
func (s *Scheduler) Period() time.Duration {
	return s.freq.Period()
}

// Stats returns the activity counts.
func (s *Scheduler) Stats() Stats {
	return s.stats
}

// Run ticks until the context is done.
//
// The first tick occurs immediately. A tick in progress is always
// completed.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.Period())
	defer ticker.Stop()
	for {
		s.Tick()
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Tick samples and publishes each of the channels once, and returns the
// readings that were obtained.
//
// A channel that fails to sample is skipped for this tick.
func (s *Scheduler) Tick() []calib.Reading {
	s.stats.Ticks++
	rr := make([]calib.Reading, 0, len(s.channels))
	for _, c := range s.channels {
		smp, err := s.src.Sample(c.Index())
		if err != nil {
			s.stats.SampleErrors++
			if glog.V(1) {
				glog.Warningf("channel %d: %v", c.Index(), err)
			}
			continue
		}
		r := c.Convert(smp)
		rr = append(rr, r)
		s.publish(od4.VoltageReading{Voltage: r.Voltage}, r)
		if r.HasDistance {
			s.publish(od4.DistanceReading{Distance: r.Distance}, r)
		}
		if glog.V(1) {
			logReading(r)
		}
	}
	return rr
}

func (s *Scheduler) publish(m od4.Message, r calib.Reading) {
	if err := s.pub.Send(m, r.Time, s.sender); err != nil {
		s.stats.PublishErrors++
		if glog.V(1) {
			glog.Warningf("channel %d: %v", r.Channel, err)
		}
		return
	}
	s.stats.Published++
}

func logReading(r calib.Reading) {
	glog.Infof("channel %d: voltage reading: %s", r.Channel, r.Potential())
	if !r.HasDistance {
		return
	}
	if d, ok := r.Range(); ok {
		glog.Infof("channel %d: distance reading: %s", r.Channel, d)
	} else {
		glog.Infof("channel %d: distance reading: no target", r.Channel)
	}
}
