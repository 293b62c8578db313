// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package adc

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// IIODir is the sysfs directory of the ADC_TSC IIO device.
var IIODir = "/sys/bus/iio/devices/iio:device0"

// SysfsADC reads the ADC through the IIO sysfs interface provided by the
// ti_am335x_adc kernel driver.
//
// This is an alternative to the Controller, for when the kernel driver owns
// the ADC, and it returns the same raw 12 bit codes.
type SysfsADC struct {
	dir   string
	files map[int]*os.File
	now   func() time.Time
	buf   [16]byte
}

// SysfsOption modifies the construction of a SysfsADC.
type SysfsOption func(*SysfsADC)

// WithIIODir overrides the IIODir.
func WithIIODir(dir string) SysfsOption {
	return func(a *SysfsADC) {
		a.dir = dir
	}
}

// WithSysfsClock sets the source of sample timestamps.
func WithSysfsClock(now func() time.Time) SysfsOption {
	return func(a *SysfsADC) {
		a.now = now
	}
}

// NewSysfsADC opens the sysfs value files for the channels.
func NewSysfsADC(channels []int, options ...SysfsOption) (*SysfsADC, error) {
	a := &SysfsADC{
		dir:   IIODir,
		files: make(map[int]*os.File),
		now:   time.Now,
	}
	for _, option := range options {
		option(a)
	}
	for _, ch := range channels {
		if err := CheckChannel(ch); err != nil {
			a.Close()
			return nil, err
		}
		if _, ok := a.files[ch]; ok {
			continue
		}
		f, err := os.Open(a.path(ch))
		if err != nil {
			a.Close()
			return nil, errors.Wrapf(err, "channel %d", ch)
		}
		a.files[ch] = f
	}
	return a, nil
}

func (a *SysfsADC) path(ch int) string {
	return filepath.Join(a.dir, fmt.Sprintf("in_voltage%d_raw", ch))
}

// Close closes the value files.
func (a *SysfsADC) Close() error {
	var err error
	for ch, f := range a.files {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
		delete(a.files, ch)
	}
	return err
}

// Sample reads the current raw code of the channel.
// The channel must have been opened by NewSysfsADC.
func (a *SysfsADC) Sample(ch int) (Sample, error) {
	if err := CheckChannel(ch); err != nil {
		return Sample{}, err
	}
	f, ok := a.files[ch]
	if !ok {
		return Sample{}, errors.Errorf("channel %d not opened", ch)
	}
	n, err := f.ReadAt(a.buf[:], 0)
	if err != nil && err != io.EOF {
		return Sample{}, errors.Wrapf(err, "read %s", f.Name())
	}
	t := a.now()
	s := strings.TrimSpace(string(a.buf[:n]))
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return Sample{}, errors.Wrapf(err, "parse %s", f.Name())
	}
	if v > MaxCode {
		return Sample{}, errors.Errorf("read %s: code %d exceeds %d", f.Name(), v, MaxCode)
	}
	return Sample{Channel: ch, Code: uint16(v), Time: t}, nil
}
