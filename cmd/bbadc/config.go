// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/warthog618/adc"
	"github.com/warthog618/adc/calib"
	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
)

// serviceConfig is the validated configuration of the service.
type serviceConfig struct {
	cid      int
	freq     float64
	channels []calib.Channel
	id       uint32
	verbose  bool
	backend  string
	timeout  time.Duration
}

func (sc serviceConfig) indices() []int {
	ii := make([]int, len(sc.channels))
	for i, c := range sc.channels {
		ii[i] = c.Index()
	}
	return ii
}

var defaultConfig = map[string]interface{}{
	"backend": "mmap",
	"id":      0,
	"verbose": false,
	"timeout": "10ms",
}

// loadConfig layers the configuration sources.
// Flags override environment, which overrides the config file, which
// overrides the defaults.
func loadConfig(flags *pflag.FlagSet) *config.Config {
	def := dict.New(dict.WithMap(defaultConfig))
	cfg := config.New(
		dict.New(dict.WithMap(flagMap(flags))),
		env.New(env.WithEnvPrefix("BBADC_")),
		config.WithDefault(def))
	cfg.Append(
		blob.NewConfigFile(cfg, "config.file", "bbadc.json", json.NewDecoder()))
	return cfg
}

// flagMap returns the flags set on the command line as a config tree.
// Flag names map to keys with '-' as the path separator, so --config-file
// maps to config.file.
func flagMap(flags *pflag.FlagSet) map[string]interface{} {
	m := make(map[string]interface{})
	flags.Visit(func(f *pflag.Flag) {
		path := strings.Split(f.Name, "-")
		n := m
		for _, p := range path[:len(path)-1] {
			c, ok := n[p].(map[string]interface{})
			if !ok {
				c = make(map[string]interface{})
				n[p] = c
			}
			n = c
		}
		n[path[len(path)-1]] = f.Value.String()
	})
	return m
}

// configError indicates the configuration is missing or invalid.
type configError struct {
	error
}

func (e configError) Unwrap() error {
	return e.error
}

func cfgErrorf(format string, args ...interface{}) error {
	return configError{errors.Errorf(format, args...)}
}

func isConfigError(err error) bool {
	var ce configError
	return errors.As(err, &ce)
}

func getString(cfg *config.Config, key string) (string, bool) {
	v, err := cfg.Get(key)
	if err != nil {
		return "", false
	}
	s := strings.TrimSpace(v.String())
	return s, s != ""
}

func requireString(cfg *config.Config, key string) (string, error) {
	s, ok := getString(cfg, key)
	if !ok {
		return "", cfgErrorf("missing required '%s'", key)
	}
	return s, nil
}

// loadCalibration builds the channel calibrations from the configuration.
func loadCalibration(cfg *config.Config, indices []int) ([]calib.Channel, error) {
	var preset calib.Option
	if s, ok := getString(cfg, "preset"); ok {
		p, err := calib.LookupPreset(s)
		if err != nil {
			return nil, configError{err}
		}
		preset = calib.WithPreset(p)
	}
	var options []calib.Option
	if s, ok := getString(cfg, "conversion"); ok {
		g, err := strconv.ParseFloat(s, 32)
		if err != nil || !(g > 0) {
			return nil, cfgErrorf("invalid conversion '%s', must be > 0", s)
		}
		options = append(options, calib.WithGain(float32(g)))
	}
	var distance map[int]bool
	if s, ok := getString(cfg, "distance"); ok {
		dd, err := parseChannels([]string{s})
		if err != nil {
			return nil, configError{err}
		}
		distance = make(map[int]bool)
		for _, d := range dd {
			if !contains(indices, d) {
				return nil, cfgErrorf("distance channel %d is not sampled", d)
			}
			distance[d] = true
		}
	}
	cc := make([]calib.Channel, 0, len(indices))
	for _, idx := range indices {
		// the supply channels keep their own trim
		oo := options
		if preset != nil && calib.DefaultPreset(idx).Channel != idx {
			oo = append([]calib.Option{preset}, options...)
		}
		c, err := calib.NewChannel(idx, oo...)
		if err != nil {
			return nil, configError{err}
		}
		dist := c.Preset().Name == calib.Signal.Name
		if distance != nil {
			dist = distance[idx]
		}
		if dist {
			c, err = calib.NewChannel(idx, append(oo, calib.WithDistance(calib.IRRange))...)
			if err != nil {
				return nil, configError{err}
			}
		}
		cc = append(cc, c)
	}
	return cc, nil
}

func contains(ii []int, v int) bool {
	for _, i := range ii {
		if i == v {
			return true
		}
	}
	return false
}

// loadChannels returns the channels from config, or from args if any are
// provided.
func loadChannels(cfg *config.Config, args []string) ([]int, error) {
	if len(args) == 0 {
		s, err := requireString(cfg, "channel")
		if err != nil {
			return nil, err
		}
		args = []string{s}
	}
	cc, err := parseChannels(args)
	if err != nil {
		return nil, configError{err}
	}
	if len(cc) == 0 {
		return nil, cfgErrorf("no channels")
	}
	return cc, nil
}

func loadBackend(cfg *config.Config) (string, time.Duration, error) {
	backend, _ := getString(cfg, "backend")
	switch backend {
	case "mmap", "sysfs":
	default:
		return "", 0, cfgErrorf("unknown backend '%s', must be mmap or sysfs", backend)
	}
	s, _ := getString(cfg, "timeout")
	timeout, err := time.ParseDuration(s)
	if err != nil || timeout <= 0 {
		return "", 0, cfgErrorf("invalid timeout '%s'", s)
	}
	return backend, timeout, nil
}

func loadVerbose(cfg *config.Config) (bool, error) {
	s, ok := getString(cfg, "verbose")
	if !ok {
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, cfgErrorf("invalid verbose '%s'", s)
	}
	return v, nil
}

// loadServiceConfig validates the configuration required by the service.
func loadServiceConfig(cfg *config.Config) (serviceConfig, error) {
	var sc serviceConfig
	s, err := requireString(cfg, "cid")
	if err != nil {
		return sc, err
	}
	cid, err := strconv.ParseUint(s, 10, 8)
	if err != nil || cid < 1 || cid > 254 {
		return sc, cfgErrorf("invalid cid '%s', must be 1-254", s)
	}
	sc.cid = int(cid)

	s, err = requireString(cfg, "freq")
	if err != nil {
		return sc, err
	}
	sc.freq, err = strconv.ParseFloat(s, 64)
	if err != nil || !(sc.freq > 0) {
		return sc, cfgErrorf("invalid freq '%s', must be > 0", s)
	}

	indices, err := loadChannels(cfg, nil)
	if err != nil {
		return sc, err
	}
	if sc.channels, err = loadCalibration(cfg, indices); err != nil {
		return sc, err
	}

	s, _ = getString(cfg, "id")
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return sc, cfgErrorf("invalid id '%s'", s)
	}
	sc.id = uint32(id)

	if sc.verbose, err = loadVerbose(cfg); err != nil {
		return sc, err
	}
	if sc.backend, sc.timeout, err = loadBackend(cfg); err != nil {
		return sc, err
	}
	return sc, nil
}

// openSource opens the ADC backend for the channels.
func openSource(backend string, channels []int, timeout time.Duration) (source, error) {
	switch backend {
	case "sysfs":
		a, err := adc.NewSysfsADC(channels)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		m, err := adc.Open()
		if err != nil {
			return nil, err
		}
		c := adc.NewController(m, adc.WithConversionTimeout(timeout))
		if err := c.Init(); err != nil {
			m.Close()
			return nil, err
		}
		return &mmapSource{c, m}, nil
	}
}

// source is a sampler.Source that must be closed.
type source interface {
	Sample(ch int) (adc.Sample, error)
	Close() error
}

type mmapSource struct {
	*adc.Controller
	m *adc.Mem
}

func (s *mmapSource) Close() error {
	s.Controller.Close()
	return s.m.Close()
}
