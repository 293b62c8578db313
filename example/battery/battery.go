// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"fmt"
	"time"

	"github.com/warthog618/adc"
	"github.com/warthog618/adc/calib"
	"github.com/warthog618/config"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
	"github.com/warthog618/config/pflag"
)

// This example reports the DC jack and LiPo supply voltages of a BeagleBone
// Blue, read through the IIO sysfs interface so it can run alongside the
// kernel ADC driver.  The channels and period can be altered via
// configuration (env or flag).
func main() {
	cfg := loadConfig()
	channels := []calib.Channel{
		mustChannel(int(cfg.MustGet("dc").Int())),
		mustChannel(int(cfg.MustGet("lipo").Int())),
	}
	a, err := adc.NewSysfsADC([]int{channels[0].Index(), channels[1].Index()})
	if err != nil {
		panic(err)
	}
	defer a.Close()
	period := cfg.MustGet("period").Duration()
	for i := 0; i < cfg.MustGet("count").Int(); i++ {
		for _, c := range channels {
			s, err := a.Sample(c.Index())
			if err != nil {
				fmt.Printf("%s: %v\n", c.Preset().Name, err)
				continue
			}
			fmt.Printf("%s: %s\n", c.Preset().Name, c.Convert(s).Potential())
		}
		time.Sleep(period)
	}
}

func mustChannel(ch int) calib.Channel {
	c, err := calib.NewChannel(ch)
	if err != nil {
		panic(err)
	}
	return c
}

func loadConfig() *config.Config {
	defaultConfig := map[string]interface{}{
		"dc":     calib.DCJack.Channel,
		"lipo":   calib.LiPo.Channel,
		"period": "1s",
		"count":  10,
	}
	def := dict.New(dict.WithMap(defaultConfig))
	// highest priority sources first - flags override environment
	cfg := config.New(
		pflag.New(),
		env.New(env.WithEnvPrefix("BATTERY_")),
		config.WithDefault(def))
	cfg = cfg.GetConfig("", config.WithMust)
	return cfg
}
