// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"strconv"

	"github.com/spf13/cobra"
	"github.com/warthog618/adc"
	"github.com/warthog618/adc/calib"
)

func init() {
	rootCmd.AddCommand(convertCmd)
}

var convertCmd = &cobra.Command{
	Use:   "convert <channel> <raw>...",
	Short: "Convert raw codes using the channel calibration",
	Long: `Convert raw codes to voltage, and distance, using the calibration that would
be applied to the channel.  The hardware is not accessed.`,
	Example: "  bbadc convert 5 4095",
	Args:    cobra.MinimumNArgs(2),
	RunE:    convert,
}

func convert(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd.Flags())
	indices, err := loadChannels(cfg, args[:1])
	if err != nil {
		return usageErr(cmd, err)
	}
	channels, err := loadCalibration(cfg, indices)
	if err != nil {
		return usageErr(cmd, err)
	}
	c := channels[0]
	codes, err := parseCodes(args[1:])
	if err != nil {
		return usageErr(cmd, err)
	}
	rr := make([]calib.Reading, len(codes))
	for i, code := range codes {
		rr[i] = c.Convert(adc.Sample{Channel: c.Index(), Code: code})
	}
	printReadings(codes, rr)
	return nil
}

func parseCodes(args []string) ([]uint16, error) {
	cc := make([]uint16, 0, len(args))
	for _, arg := range args {
		v, err := strconv.ParseUint(arg, 0, 16)
		if err != nil || v > adc.MaxCode {
			return nil, cfgErrorf("invalid raw code '%s', must be 0-%d", arg, adc.MaxCode)
		}
		cc = append(cc, uint16(v))
	}
	return cc, nil
}
