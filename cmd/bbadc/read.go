// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warthog618/adc/calib"
)

func init() {
	readCmd.Flags().BoolVarP(&readOpts.Short, "short", "s", false, "single line output format")
	rootCmd.AddCommand(readCmd)
}

var (
	readCmd = &cobra.Command{
		Use:     "read [channel]...",
		Short:   "Read the current value of a channel or channels",
		Example: "  bbadc read 0 AIN5",
		RunE:    read,
	}
	readOpts = struct {
		Short bool
	}{}
)

func read(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd.Flags())
	indices, err := loadChannels(cfg, args)
	if err != nil {
		return usageErr(cmd, err)
	}
	channels, err := loadCalibration(cfg, indices)
	if err != nil {
		return usageErr(cmd, err)
	}
	backend, timeout, err := loadBackend(cfg)
	if err != nil {
		return usageErr(cmd, err)
	}
	src, err := openSource(backend, indices, timeout)
	if err != nil {
		return err
	}
	defer src.Close()
	rr := make([]calib.Reading, 0, len(channels))
	codes := make([]uint16, 0, len(channels))
	for _, c := range channels {
		s, err := src.Sample(c.Index())
		if err != nil {
			return err
		}
		rr = append(rr, c.Convert(s))
		codes = append(codes, s.Code)
	}
	if readOpts.Short {
		printReadingsShort(rr)
	} else {
		printReadings(codes, rr)
	}
	return nil
}

func printReadings(codes []uint16, rr []calib.Reading) {
	for i, r := range rr {
		fmt.Printf("ch%d: raw=%4d voltage=%s", r.Channel, codes[i], r.Potential())
		if r.HasDistance {
			fmt.Printf(" distance=%s", formatDistance(r))
		}
		fmt.Println()
	}
}

func printReadingsShort(rr []calib.Reading) {
	for i, r := range rr {
		if i > 0 {
			fmt.Print(" ")
		}
		fmt.Printf("%.4f", r.Voltage)
	}
	fmt.Println()
}

func formatDistance(r calib.Reading) string {
	if d, ok := r.Range(); ok {
		return d.String()
	}
	return "none"
}
