// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/warthog618/adc"
)

var version = "undefined"

func init() {
	addConfigFlags(rootCmd.PersistentFlags())
}

func addConfigFlags(pf *pflag.FlagSet) {
	pf.StringP("config-file", "c", "", "read configuration from a JSON file")
	pf.Uint("cid", 0, "OD4 session identifier (1-254)")
	pf.String("freq", "", "sampling frequency in Hz")
	pf.String("channel", "", "ADC channel, or comma separated channels, to sample (0-7)")
	pf.String("conversion", "", "full scale voltage, overriding the channel preset")
	pf.String("preset", "", "calibration preset (signal, dc-jack or lipo)")
	pf.String("distance", "", "channels to convert to distance (default all signal channels)")
	pf.Uint32("id", 0, "sender identifier, in case of multiple sensors")
	pf.String("backend", "", "ADC access, mmap or sysfs")
	pf.Duration("timeout", 0, "conversion timeout")
	pf.Bool("verbose", false, "log readings and errors")
}

var rootCmd = &cobra.Command{
	Use:   "bbadc",
	Short: "bbadc publishes BeagleBone ADC readings to an OD4 session",
	Long: `bbadc samples the analog inputs of the BeagleBone Black/Blue at a fixed
frequency and publishes the voltage, and optionally distance, readings to an
OD4 session.`,
	Example:       "  bbadc --cid=111 --freq=10 --channel=0 --conversion=1.8",
	Args:          cobra.NoArgs,
	RunE:          run,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// glog flags are not exposed, but it must log to stderr
	flag.CommandLine.Parse(nil)
	flag.Set("logtostderr", "true")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "bbadc: %s\n", err)
		os.Exit(1)
	}
}

func logErr(cmd *cobra.Command, err error) {
	fmt.Fprintf(os.Stderr, "bbadc %s: %s\n", cmd.Name(), err)
}

// usageErr reports an error in the command line or configuration, which is
// detected before the hardware is touched.
func usageErr(cmd *cobra.Command, err error) error {
	if isConfigError(err) {
		cmd.Usage()
	}
	return err
}

func setVerbose(v bool) {
	if v {
		flag.Set("v", "1")
	}
}

func parseChannel(arg string) (int, error) {
	name := strings.ToUpper(strings.TrimSpace(arg))
	name = strings.TrimPrefix(name, "AIN")
	ch, err := strconv.ParseInt(name, 10, 64)
	if err != nil {
		return 0, errors.Errorf("can't parse channel '%s'", arg)
	}
	if err := adc.CheckChannel(int(ch)); err != nil {
		return 0, err
	}
	return int(ch), nil
}

func parseChannels(args []string) ([]int, error) {
	var cc []int
	seen := make(map[int]bool)
	for _, arg := range args {
		for _, f := range strings.Split(arg, ",") {
			if strings.TrimSpace(f) == "" {
				continue
			}
			ch, err := parseChannel(f)
			if err != nil {
				return nil, err
			}
			if seen[ch] {
				return nil, errors.Errorf("duplicate channel %d", ch)
			}
			seen[ch] = true
			cc = append(cc, ch)
		}
	}
	return cc, nil
}
