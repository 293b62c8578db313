// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/warthog618/adc/od4"
	"github.com/warthog618/adc/sampler"
)

func init() {
	runCmd.SetHelpTemplate(runCmd.HelpTemplate() + extendedRunHelp)
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:     "run",
	Short:   "Sample channels and publish readings to an OD4 session",
	Example: "  bbadc run --cid=111 --freq=10 --channel=0,5 --verbose",
	Args:    cobra.NoArgs,
	RunE:    run,
}

var extendedRunHelp = `
Configuration:
  Options may also be set in the environment, prefixed with BBADC_, or in a
  JSON config file, bbadc.json by default.  The cid, freq and channel are
  required.

Channels:
  Channels 5 and 6 are calibrated as the DC jack and LiPo supplies, others as
  1.8V signals.  Signal channels also publish a distance reading from an
  analog IR range sensor, unless overridden by --distance.
`

func run(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd.Flags())
	sc, err := loadServiceConfig(cfg)
	if err != nil {
		return usageErr(cmd, err)
	}
	setVerbose(sc.verbose)

	session, err := od4.NewSession(sc.cid)
	if err != nil {
		return err
	}
	defer session.Close()

	src, err := openSource(sc.backend, sc.indices(), sc.timeout)
	if err != nil {
		return err
	}
	defer src.Close()

	s, err := sampler.New(src, session, sc.channels,
		sampler.WithFrequency(sc.freq),
		sampler.WithSenderID(sc.id))
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if glog.V(1) {
		glog.Infof("sampling channels %v every %s to cid %d", sc.indices(), s.Period(), sc.cid)
	}
	err = s.Run(ctx)
	if glog.V(1) {
		glog.Infof("stopped: %+v", s.Stats())
	}
	glog.Flush()
	return err
}
