// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warthog618/adc/od4"
)

func init() {
	listenCmd.Flags().UintVarP(&listenOpts.NumEvents, "num-events", "n", 0, "exit after n readings")
	listenCmd.Flags().Int64VarP(&listenOpts.Sender, "sender", "i", -1, "only display readings from this sender")
	rootCmd.AddCommand(listenCmd)
}

var (
	listenCmd = &cobra.Command{
		Use:   "listen",
		Short: "Display the readings published to an OD4 session",
		Long: `Join an OD4 session and print the voltage and distance readings published
to it, such as those published by bbadc run.`,
		Example: "  bbadc listen --cid=111",
		Args:    cobra.NoArgs,
		RunE:    listen,
	}
	listenOpts = struct {
		NumEvents uint
		Sender    int64
	}{}
)

type event struct {
	env od4.Envelope
	err error
}

func listen(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd.Flags())
	s, err := requireString(cfg, "cid")
	if err != nil {
		return usageErr(cmd, err)
	}
	cid, err := strconv.Atoi(s)
	if err != nil {
		return usageErr(cmd, cfgErrorf("invalid cid '%s'", s))
	}
	l, err := od4.Listen(cid)
	if err != nil {
		return usageErr(cmd, err)
	}
	defer l.Close()
	done := make(chan struct{})
	defer close(done)
	listenWait(cmd, receive(l, done))
	return nil
}

type receiver interface {
	Recv() (od4.Envelope, error)
}

// receive forwards envelopes from the receiver until the receiver fails or
// done is closed, and then closes the returned channel.
func receive(r receiver, done <-chan struct{}) <-chan event {
	evtchan := make(chan event)
	go func() {
		defer close(evtchan)
		for {
			e, err := r.Recv()
			select {
			case evtchan <- event{e, err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return evtchan
}

func listenWait(cmd *cobra.Command, evtchan <-chan event) {
	sigdone := make(chan os.Signal, 1)
	signal.Notify(sigdone, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigdone)
	count := uint(0)
	for {
		select {
		case evt, ok := <-evtchan:
			if !ok {
				return
			}
			if evt.err != nil {
				logErr(cmd, evt.err)
				return
			}
			line, ok := formatEnvelope(evt.env)
			if !ok {
				continue
			}
			if listenOpts.Sender >= 0 && uint32(listenOpts.Sender) != evt.env.SenderStamp {
				continue
			}
			fmt.Println(line)
			count++
			if listenOpts.NumEvents > 0 && count >= listenOpts.NumEvents {
				return
			}
		case <-sigdone:
			return
		}
	}
}

// formatEnvelope returns the display form of the readings, and false for
// other message types.
func formatEnvelope(e od4.Envelope) (string, bool) {
	var what string
	switch e.DataType {
	case od4.VoltageReadingID:
		var m od4.VoltageReading
		if err := m.Unmarshal(e.SerializedData); err != nil {
			return "", false
		}
		what = fmt.Sprintf("voltage  %.4f V", m.Voltage)
	case od4.DistanceReadingID:
		var m od4.DistanceReading
		if err := m.Unmarshal(e.SerializedData); err != nil {
			return "", false
		}
		what = fmt.Sprintf("distance %.4f m", m.Distance)
	default:
		return "", false
	}
	return fmt.Sprintf("sender:%3d %s %s", e.SenderStamp, what,
		e.SampleTime.Format(time.RFC3339Nano)), true
}
