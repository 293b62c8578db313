// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

//go:build linux
// +build linux

package main

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/adc/od4"
)

type fakeReceiver struct {
	envs []od4.Envelope
	err  error
}

func (f *fakeReceiver) Recv() (od4.Envelope, error) {
	if len(f.envs) == 0 {
		if f.err != nil {
			return od4.Envelope{}, f.err
		}
		return od4.Envelope{SenderStamp: 99}, nil
	}
	e := f.envs[0]
	f.envs = f.envs[1:]
	return e, nil
}

// waitClosed waits for the channel to close, discarding any events.
func waitClosed(t *testing.T, evtchan <-chan event) {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case _, ok := <-evtchan:
			if !ok {
				return
			}
		case <-timeout:
			require.Fail(t, "receiver not stopped")
		}
	}
}

func TestReceive(t *testing.T) {
	r := &fakeReceiver{envs: []od4.Envelope{{SenderStamp: 1}, {SenderStamp: 2}}}
	done := make(chan struct{})
	evtchan := receive(r, done)
	for _, sender := range []uint32{1, 2} {
		evt := <-evtchan
		assert.Nil(t, evt.err)
		assert.Equal(t, sender, evt.env.SenderStamp)
	}
	// no longer being read
	close(done)
	waitClosed(t, evtchan)
}

func TestReceiveError(t *testing.T) {
	r := &fakeReceiver{err: errors.New("closed")}
	done := make(chan struct{})
	defer close(done)
	evtchan := receive(r, done)
	evt := <-evtchan
	assert.NotNil(t, evt.err)
	waitClosed(t, evtchan)
}
