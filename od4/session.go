// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

// Package od4 provides a minimal, send mostly, OD4 session.
//
// An OD4 session is the OpenDLV publish/subscribe bus: envelopes are framed
// and multicast over UDP to group 225.0.0.<cid> on port 12175, where cid is
// the conference identifier shared by all members of the session.
package od4

import (
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"
)

// Port is the UDP port used by all OD4 sessions.
const Port = 12175

// maximum UDP payload
const maxDatagram = 65507

// ErrBadCID indicates a conference identifier outside 1-254.
var ErrBadCID = errors.New("cid must be 1-254")

// Session sends messages to an OD4 session.
type Session struct {
	conn *net.UDPConn
	now  func() time.Time
}

// SessionOption modifies the construction of a Session.
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	addr string
	now  func() time.Time
}

// WithAddress overrides the multicast group address of the session.
func WithAddress(addr string) SessionOption {
	return func(o *sessionOptions) {
		o.addr = addr
	}
}

// WithClock sets the source of the envelope sent timestamps.
func WithClock(now func() time.Time) SessionOption {
	return func(o *sessionOptions) {
		o.now = now
	}
}

// GroupAddress returns the multicast address of the session for the cid.
func GroupAddress(cid int) (string, error) {
	if cid < 1 || cid > 254 {
		return "", errors.Wrapf(ErrBadCID, "cid %d", cid)
	}
	return fmt.Sprintf("225.0.0.%d:%d", cid, Port), nil
}

// NewSession creates a Session sending to the session identified by cid.
func NewSession(cid int, options ...SessionOption) (*Session, error) {
	addr, err := GroupAddress(cid)
	if err != nil {
		return nil, err
	}
	o := sessionOptions{addr: addr, now: time.Now}
	for _, option := range options {
		option(&o)
	}
	raddr, err := net.ResolveUDPAddr("udp4", o.addr)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", o.addr)
	}
	conn, err := net.DialUDP("udp4", nil, raddr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", o.addr)
	}
	return &Session{conn: conn, now: o.now}, nil
}

// Close closes the session.
func (s *Session) Close() error {
	return s.conn.Close()
}

// Send wraps the message in an envelope and sends it to the session.
// No acknowledgement is expected.
func (s *Session) Send(m Message, sampleTime time.Time, senderStamp uint32) error {
	e := Envelope{
		DataType:       m.DataType(),
		SerializedData: m.Marshal(),
		Sent:           s.now(),
		SampleTime:     sampleTime,
		SenderStamp:    senderStamp,
	}
	b, err := Frame(e.Marshal())
	if err != nil {
		return err
	}
	_, err = s.conn.Write(b)
	return errors.Wrap(err, "send")
}

// Listener receives envelopes from an OD4 session.
type Listener struct {
	conn *net.UDPConn
	buf  []byte
}

// Listen joins the session identified by cid.
func Listen(cid int) (*Listener, error) {
	addr, err := GroupAddress(cid)
	if err != nil {
		return nil, err
	}
	gaddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", addr)
	}
	conn, err := net.ListenMulticastUDP("udp4", nil, gaddr)
	if err != nil {
		return nil, errors.Wrapf(err, "join %s", addr)
	}
	return newListener(conn), nil
}

func newListener(conn *net.UDPConn) *Listener {
	return &Listener{conn: conn, buf: make([]byte, maxDatagram)}
}

// Close leaves the session.
func (l *Listener) Close() error {
	return l.conn.Close()
}

// Recv blocks until an envelope is received, and returns it with the
// Received timestamp set.
func (l *Listener) Recv() (Envelope, error) {
	var e Envelope
	n, err := l.conn.Read(l.buf)
	if err != nil {
		return e, errors.Wrap(err, "recv")
	}
	received := time.Now()
	p, err := Unframe(l.buf[:n])
	if err != nil {
		return e, err
	}
	if err := e.Unmarshal(p); err != nil {
		return e, err
	}
	e.Received = received
	return e, nil
}
