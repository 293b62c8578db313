// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package od4

import (
	"time"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Envelope wraps a serialised message for transport on an OD4 session.
type Envelope struct {
	DataType       int32
	SerializedData []byte
	Sent           time.Time
	Received       time.Time
	SampleTime     time.Time
	SenderStamp    uint32
}

// envelope and timestamp field numbers
const (
	envDataType       protowire.Number = 1
	envSerializedData protowire.Number = 2
	envSent           protowire.Number = 3
	envReceived       protowire.Number = 4
	envSampleTime     protowire.Number = 5
	envSenderStamp    protowire.Number = 6

	tsSeconds      protowire.Number = 1
	tsMicroseconds protowire.Number = 2
)

const (
	frameMagic0 = 0x0D
	frameMagic1 = 0xA4
	frameHeader = 5
	maxFrame    = 1<<24 - 1
)

var (
	// ErrBadFrame indicates a datagram is not an OD4 frame.
	ErrBadFrame = errors.New("bad frame")

	// ErrBadEnvelope indicates the frame payload could not be decoded.
	ErrBadEnvelope = errors.New("bad envelope")
)

func appendSint32(b []byte, num protowire.Number, v int32) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(int64(v)))
}

func appendTimeStamp(b []byte, num protowire.Number, t time.Time) []byte {
	var ts []byte
	if !t.IsZero() {
		ts = appendSint32(ts, tsSeconds, int32(t.Unix()))
		ts = appendSint32(ts, tsMicroseconds, int32(t.Nanosecond()/1000))
	} else {
		ts = appendSint32(ts, tsSeconds, 0)
		ts = appendSint32(ts, tsMicroseconds, 0)
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, ts)
}

// Marshal returns the protobuf encoding of the envelope.
func (e *Envelope) Marshal() []byte {
	var b []byte
	b = appendSint32(b, envDataType, e.DataType)
	b = protowire.AppendTag(b, envSerializedData, protowire.BytesType)
	b = protowire.AppendBytes(b, e.SerializedData)
	b = appendTimeStamp(b, envSent, e.Sent)
	b = appendTimeStamp(b, envReceived, e.Received)
	b = appendTimeStamp(b, envSampleTime, e.SampleTime)
	b = protowire.AppendTag(b, envSenderStamp, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(e.SenderStamp))
}

// Unmarshal decodes the protobuf encoding of an envelope.
// Unknown fields are ignored.
func (e *Envelope) Unmarshal(b []byte) error {
	*e = Envelope{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.Wrapf(ErrBadEnvelope, "%v", protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == envDataType && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			e.DataType = int32(protowire.DecodeZigZag(v))
		case num == envSenderStamp && typ == protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			e.SenderStamp = uint32(v)
		case num == envSerializedData && typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			e.SerializedData = append([]byte(nil), v...)
		case (num == envSent || num == envReceived || num == envSampleTime) &&
			typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			if n >= 0 {
				t, err := unmarshalTimeStamp(v)
				if err != nil {
					return err
				}
				switch num {
				case envSent:
					e.Sent = t
				case envReceived:
					e.Received = t
				default:
					e.SampleTime = t
				}
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return errors.Wrapf(ErrBadEnvelope, "%v", protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}

func unmarshalTimeStamp(b []byte) (time.Time, error) {
	var sec, usec int64
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return time.Time{}, errors.Wrapf(ErrBadEnvelope, "%v", protowire.ParseError(n))
		}
		b = b[n:]
		if typ == protowire.VarintType && (num == tsSeconds || num == tsMicroseconds) {
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			if num == tsSeconds {
				sec = protowire.DecodeZigZag(v)
			} else {
				usec = protowire.DecodeZigZag(v)
			}
		} else {
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return time.Time{}, errors.Wrapf(ErrBadEnvelope, "%v", protowire.ParseError(n))
		}
		b = b[n:]
	}
	if sec == 0 && usec == 0 {
		return time.Time{}, nil
	}
	return time.Unix(sec, usec*1000), nil
}

// Frame prefixes the payload with the OD4 frame header.
func Frame(payload []byte) ([]byte, error) {
	if len(payload) > maxFrame {
		return nil, errors.Errorf("payload length %d exceeds %d", len(payload), maxFrame)
	}
	n := len(payload)
	b := make([]byte, frameHeader, frameHeader+n)
	b[0] = frameMagic0
	b[1] = frameMagic1
	b[2] = byte(n)
	b[3] = byte(n >> 8)
	b[4] = byte(n >> 16)
	return append(b, payload...), nil
}

// Unframe returns the payload of an OD4 frame.
func Unframe(b []byte) ([]byte, error) {
	if len(b) < frameHeader || b[0] != frameMagic0 || b[1] != frameMagic1 {
		return nil, ErrBadFrame
	}
	n := int(b[2]) | int(b[3])<<8 | int(b[4])<<16
	if len(b)-frameHeader < n {
		return nil, errors.Wrapf(ErrBadFrame, "truncated, %d of %d", len(b)-frameHeader, n)
	}
	return b[frameHeader : frameHeader+n], nil
}
