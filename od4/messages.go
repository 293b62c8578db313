// SPDX-License-Identifier: MIT
//
// Copyright © 2019 Kent Gibson <warthog618@gmail.com>.

package od4

import (
	"math"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Message is a message that can be sent on an OD4 session.
type Message interface {
	// DataType returns the message identifier from the message set.
	DataType() int32
	// Marshal returns the protobuf encoding of the message.
	Marshal() []byte
}

// Message identifiers from the OpenDLV standard message set.
const (
	VoltageReadingID  int32 = 1037
	DistanceReadingID int32 = 1039
)

// VoltageReading is opendlv.proxy.VoltageReading.
type VoltageReading struct {
	Voltage float32
}

// DataType returns the VoltageReading message identifier.
func (VoltageReading) DataType() int32 {
	return VoltageReadingID
}

// Marshal returns the protobuf encoding of the reading.
func (m VoltageReading) Marshal() []byte {
	return appendFloat(nil, 1, m.Voltage)
}

// Unmarshal decodes the protobuf encoding of the reading.
func (m *VoltageReading) Unmarshal(b []byte) (err error) {
	m.Voltage, err = consumeFloat(b, 1)
	return err
}

// DistanceReading is opendlv.proxy.DistanceReading.
type DistanceReading struct {
	Distance float32
}

// DataType returns the DistanceReading message identifier.
func (DistanceReading) DataType() int32 {
	return DistanceReadingID
}

// Marshal returns the protobuf encoding of the reading.
func (m DistanceReading) Marshal() []byte {
	return appendFloat(nil, 1, m.Distance)
}

// Unmarshal decodes the protobuf encoding of the reading.
func (m *DistanceReading) Unmarshal(b []byte) (err error) {
	m.Distance, err = consumeFloat(b, 1)
	return err
}

func appendFloat(b []byte, num protowire.Number, v float32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(v))
}

// consumeFloat returns the value of the float field, or zero if the field is
// absent.
func consumeFloat(b []byte, field protowire.Number) (float32, error) {
	var v float32
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return 0, errors.Wrapf(ErrBadEnvelope, "%v", protowire.ParseError(n))
		}
		b = b[n:]
		if num == field && typ == protowire.Fixed32Type {
			var bits uint32
			bits, n = protowire.ConsumeFixed32(b)
			v = math.Float32frombits(bits)
		} else {
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return 0, errors.Wrapf(ErrBadEnvelope, "%v", protowire.ParseError(n))
		}
		b = b[n:]
	}
	return v, nil
}
