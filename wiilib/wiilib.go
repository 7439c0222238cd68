// Package wiilib drives Wii extension controllers (Nunchuk, Classic
// Controller, Motion-Plus and its pass-through modes) over an I2C bus.
//
// A Device owns one physical peripheral: it configures the target into an
// encrypted or plaintext protocol mode, confirms its identity register,
// polls its status register and decodes the vendor bit layouts into a
// uniform InterfaceState. Bus failures are never fatal on their own; they
// accumulate in a counter that drives graduated recovery (reconfigure,
// then disable) inside DoMaintenance.
package wiilib

import (
	"bytes"
	"errors"
	"time"

	"github.com/sudolegit/lib-wii/i2c"
)

// Kind tags the type of peripheral on the other end of the bus. Unknown
// and Unsupported are identification outcomes, never requested by a
// caller, with one exception: requesting KindUnknown means "accept
// whatever is found".
type Kind int

const (
	KindUnknown Kind = iota - 1
	KindUnsupported
	KindNunchuck
	KindClassicController
	KindMotionPlus
	KindMotionPlusNunchuck // Motion-Plus passing through a Nunchuk
	KindMotionPlusClassic  // Motion-Plus passing through a Classic Controller
)

func (k Kind) String() string {
	switch k {
	case KindUnknown:
		return "unknown"
	case KindUnsupported:
		return "unsupported"
	case KindNunchuck:
		return "nunchuck"
	case KindClassicController:
		return "classic-controller"
	case KindMotionPlus:
		return "motion-plus"
	case KindMotionPlusNunchuck:
		return "motion-plus+nunchuck"
	case KindMotionPlusClassic:
		return "motion-plus+classic-controller"
	}
	return "invalid"
}

// Status is the device lifecycle state. Disabled is terminal until an
// explicit re-initialization.
type Status uint8

const (
	StatusNotInitialized Status = iota
	StatusConfiguring
	StatusActive
	StatusDisabled
)

func (s Status) String() string {
	switch s {
	case StatusNotInitialized:
		return "not-initialized"
	case StatusConfiguring:
		return "configuring"
	case StatusActive:
		return "active"
	case StatusDisabled:
		return "disabled"
	}
	return "invalid"
}

// Param is a queryable register on the target.
type Param byte

const (
	ParamStatus     Param = 0x00
	ParamRawData    Param = 0x20
	ParamDeviceType Param = 0xFA
)

func (p Param) String() string {
	switch p {
	case ParamStatus:
		return "status"
	case ParamRawData:
		return "raw-data"
	case ParamDeviceType:
		return "device-type"
	}
	return "invalid"
}

// Known I2C addresses for Wii targets. Most extensions share the standard
// address; the Motion-Plus answers on its own until activated.
const (
	AddrStandard   uint16 = 0x52
	AddrMotionPlus uint16 = 0x53
)

const (
	// MaxPayload is the largest response any Wii target produces.
	MaxPayload = 20
	// IDLength is the size of the identity pattern at register 0xFA.
	IDLength = 6

	requestLen         = 1
	responseLenDefault = 6
	responseLenLong    = 20
)

// Recovery policy. Failures accumulate across consecutive bad parameter
// queries; one success clears them.
const (
	MaxConnectionAttempts          = 5
	MaxFailuresBeforeReconfiguring = 3
	MaxFailuresBeforeDisabling     = 20
)

// Settle times the targets require around configuration and bus traffic.
const (
	settleAfterInit             = 10 * time.Millisecond
	delayAfterConfirmID         = 10 * time.Millisecond
	delayAfterConnectionAttempt = 500 * time.Millisecond
	delayAfterConfigMessage     = 20 * time.Millisecond

	i2cDelayPostSend    = 0
	i2cDelayPostRead    = 10 * time.Millisecond
	i2cDelayBetweenTxRx = 1 * time.Millisecond
)

// Error taxonomy. Transport-level failures are wrapped in ErrI2C; callers
// classify with errors.Is.
var (
	ErrUnsupportedDevice        = errors.New("wiilib: unsupported target device")
	ErrTargetNotInitialized     = errors.New("wiilib: target not initialized")
	ErrI2C                      = errors.New("wiilib: i2c communication failed")
	ErrTargetIDMismatch         = errors.New("wiilib: target id does not match requested kind")
	ErrUnknownParameter         = errors.New("wiilib: unknown parameter")
	ErrInvalidData              = errors.New("wiilib: data received is invalid")
	ErrUnableToDecrypt          = errors.New("wiilib: unable to decrypt data received")
	ErrDeviceDisabled           = errors.New("wiilib: device disabled")
	ErrRelativePositionDisabled = errors.New("wiilib: relative position feature disabled")
)

// identities maps each concrete kind to the 6-byte pattern its identity
// register returns. Patterns are pairwise distinct by construction.
var identities = map[Kind][IDLength]byte{
	KindNunchuck:           {0x00, 0x00, 0xA4, 0x20, 0x00, 0x00},
	KindClassicController:  {0x00, 0x00, 0xA4, 0x20, 0x01, 0x01},
	KindMotionPlus:         {0x00, 0x00, 0xA4, 0x20, 0x04, 0x05},
	KindMotionPlusNunchuck: {0x00, 0x00, 0xA4, 0x20, 0x05, 0x05},
	KindMotionPlusClassic:  {0x00, 0x00, 0xA4, 0x20, 0x07, 0x05},
}

// Identity returns the identity pattern for a concrete kind. The second
// result is false for the sentinel kinds, which have no pattern.
func Identity(k Kind) ([IDLength]byte, bool) {
	id, ok := identities[k]
	return id, ok
}

// identify matches a 6-byte identity read against the known patterns.
func identify(id []byte) Kind {
	for kind, want := range identities {
		if bytes.Equal(id, want[:]) {
			return kind
		}
	}
	return KindUnsupported
}

// Bus is the transport contract the device manager consumes. It is
// satisfied by i2c.Transport and by the backend adapters (wiihal,
// tinybus).
type Bus interface {
	Transmit(ep i2c.Endpoint, data []byte, requireAck bool) error
	Receive(ep i2c.Endpoint, length int, ackEachByte bool) ([]byte, error)
	TransmitReceive(ep i2c.Endpoint, out []byte, inLength int, ack bool, useRepeatedStart bool) ([]byte, error)
}
