// Package i2c builds addressed Wii-extension bus transactions out of the
// primitive start/stop/byte operations exposed by a bus transceiver.
//
// The package deliberately stops at one attempt per operation: retries,
// backoff and recovery policy belong to the device layer (wiilib), which
// decides what a failed transaction means for the peripheral's lifecycle.
package i2c

import (
	"errors"
	"time"
)

// ClockRate is the bus clock class used when talking to a target. Wii
// peripherals only ever use the two standard-mode rates.
type ClockRate uint32

const (
	ClockRateStandard ClockRate = 100000
	ClockRateFast     ClockRate = 400000
)

// AckMode selects the level this side drives when acknowledging a received
// byte.
type AckMode uint8

const (
	AckModeNack AckMode = 0
	AckModeAck  AckMode = 1
)

// AddrLength is the address width of a target.
type AddrLength uint8

const (
	AddrLen7Bits  AddrLength = 7
	AddrLen10Bits AddrLength = 10
)

// Endpoint identifies one target on the bus. Immutable once a device has
// been configured with it.
type Endpoint struct {
	Addr       uint16
	AddrLength AddrLength
	AckMode    AckMode
	Clock      ClockRate
}

// PhaseDelays are the settle times the physical target requires before the
// host releases the bus. They are configuration, not derived values.
type PhaseDelays struct {
	AfterSend    time.Duration // before the stop that ends a transmit
	AfterReceive time.Duration // before the stop that ends a receive
	BetweenTxRx  time.Duration // between the write and read phases of a combined transfer
}

// Transport failure taxonomy. Each operation performs exactly one attempt;
// the caller decides whether any of these is worth retrying.
var (
	ErrStartFailed     = errors.New("i2c: failed to assert start condition")
	ErrRestartFailed   = errors.New("i2c: failed to assert repeated-start condition")
	ErrSendBufferFull  = errors.New("i2c: transmit buffer would not accept byte")
	ErrNoAck           = errors.New("i2c: byte transmitted but not acknowledged")
	ErrReceiveOverflow = errors.New("i2c: receive overflow")
)

// Transceiver is the capability that actually shifts bits on a wire: it
// asserts start/repeated-start/stop conditions, clocks one byte out and
// reports whether the target acknowledged it, and clocks one byte in while
// choosing whether (and at which level) to acknowledge it.
//
// Implementations are expected to block until the bus reaches the state
// each primitive requires; any bounding of those waits is theirs to
// provide.
type Transceiver interface {
	Start() error
	RepeatStart() error
	Stop() error

	// WriteByte clocks b out and reports whether it was acknowledged.
	WriteByte(b byte) (acked bool, err error)

	// ReadByte clocks one byte in. When ack is true the byte is
	// acknowledged at the level selected by mode; otherwise no
	// acknowledgement is driven.
	ReadByte(ack bool, mode AckMode) (byte, error)
}
