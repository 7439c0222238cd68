// Package tinybus adapts a TinyGo I2C bus to the transaction transport
// the device layer consumes, for running the stack on microcontrollers.
//
// TinyGo's drivers.I2C performs a hardware repeated start whenever a
// single Tx carries both a write and a read buffer, so combined queries
// map directly onto one call. Split queries become two transactions
// with a settle delay in between, which the Wii targets need before
// they present fresh data.
package tinybus

import (
	"time"

	"tinygo.org/x/drivers"

	"github.com/sudolegit/lib-wii/delay"
	"github.com/sudolegit/lib-wii/i2c"
)

type Bus struct {
	bus    drivers.I2C
	settle time.Duration
}

// New wraps a TinyGo I2C bus. The machine package's I2C peripherals
// satisfy drivers.I2C after Configure.
func New(bus drivers.I2C) *Bus {
	return &Bus{bus: bus, settle: time.Millisecond}
}

func (b *Bus) Transmit(ep i2c.Endpoint, data []byte, requireAck bool) error {
	return b.bus.Tx(ep.Addr, data, nil)
}

func (b *Bus) Receive(ep i2c.Endpoint, length int, ackEachByte bool) ([]byte, error) {
	buf := make([]byte, length)
	if err := b.bus.Tx(ep.Addr, nil, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (b *Bus) TransmitReceive(ep i2c.Endpoint, out []byte, inLength int, ack bool, useRepeatedStart bool) ([]byte, error) {
	buf := make([]byte, inLength)
	if useRepeatedStart {
		if err := b.bus.Tx(ep.Addr, out, buf); err != nil {
			return nil, err
		}
		return buf, nil
	}
	if err := b.bus.Tx(ep.Addr, out, nil); err != nil {
		return nil, err
	}
	delay.For(b.settle)
	if err := b.bus.Tx(ep.Addr, nil, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
