// bus.go
//
// Adapts a reef-pi i2c.Bus (kernel i2c-dev) to the transaction-level
// transport the device layer consumes.
//
// The kernel bus cannot drive raw start/stop conditions, so the two
// useRepeatedStart flavors map onto what it can do:
//
//   - repeated start with a single register byte => ReadFromReg, which
//     i2c-dev performs as one combined transaction
//   - everything else => write, settle, read as two transactions
//
// All traffic is serialized with a mutex: reef-pi calls pins
// concurrently and the Wii targets cannot tolerate interleaved
// transactions.
package wiihal

import (
	"sync"
	"time"

	rpi "github.com/reef-pi/rpi/i2c"

	"github.com/sudolegit/lib-wii/delay"
	"github.com/sudolegit/lib-wii/i2c"
)

// Settle time between the write and read halves of a split query. The
// targets return stale data when read back-to-back.
const splitQuerySettle = time.Millisecond

type busTransport struct {
	mu  sync.Mutex
	bus rpi.Bus
}

func newBusTransport(bus rpi.Bus) *busTransport {
	return &busTransport{bus: bus}
}

func (b *busTransport) Transmit(ep i2c.Endpoint, data []byte, requireAck bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bus.WriteBytes(byte(ep.Addr), data)
}

func (b *busTransport) Receive(ep i2c.Endpoint, length int, ackEachByte bool) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bus.ReadBytes(byte(ep.Addr), length)
}

func (b *busTransport) TransmitReceive(ep i2c.Endpoint, out []byte, inLength int, ack bool, useRepeatedStart bool) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if useRepeatedStart && len(out) == 1 {
		buf := make([]byte, inLength)
		if err := b.bus.ReadFromReg(byte(ep.Addr), out[0], buf); err != nil {
			return nil, err
		}
		return buf, nil
	}

	if err := b.bus.WriteBytes(byte(ep.Addr), out); err != nil {
		return nil, err
	}
	delay.For(splitQuerySettle)
	return b.bus.ReadBytes(byte(ep.Addr), inLength)
}
