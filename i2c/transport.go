package i2c

import (
	"time"

	"github.com/sudolegit/lib-wii/delay"
)

// Overridable for tests; settle delays otherwise run on the shared timer.
var sleep = delay.For

// Transport frames logical transmit/receive intents as bus transactions
// over a Transceiver: start, addressed header, payload bytes, configured
// settle delay, stop. Every operation is blocking and makes exactly one
// attempt; a stop condition is always asserted before returning so a
// failure never leaves the bus held.
type Transport struct {
	tr     Transceiver
	delays PhaseDelays
}

func NewTransport(tr Transceiver, delays PhaseDelays) *Transport {
	return &Transport{tr: tr, delays: delays}
}

// Transmit sends data to the endpoint. When requireAck is set the transfer
// fails fast on the first data byte that is not acknowledged; the addressed
// header must be acknowledged regardless, since an unacknowledged header
// means no target is listening.
func (t *Transport) Transmit(ep Endpoint, data []byte, requireAck bool) error {
	if err := t.tr.Start(); err != nil {
		return err
	}
	err := t.writePhase(ep, data, requireAck)
	sleep(t.delays.AfterSend)
	if stopErr := t.tr.Stop(); err == nil {
		err = stopErr
	}
	return err
}

// Receive reads length bytes from the endpoint, acknowledging each byte at
// the endpoint's polarity when ackEachByte is set.
func (t *Transport) Receive(ep Endpoint, length int, ackEachByte bool) ([]byte, error) {
	if err := t.tr.Start(); err != nil {
		return nil, err
	}
	buf, err := t.readPhase(ep, length, ackEachByte)
	sleep(t.delays.AfterReceive)
	if stopErr := t.tr.Stop(); err == nil {
		err = stopErr
	}
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// TransmitReceive performs the write phase, then either a repeated start
// (no intervening stop, keeping the transaction atomic against other
// masters) or a full stop followed by a fresh start, then the read phase.
// This is the primitive behind every parameter query: write the register
// address, read its value.
func (t *Transport) TransmitReceive(ep Endpoint, out []byte, inLength int, ack bool, useRepeatedStart bool) ([]byte, error) {
	if err := t.tr.Start(); err != nil {
		return nil, err
	}
	if err := t.writePhase(ep, out, ack); err != nil {
		t.tr.Stop()
		return nil, err
	}
	sleep(t.delays.BetweenTxRx)
	if useRepeatedStart {
		if err := t.tr.RepeatStart(); err != nil {
			t.tr.Stop()
			return nil, err
		}
	} else {
		if err := t.tr.Stop(); err != nil {
			return nil, err
		}
		if err := t.tr.Start(); err != nil {
			return nil, err
		}
	}
	buf, err := t.readPhase(ep, inLength, ack)
	sleep(t.delays.AfterReceive)
	if stopErr := t.tr.Stop(); err == nil {
		err = stopErr
	}
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (t *Transport) writePhase(ep Endpoint, data []byte, requireAck bool) error {
	if err := t.sendAddress(ep, false); err != nil {
		return err
	}
	for _, b := range data {
		acked, err := t.tr.WriteByte(b)
		if err != nil {
			return err
		}
		if requireAck && !acked {
			return ErrNoAck
		}
	}
	return nil
}

func (t *Transport) readPhase(ep Endpoint, length int, ackEachByte bool) ([]byte, error) {
	if err := t.sendAddress(ep, true); err != nil {
		return nil, err
	}
	buf := make([]byte, length)
	for i := range buf {
		b, err := t.tr.ReadByte(ackEachByte, ep.AckMode)
		if err != nil {
			return nil, err
		}
		buf[i] = b
	}
	return buf, nil
}

// sendAddress clocks out the addressed header with the read/write bit. For
// 10-bit targets the header is two bytes; the second byte is withheld when
// the first is not acknowledged, since the pair forms one transaction.
func (t *Transport) sendAddress(ep Endpoint, read bool) error {
	rw := byte(0)
	if read {
		rw = 1
	}
	if ep.AddrLength == AddrLen10Bits {
		hi := 0xF0 | (byte(ep.Addr>>8)&0x03)<<1 | rw
		acked, err := t.tr.WriteByte(hi)
		if err != nil {
			return err
		}
		if !acked {
			return ErrNoAck
		}
		acked, err = t.tr.WriteByte(byte(ep.Addr))
		if err != nil {
			return err
		}
		if !acked {
			return ErrNoAck
		}
		return nil
	}
	acked, err := t.tr.WriteByte(byte(ep.Addr)<<1 | rw)
	if err != nil {
		return err
	}
	if !acked {
		return ErrNoAck
	}
	return nil
}

// For tests.
func setSleep(fn func(time.Duration)) func() {
	prev := sleep
	sleep = fn
	return func() { sleep = prev }
}
