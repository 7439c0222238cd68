package i2c

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"
)

// fakeTransceiver records the exact primitive sequence a Transport drives
// and can be told to refuse acknowledgement or fail at chosen points.
type fakeTransceiver struct {
	trace []string

	startErr   error
	restartErr error
	nackAt     int // 0-based index of the WriteByte call to NACK; -1 never
	writeCount int

	readData []byte
	readIdx  int
}

func newFakeTransceiver() *fakeTransceiver {
	return &fakeTransceiver{nackAt: -1}
}

func (f *fakeTransceiver) Start() error {
	f.trace = append(f.trace, "start")
	return f.startErr
}

func (f *fakeTransceiver) RepeatStart() error {
	f.trace = append(f.trace, "restart")
	return f.restartErr
}

func (f *fakeTransceiver) Stop() error {
	f.trace = append(f.trace, "stop")
	return nil
}

func (f *fakeTransceiver) WriteByte(b byte) (bool, error) {
	f.trace = append(f.trace, fmt.Sprintf("w %02X", b))
	nacked := f.writeCount == f.nackAt
	f.writeCount++
	return !nacked, nil
}

func (f *fakeTransceiver) ReadByte(ack bool, mode AckMode) (byte, error) {
	f.trace = append(f.trace, fmt.Sprintf("r ack=%t mode=%d", ack, mode))
	if f.readIdx >= len(f.readData) {
		return 0, ErrReceiveOverflow
	}
	b := f.readData[f.readIdx]
	f.readIdx++
	return b, nil
}

func (f *fakeTransceiver) assertTrace(t *testing.T, want ...string) {
	t.Helper()
	if len(f.trace) != len(want) {
		t.Fatalf("trace = %v, want %v", f.trace, want)
	}
	for i := range want {
		if f.trace[i] != want[i] {
			t.Fatalf("trace[%d] = %q, want %q (full trace %v)", i, f.trace[i], want[i], f.trace)
		}
	}
}

func stubSleep(t *testing.T) {
	t.Helper()
	t.Cleanup(setSleep(func(time.Duration) {}))
}

var testEndpoint = Endpoint{
	Addr:       0x52,
	AddrLength: AddrLen7Bits,
	AckMode:    AckModeAck,
	Clock:      ClockRateStandard,
}

func TestTransmitFraming(t *testing.T) {
	stubSleep(t)
	ft := newFakeTransceiver()
	tr := NewTransport(ft, PhaseDelays{})

	if err := tr.Transmit(testEndpoint, []byte{0x40, 0x00}, true); err != nil {
		t.Fatalf("Transmit: %v", err)
	}
	// 0x52 shifted left with the write bit clear is 0xA4.
	ft.assertTrace(t, "start", "w A4", "w 40", "w 00", "stop")
}

func TestTransmitDataNackFailsFast(t *testing.T) {
	stubSleep(t)
	ft := newFakeTransceiver()
	ft.nackAt = 1 // first data byte
	tr := NewTransport(ft, PhaseDelays{})

	err := tr.Transmit(testEndpoint, []byte{0x40, 0x00}, true)
	if !errors.Is(err, ErrNoAck) {
		t.Fatalf("err = %v, want ErrNoAck", err)
	}
	// The second data byte is never clocked out, but the bus is still
	// released with a stop.
	ft.assertTrace(t, "start", "w A4", "w 40", "stop")
}

func TestTransmitDataNackIgnoredWhenNotRequired(t *testing.T) {
	stubSleep(t)
	ft := newFakeTransceiver()
	ft.nackAt = 1
	tr := NewTransport(ft, PhaseDelays{})

	if err := tr.Transmit(testEndpoint, []byte{0x40, 0x00}, false); err != nil {
		t.Fatalf("Transmit: %v", err)
	}
	ft.assertTrace(t, "start", "w A4", "w 40", "w 00", "stop")
}

func TestTransmitHeaderNackAlwaysFails(t *testing.T) {
	stubSleep(t)
	ft := newFakeTransceiver()
	ft.nackAt = 0 // addressed header
	tr := NewTransport(ft, PhaseDelays{})

	// requireAck false only relaxes data bytes; an unacknowledged header
	// means nobody is listening.
	err := tr.Transmit(testEndpoint, []byte{0x40}, false)
	if !errors.Is(err, ErrNoAck) {
		t.Fatalf("err = %v, want ErrNoAck", err)
	}
	ft.assertTrace(t, "start", "w A4", "stop")
}

func TestTransmitStartFailure(t *testing.T) {
	stubSleep(t)
	ft := newFakeTransceiver()
	ft.startErr = ErrStartFailed
	tr := NewTransport(ft, PhaseDelays{})

	if err := tr.Transmit(testEndpoint, []byte{0x40}, true); !errors.Is(err, ErrStartFailed) {
		t.Fatalf("err = %v, want ErrStartFailed", err)
	}
	ft.assertTrace(t, "start")
}

func TestReceiveFraming(t *testing.T) {
	stubSleep(t)
	ft := newFakeTransceiver()
	ft.readData = []byte{0x11, 0x22, 0x33}
	tr := NewTransport(ft, PhaseDelays{})

	buf, err := tr.Receive(testEndpoint, 3, true)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if !bytes.Equal(buf, []byte{0x11, 0x22, 0x33}) {
		t.Errorf("buf = %#v, want the scripted bytes", buf)
	}
	// 0x52 shifted left with the read bit set is 0xA5; each byte is
	// acknowledged at the endpoint's polarity.
	ft.assertTrace(t, "start", "w A5",
		"r ack=true mode=1", "r ack=true mode=1", "r ack=true mode=1", "stop")
}

func TestReceiveWithoutAck(t *testing.T) {
	stubSleep(t)
	ft := newFakeTransceiver()
	ft.readData = []byte{0x11}
	tr := NewTransport(ft, PhaseDelays{})

	if _, err := tr.Receive(testEndpoint, 1, false); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	ft.assertTrace(t, "start", "w A5", "r ack=false mode=1", "stop")
}

func TestTransmitReceiveRepeatedStart(t *testing.T) {
	stubSleep(t)
	ft := newFakeTransceiver()
	ft.readData = []byte{0xAB, 0xCD}
	tr := NewTransport(ft, PhaseDelays{})

	buf, err := tr.TransmitReceive(testEndpoint, []byte{0xFA}, 2, true, true)
	if err != nil {
		t.Fatalf("TransmitReceive: %v", err)
	}
	if !bytes.Equal(buf, []byte{0xAB, 0xCD}) {
		t.Errorf("buf = %#v, want the scripted bytes", buf)
	}
	// No stop between the phases; the transaction stays atomic.
	ft.assertTrace(t, "start", "w A4", "w FA", "restart", "w A5",
		"r ack=true mode=1", "r ack=true mode=1", "stop")
}

func TestTransmitReceiveStopStart(t *testing.T) {
	stubSleep(t)
	ft := newFakeTransceiver()
	ft.readData = []byte{0xAB}
	tr := NewTransport(ft, PhaseDelays{})

	if _, err := tr.TransmitReceive(testEndpoint, []byte{0x00}, 1, true, false); err != nil {
		t.Fatalf("TransmitReceive: %v", err)
	}
	ft.assertTrace(t, "start", "w A4", "w 00", "stop", "start", "w A5",
		"r ack=true mode=1", "stop")
}

func TestTransmitReceiveWritePhaseFailureReleasesBus(t *testing.T) {
	stubSleep(t)
	ft := newFakeTransceiver()
	ft.nackAt = 0
	tr := NewTransport(ft, PhaseDelays{})

	if _, err := tr.TransmitReceive(testEndpoint, []byte{0xFA}, 2, true, true); !errors.Is(err, ErrNoAck) {
		t.Fatalf("err = %v, want ErrNoAck", err)
	}
	ft.assertTrace(t, "start", "w A4", "stop")
}

func TestTransmitReceiveRestartFailureReleasesBus(t *testing.T) {
	stubSleep(t)
	ft := newFakeTransceiver()
	ft.restartErr = ErrRestartFailed
	tr := NewTransport(ft, PhaseDelays{})

	if _, err := tr.TransmitReceive(testEndpoint, []byte{0xFA}, 2, true, true); !errors.Is(err, ErrRestartFailed) {
		t.Fatalf("err = %v, want ErrRestartFailed", err)
	}
	ft.assertTrace(t, "start", "w A4", "w FA", "restart", "stop")
}

func TestTenBitAddressHeader(t *testing.T) {
	stubSleep(t)
	ep := Endpoint{Addr: 0x234, AddrLength: AddrLen10Bits, AckMode: AckModeAck}

	ft := newFakeTransceiver()
	tr := NewTransport(ft, PhaseDelays{})
	if err := tr.Transmit(ep, []byte{0x01}, true); err != nil {
		t.Fatalf("Transmit: %v", err)
	}
	// 0xF0 pattern, address bits <9:8> in bits <2:1>, write bit clear,
	// then the low address byte.
	ft.assertTrace(t, "start", "w F4", "w 34", "w 01", "stop")

	ft = newFakeTransceiver()
	ft.readData = []byte{0x00}
	tr = NewTransport(ft, PhaseDelays{})
	if _, err := tr.Receive(ep, 1, true); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	ft.assertTrace(t, "start", "w F5", "w 34", "r ack=true mode=1", "stop")
}

func TestTenBitAddressHeaderNackWithholdsSecondByte(t *testing.T) {
	stubSleep(t)
	ep := Endpoint{Addr: 0x234, AddrLength: AddrLen10Bits, AckMode: AckModeAck}

	ft := newFakeTransceiver()
	ft.nackAt = 0
	tr := NewTransport(ft, PhaseDelays{})

	if err := tr.Transmit(ep, []byte{0x01}, true); !errors.Is(err, ErrNoAck) {
		t.Fatalf("err = %v, want ErrNoAck", err)
	}
	ft.assertTrace(t, "start", "w F4", "stop")
}

func TestPhaseDelaysApplied(t *testing.T) {
	var slept []time.Duration
	t.Cleanup(setSleep(func(d time.Duration) { slept = append(slept, d) }))

	delays := PhaseDelays{
		AfterSend:    1 * time.Millisecond,
		AfterReceive: 2 * time.Millisecond,
		BetweenTxRx:  3 * time.Millisecond,
	}

	ft := newFakeTransceiver()
	ft.readData = []byte{0x00, 0x00}
	tr := NewTransport(ft, delays)

	if err := tr.Transmit(testEndpoint, []byte{0x40}, true); err != nil {
		t.Fatalf("Transmit: %v", err)
	}
	if _, err := tr.Receive(testEndpoint, 1, true); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if _, err := tr.TransmitReceive(testEndpoint, []byte{0x00}, 1, true, true); err != nil {
		t.Fatalf("TransmitReceive: %v", err)
	}

	want := []time.Duration{
		delays.AfterSend,    // Transmit
		delays.AfterReceive, // Receive
		delays.BetweenTxRx, delays.AfterReceive, // TransmitReceive
	}
	if len(slept) != len(want) {
		t.Fatalf("slept = %v, want %v", slept, want)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, slept[i], want[i])
		}
	}
}
