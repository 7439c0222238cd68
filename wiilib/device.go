package wiilib

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sudolegit/lib-wii/delay"
	"github.com/sudolegit/lib-wii/i2c"
)

// Overridable for tests; every settle/backoff wait in the package runs
// through it.
var sleep = delay.For

// Device is the long-lived aggregate for one physical peripheral. It is
// created by Initialize, mutated by every query and maintenance call, and
// never destroyed within the driver's lifetime; re-initialization simply
// resets it.
//
// A Device must be owned by exactly one logical thread of control. There
// is no internal locking; callers needing concurrent access serialize at
// a layer above (wiihal does).
type Device struct {
	bus      Bus
	endpoint i2c.Endpoint

	target    Kind // requested kind; replaced by the discovered kind on mismatch
	encrypted bool // target left in the vendor's obfuscated protocol mode

	trackRelative bool
	raw           [MaxPayload]byte
	current       InterfaceState
	home          InterfaceState
	relative      InterfaceState

	failedQueries uint8
	status        Status

	// Guards against DoMaintenance re-entering itself through the
	// failed-query hook while its own connect loop is querying.
	inMaintenance bool

	debug bool
}

// Initialize creates a Device speaking through the given transceiver and
// immediately runs maintenance, which performs the connection attempts.
// The returned error may be ErrTargetIDMismatch with a usable, Active
// device: the target answered but identified as a different kind, which
// the caller may accept (the discovered kind is stored).
//
// decrypt selects the plaintext protocol mode; when false the target is
// left encrypted and received payloads are de-obfuscated by the driver.
func Initialize(tr i2c.Transceiver, clockHz uint32, target Kind, decrypt bool) (*Device, error) {
	bus := i2c.NewTransport(tr, i2c.PhaseDelays{
		AfterSend:    i2cDelayPostSend,
		AfterReceive: i2cDelayPostRead,
		BetweenTxRx:  i2cDelayBetweenTxRx,
	})
	return InitializeWithBus(bus, clockHz, target, decrypt)
}

// InitializeWithBus is Initialize for callers that already hold a
// transaction-level transport (wiihal, tinybus backends).
func InitializeWithBus(bus Bus, clockHz uint32, target Kind, decrypt bool) (*Device, error) {
	delay.Init(clockHz)

	d := &Device{
		bus:       bus,
		target:    target,
		encrypted: !decrypt,
		status:    StatusNotInitialized,
	}

	switch target {
	case KindUnknown, KindNunchuck, KindClassicController,
		KindMotionPlusNunchuck, KindMotionPlusClassic:
		d.endpoint.Addr = AddrStandard
	case KindMotionPlus:
		d.endpoint.Addr = AddrMotionPlus
	default:
		return nil, ErrUnsupportedDevice
	}
	d.endpoint.AddrLength = i2c.AddrLen7Bits
	d.endpoint.AckMode = i2c.AckModeAck
	d.endpoint.Clock = i2c.ClockRateStandard

	d.EnableRelativePosition()

	sleep(settleAfterInit)

	d.failedQueries = 0
	return d, d.DoMaintenance()
}

// SetDebug toggles verbose logging of lifecycle transitions and query
// failures.
func (d *Device) SetDebug(on bool) { d.debug = on }

func (d *Device) dbg(format string, args ...any) {
	if !d.debug {
		return
	}
	log.Printf("wiilib addr=0x%02X target=%s: %s", d.endpoint.Addr, d.target, fmt.Sprintf(format, args...))
}

// DoMaintenance checks the failure count and status for the device and
// performs whatever recovery is due: nothing, a reconfiguration, the
// initial connection attempts, or disabling the device outright. It is
// idempotent, callable at any time, and also runs internally after every
// failed query.
func (d *Device) DoMaintenance() error {
	if d.inMaintenance {
		return nil
	}
	d.inMaintenance = true
	defer func() { d.inMaintenance = false }()

	switch {
	case d.status == StatusDisabled:
		return ErrDeviceDisabled

	case d.failedQueries >= MaxFailuresBeforeDisabling:
		d.dbg("failure count %d reached disable limit", d.failedQueries)
		d.status = StatusDisabled
		return ErrDeviceDisabled

	case d.failedQueries >= MaxFailuresBeforeReconfiguring:
		d.dbg("failure count %d, reconfiguring", d.failedQueries)
		d.status = StatusConfiguring
		return d.ConfigureDevice()

	case d.status == StatusNotInitialized:
		// The not-initialized branch must stay behind the failure-count
		// checks so a device that is absent at boot eventually stops
		// being queried.
		var err error
		for attempt := 1; attempt <= MaxConnectionAttempts; attempt++ {
			if attempt > 1 {
				sleep(delayAfterConnectionAttempt)
			}
			err = d.ConnectToTarget()
			if err == nil || errors.Is(err, ErrTargetIDMismatch) {
				d.status = StatusActive
				return err
			}
			d.dbg("connection attempt %d/%d failed: %v", attempt, MaxConnectionAttempts, err)
		}
		return ErrTargetNotInitialized

	default:
		d.status = StatusActive
		return nil
	}
}

// ConnectToTarget makes a single connection attempt: push configuration,
// confirm the identity register, capture the home position. Retries and
// their delays are DoMaintenance's job.
//
// A mismatched identity is reported as ErrTargetIDMismatch with the
// discovered kind stored on the device; the target did respond, so the
// caller may choose to accept it.
func (d *Device) ConnectToTarget() error {
	if err := d.ConfigureDevice(); err != nil {
		return err
	}

	if err := d.QueryParameter(ParamDeviceType); err != nil {
		return err
	}
	discovered := identify(d.raw[:IDLength])

	if discovered != d.target && d.target != KindUnknown {
		d.dbg("identity mismatch: discovered %s", discovered)
		d.target = discovered
		return ErrTargetIDMismatch
	}
	if d.target == KindUnknown {
		d.dbg("accepting discovered target %s", discovered)
		d.target = discovered
	}

	sleep(delayAfterConfirmID)

	// The reading captured here becomes the zero reference for relative
	// tracking.
	return d.setHome()
}

// ConfigureDevice writes the register sequence that (re)establishes the
// protocol mode: the single "leave encrypted" message, or the two-step
// plaintext switch. Transport failures surface as ErrI2C and do not by
// themselves change device status; status changes are driven by the
// failure counter in DoMaintenance.
func (d *Device) ConfigureDevice() error {
	if d.encrypted {
		if err := d.bus.Transmit(d.endpoint, []byte{0x40, 0x00}, true); err != nil {
			return fmt.Errorf("%w: configure encrypted: %v", ErrI2C, err)
		}
	} else {
		if err := d.bus.Transmit(d.endpoint, []byte{0xF0, 0x55}, true); err != nil {
			return fmt.Errorf("%w: configure plaintext step 1: %v", ErrI2C, err)
		}
		sleep(delayAfterConfigMessage)
		if err := d.bus.Transmit(d.endpoint, []byte{0xFB, 0x00}, true); err != nil {
			return fmt.Errorf("%w: configure plaintext step 2: %v", ErrI2C, err)
		}
	}
	sleep(delayAfterConfigMessage)
	return nil
}

// QueryParameter writes the parameter's register address and reads back
// its value into the device's raw buffer. A successful round trip is the
// only thing that clears the failure counter; transport failures and the
// all-0xFF "not ready" pattern both increment it and trigger an internal
// maintenance pass.
func (d *Device) QueryParameter(param Param) error {
	// No bus traffic once disabled; flooding a dead bus helps nobody.
	if d.status == StatusDisabled {
		return ErrDeviceDisabled
	}

	var length int
	switch param {
	case ParamStatus:
		// Classic controllers drop out of their reporting mode between
		// reads; push the configuration again, best effort, before every
		// status query.
		if d.target == KindClassicController || d.target == KindMotionPlusClassic {
			if err := d.ConfigureDevice(); err != nil {
				d.dbg("pre-status reconfigure failed: %v", err)
			}
		}
		length = responseLenDefault
	case ParamDeviceType:
		length = responseLenDefault
	case ParamRawData:
		length = responseLenLong
	default:
		return ErrUnknownParameter
	}

	buf, err := d.bus.TransmitReceive(d.endpoint, []byte{byte(param)}, length, true, false)
	if err != nil {
		d.dbg("query %s failed: %v", param, err)
		d.recordFailure()
		return fmt.Errorf("%w: query %s: %v", ErrI2C, param, err)
	}

	if !payloadReady(buf) {
		d.raw = [MaxPayload]byte{}
		d.recordFailure()
		return ErrInvalidData
	}

	if d.encrypted {
		Deobfuscate(buf)
	}

	n := copy(d.raw[:], buf)
	for i := n; i < MaxPayload; i++ {
		d.raw[i] = 0
	}

	// Communication is healthy; clear the error streak. This is the only
	// place the counter resets.
	d.failedQueries = 0

	if param == ParamStatus {
		return d.updateInterfaceTracking()
	}
	return nil
}

// PollStatus refreshes the decoded interface state from the target's
// status register.
func (d *Device) PollStatus() error {
	return d.QueryParameter(ParamStatus)
}

// SetNewHomePosition re-captures the zero reference for relative
// tracking from a fresh status reading.
func (d *Device) SetNewHomePosition() error {
	if !d.trackRelative {
		return ErrRelativePositionDisabled
	}
	return d.setHome()
}

// EnableRelativePosition turns on relative tracking. Flag only; no bus
// traffic.
func (d *Device) EnableRelativePosition() { d.trackRelative = true }

// DisableRelativePosition turns off relative tracking. Flag only; no bus
// traffic.
func (d *Device) DisableRelativePosition() { d.trackRelative = false }

// Current returns the most recently decoded interface snapshot.
func (d *Device) Current() InterfaceState { return d.current }

// Home returns the snapshot captured as the zero reference.
func (d *Device) Home() InterfaceState { return d.home }

// Relative returns current minus home for every numeric field. Button
// fields are never relativized and read false.
func (d *Device) Relative() InterfaceState { return d.relative }

// Status returns the lifecycle state.
func (d *Device) Status() Status { return d.status }

// Target returns the device kind: the requested one, or the discovered
// one after an identity mismatch.
func (d *Device) Target() Kind { return d.target }

// Raw returns a copy of the last payload read from the target.
func (d *Device) Raw() [MaxPayload]byte { return d.raw }

func (d *Device) setHome() error {
	if err := d.PollStatus(); err != nil {
		return err
	}
	d.home = d.current
	// Re-derive so relative reads all-zero immediately, not only after
	// the next poll.
	d.computeRelative()
	return nil
}

func (d *Device) recordFailure() {
	d.failedQueries++
	d.DoMaintenance()
}

// updateInterfaceTracking decodes the raw status payload for the current
// target kind and, when enabled, refreshes the relative snapshot.
func (d *Device) updateInterfaceTracking() error {
	st, err := DecodeInterface(d.target, d.raw[:])
	if err != nil {
		return err
	}
	d.current = st
	if d.trackRelative {
		d.computeRelative()
	}
	return nil
}

// computeRelative refreshes every numeric field of the relative snapshot
// as current minus home. Discrete buttons are not relativized.
func (d *Device) computeRelative() {
	d.relative.TriggerLeft = d.current.TriggerLeft - d.home.TriggerLeft
	d.relative.TriggerRight = d.current.TriggerRight - d.home.TriggerRight
	d.relative.AnalogLeftX = d.current.AnalogLeftX - d.home.AnalogLeftX
	d.relative.AnalogLeftY = d.current.AnalogLeftY - d.home.AnalogLeftY
	d.relative.AnalogRightX = d.current.AnalogRightX - d.home.AnalogRightX
	d.relative.AnalogRightY = d.current.AnalogRightY - d.home.AnalogRightY
	d.relative.AccelX = d.current.AccelX - d.home.AccelX
	d.relative.AccelY = d.current.AccelY - d.home.AccelY
	d.relative.AccelZ = d.current.AccelZ - d.home.AccelZ
	d.relative.GyroX = d.current.GyroX - d.home.GyroX
	d.relative.GyroY = d.current.GyroY - d.home.GyroY
	d.relative.GyroZ = d.current.GyroZ - d.home.GyroZ
}

// payloadReady reports whether the response is usable. An all-0xFF buffer
// means the target had no data ready.
func payloadReady(buf []byte) bool {
	for _, b := range buf {
		if b != 0xFF {
			return true
		}
	}
	return len(buf) == 0
}

// For tests.
func setSleep(fn func(time.Duration)) func() {
	prev := sleep
	sleep = fn
	return func() { sleep = prev }
}
