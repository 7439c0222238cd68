// hal.go
//
// reef-pi HAL glue for Wii extension controllers.
//
// This file provides:
//   - pin objects implementing hal.DigitalInputPin (buttons, d-pad) and
//     hal.AnalogInputPin (sticks, triggers, accelerometer, gyro)
//   - a driver implementing hal.DigitalInputDriver and hal.AnalogInputDriver
//
// Concurrency / polling:
//   - All device access is protected by a mutex (d.mu); reef-pi calls
//     pins concurrently and the device layer has no internal locking.
//   - One status poll refreshes every pin. Reads arriving within the
//     configured poll interval serve the last decoded snapshot instead
//     of generating bus traffic for each of the 28 pins.
package wiihal

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/reef-pi/hal"

	"github.com/sudolegit/lib-wii/wiilib"
)

// Driver is the reef-pi driver instance for one extension controller.
type Driver struct {
	dev  *wiilib.Device
	meta hal.Metadata

	// Serialize all interactions with the device.
	mu           sync.Mutex
	pollInterval time.Duration
	lastPoll     time.Time

	debug bool

	buttons []*buttonPin
	axes    []*axisPin
}

func (d *Driver) Close() error { return nil }

func (d *Driver) Metadata() hal.Metadata { return d.meta }

// Target reports the peripheral kind actually being driven, which may
// differ from the configured one after an identity mismatch.
func (d *Driver) Target() wiilib.Kind {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dev.Target()
}

// DoMaintenance runs the device's recovery pass. reef-pi has no
// scheduled hook for this; callers holding the concrete type may invoke
// it from their own timer, and every failed poll already triggers it
// internally.
func (d *Driver) DoMaintenance() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dev.DoMaintenance()
}

// SetNewHomePosition re-captures the zero reference the relative axis
// pins report against.
func (d *Driver) SetNewHomePosition() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dev.SetNewHomePosition()
}

// refresh returns the current decoded snapshot, polling the bus only
// when the cached one is older than the poll interval.
func (d *Driver) refresh() (wiilib.InterfaceState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.lastPoll.IsZero() && time.Since(d.lastPoll) < d.pollInterval {
		return d.dev.Current(), nil
	}
	if err := d.dev.PollStatus(); err != nil {
		return wiilib.InterfaceState{}, fmt.Errorf("%s: poll: %w", driverName, err)
	}
	d.lastPoll = time.Now()
	if d.debug {
		log.Printf("%s target=%s polled: %+v", driverName, d.dev.Target(), d.dev.Current())
	}
	return d.dev.Current(), nil
}

// buttonPin exposes one discrete control as a digital input.
type buttonPin struct {
	driver *Driver
	name   string
	number int
	get    func(wiilib.InterfaceState) bool

	// last is guarded by driver.mu.
	last bool
}

func (p *buttonPin) Name() string { return fmt.Sprintf("%s:%s", driverName, p.name) }
func (p *buttonPin) Number() int  { return p.number }
func (p *buttonPin) Close() error { return nil }

func (p *buttonPin) Read() (bool, error) {
	st, err := p.driver.refresh()
	if err != nil {
		return false, err
	}
	v := p.get(st)
	p.driver.mu.Lock()
	p.last = v
	p.driver.mu.Unlock()
	return v, nil
}

func (p *buttonPin) LastState() bool {
	p.driver.mu.Lock()
	defer p.driver.mu.Unlock()
	return p.last
}

// axisPin exposes one numeric control as an analog input.
type axisPin struct {
	driver *Driver
	name   string
	number int
	get    func(wiilib.InterfaceState) float64
}

func (p *axisPin) Name() string { return fmt.Sprintf("%s:%s", driverName, p.name) }
func (p *axisPin) Number() int  { return p.number }
func (p *axisPin) Close() error { return nil }

func (p *axisPin) Value() (float64, error) { return p.Measure() }

func (p *axisPin) Measure() (float64, error) {
	st, err := p.driver.refresh()
	if err != nil {
		return 0, err
	}
	return p.get(st), nil
}

// Calibrate is a no-op; the controller reports raw counts and any
// scaling belongs to the consumer.
func (p *axisPin) Calibrate(_ []hal.Measurement) error { return nil }

var buttonControls = []struct {
	name string
	get  func(wiilib.InterfaceState) bool
}{
	{"button-a", func(s wiilib.InterfaceState) bool { return s.ButtonA }},
	{"button-b", func(s wiilib.InterfaceState) bool { return s.ButtonB }},
	{"button-c", func(s wiilib.InterfaceState) bool { return s.ButtonC }},
	{"button-x", func(s wiilib.InterfaceState) bool { return s.ButtonX }},
	{"button-y", func(s wiilib.InterfaceState) bool { return s.ButtonY }},
	{"button-zl", func(s wiilib.InterfaceState) bool { return s.ButtonZL }},
	{"button-zr", func(s wiilib.InterfaceState) bool { return s.ButtonZR }},
	{"button-minus", func(s wiilib.InterfaceState) bool { return s.ButtonMinus }},
	{"button-home", func(s wiilib.InterfaceState) bool { return s.ButtonHome }},
	{"button-plus", func(s wiilib.InterfaceState) bool { return s.ButtonPlus }},
	{"dpad-left", func(s wiilib.InterfaceState) bool { return s.DPadLeft }},
	{"dpad-up", func(s wiilib.InterfaceState) bool { return s.DPadUp }},
	{"dpad-right", func(s wiilib.InterfaceState) bool { return s.DPadRight }},
	{"dpad-down", func(s wiilib.InterfaceState) bool { return s.DPadDown }},
	{"button-lt", func(s wiilib.InterfaceState) bool { return s.ButtonLeftTrigger }},
	{"button-rt", func(s wiilib.InterfaceState) bool { return s.ButtonRightTrigger }},
}

var axisControls = []struct {
	name string
	get  func(wiilib.InterfaceState) float64
}{
	{"analog-left-x", func(s wiilib.InterfaceState) float64 { return float64(s.AnalogLeftX) }},
	{"analog-left-y", func(s wiilib.InterfaceState) float64 { return float64(s.AnalogLeftY) }},
	{"analog-right-x", func(s wiilib.InterfaceState) float64 { return float64(s.AnalogRightX) }},
	{"analog-right-y", func(s wiilib.InterfaceState) float64 { return float64(s.AnalogRightY) }},
	{"trigger-left", func(s wiilib.InterfaceState) float64 { return float64(s.TriggerLeft) }},
	{"trigger-right", func(s wiilib.InterfaceState) float64 { return float64(s.TriggerRight) }},
	{"accel-x", func(s wiilib.InterfaceState) float64 { return float64(s.AccelX) }},
	{"accel-y", func(s wiilib.InterfaceState) float64 { return float64(s.AccelY) }},
	{"accel-z", func(s wiilib.InterfaceState) float64 { return float64(s.AccelZ) }},
	{"gyro-x", func(s wiilib.InterfaceState) float64 { return float64(s.GyroX) }},
	{"gyro-y", func(s wiilib.InterfaceState) float64 { return float64(s.GyroY) }},
	{"gyro-z", func(s wiilib.InterfaceState) float64 { return float64(s.GyroZ) }},
}

func (d *Driver) buildPins() {
	for i, c := range buttonControls {
		d.buttons = append(d.buttons, &buttonPin{driver: d, name: c.name, number: i, get: c.get})
	}
	for i, c := range axisControls {
		d.axes = append(d.axes, &axisPin{driver: d, name: c.name, number: i, get: c.get})
	}
}

func (d *Driver) DigitalInputPins() []hal.DigitalInputPin {
	out := make([]hal.DigitalInputPin, len(d.buttons))
	for i, p := range d.buttons {
		out[i] = p
	}
	return out
}

func (d *Driver) DigitalInputPin(n int) (hal.DigitalInputPin, error) {
	if n < 0 || n >= len(d.buttons) {
		return nil, fmt.Errorf("%s: invalid digital pin %d", driverName, n)
	}
	return d.buttons[n], nil
}

func (d *Driver) AnalogInputPins() []hal.AnalogInputPin {
	out := make([]hal.AnalogInputPin, len(d.axes))
	for i, p := range d.axes {
		out[i] = p
	}
	return out
}

func (d *Driver) AnalogInputPin(n int) (hal.AnalogInputPin, error) {
	if n < 0 || n >= len(d.axes) {
		return nil, fmt.Errorf("%s: invalid analog pin %d", driverName, n)
	}
	return d.axes[n], nil
}

func (d *Driver) Pins(cap hal.Capability) ([]hal.Pin, error) {
	switch cap {
	case hal.DigitalInput:
		var pins []hal.Pin
		for _, p := range d.buttons {
			pins = append(pins, p)
		}
		sort.Slice(pins, func(i, j int) bool { return pins[i].Name() < pins[j].Name() })
		return pins, nil
	case hal.AnalogInput:
		var pins []hal.Pin
		for _, p := range d.axes {
			pins = append(pins, p)
		}
		sort.Slice(pins, func(i, j int) bool { return pins[i].Name() < pins[j].Name() })
		return pins, nil
	default:
		return nil, fmt.Errorf("%s: unsupported capability: %s", driverName, cap.String())
	}
}
