// factory.go
//
// Wii extension controller driver factory for reef-pi.
//
// Exposes one Wii-style I2C extension peripheral (Nunchuk, Classic
// Controller, Motion-Plus pass-through modes) as a reef-pi HAL driver:
//
//   - Every button and d-pad direction is a DigitalInput pin
//   - Every stick/trigger/accelerometer/gyro axis is an AnalogInput pin
//
// The Target parameter names the expected peripheral; "auto" accepts
// whatever identifies on the bus. When a concrete Target is configured
// and a different peripheral answers, the driver logs the discovered
// kind and carries on with it; the peripheral did respond and is fully
// usable.
package wiihal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/reef-pi/hal"
	rpi "github.com/reef-pi/rpi/i2c"

	"github.com/sudolegit/lib-wii/i2c"
	"github.com/sudolegit/lib-wii/wiilib"
)

const (
	driverName = "wii-extension"

	paramTarget       = "Target"       // string: auto, nunchuck, classic-controller, ...
	paramEncrypted    = "Encrypted"    // bool: leave the target in its obfuscated protocol mode
	paramPollInterval = "PollInterval" // int, milliseconds between bus polls; reads in between serve the cached state
	paramDebug        = "Debug"        // bool
)

const defaultPollIntervalMs = 50

type factory struct {
	meta       hal.Metadata
	parameters []hal.ConfigParameter
}

var (
	f    *factory
	once sync.Once
)

func Factory() hal.DriverFactory {
	once.Do(func() {
		f = &factory{
			meta: hal.Metadata{
				Name:        driverName,
				Description: "Wii extension controller (Nunchuk / Classic Controller / Motion-Plus pass-through). Buttons as digital inputs, axes as analog inputs.",
				Capabilities: []hal.Capability{
					hal.DigitalInput,
					hal.AnalogInput,
				},
			},
			parameters: []hal.ConfigParameter{
				{Name: paramTarget, Type: hal.String, Order: 0, Default: "auto"},
				{Name: paramEncrypted, Type: hal.Boolean, Order: 1, Default: false},
				{Name: paramPollInterval, Type: hal.Integer, Order: 2, Default: defaultPollIntervalMs},
				{Name: paramDebug, Type: hal.Boolean, Order: 3, Default: false},
			},
		}
	})
	return f
}

func (f *factory) Metadata() hal.Metadata               { return f.meta }
func (f *factory) GetParameters() []hal.ConfigParameter { return f.parameters }

// parseTarget maps the UI string onto a device kind. "auto" means accept
// whatever identifies on the bus.
func parseTarget(s string) (wiilib.Kind, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "", "auto", "unknown":
		return wiilib.KindUnknown, nil
	case "nunchuck", "nunchuk":
		return wiilib.KindNunchuck, nil
	case "classic", "classic-controller":
		return wiilib.KindClassicController, nil
	case "motion-plus":
		return wiilib.KindMotionPlus, nil
	case "motion-plus+nunchuck", "motion-plus+nunchuk":
		return wiilib.KindMotionPlusNunchuck, nil
	case "motion-plus+classic", "motion-plus+classic-controller":
		return wiilib.KindMotionPlusClassic, nil
	}
	return 0, fmt.Errorf("unknown target %q (use auto, nunchuck, classic-controller, motion-plus, motion-plus+nunchuck or motion-plus+classic-controller)", s)
}

func (f *factory) ValidateParameters(params map[string]interface{}) (bool, map[string][]string) {
	errs := make(map[string][]string)

	if v, ok := params[paramTarget]; ok {
		s, sok := v.(string)
		if !sok {
			errs[paramTarget] = append(errs[paramTarget], "must be a string")
		} else if _, err := parseTarget(s); err != nil {
			errs[paramTarget] = append(errs[paramTarget], err.Error())
		}
	}

	if v, ok := params[paramEncrypted]; ok {
		if _, ok := v.(bool); !ok {
			errs[paramEncrypted] = append(errs[paramEncrypted], "must be boolean")
		}
	}

	if v, ok := params[paramPollInterval]; ok {
		i, iok := hal.ConvertToInt(v)
		if !iok || i < 0 || i > 10000 {
			errs[paramPollInterval] = append(errs[paramPollInterval], "must be 0..10000 milliseconds")
		}
	}

	if v, ok := params[paramDebug]; ok {
		if _, ok := v.(bool); !ok {
			errs[paramDebug] = append(errs[paramDebug], "must be boolean")
		}
	}

	if len(errs) > 0 {
		return false, errs
	}
	return true, nil
}

func (f *factory) NewDriver(params map[string]interface{}, hardwareResources interface{}) (hal.Driver, error) {
	if ok, failures := f.ValidateParameters(params); !ok {
		return nil, errors.New(hal.ToErrorString(failures))
	}

	bus, ok := hardwareResources.(rpi.Bus)
	if !ok {
		return nil, fmt.Errorf("%s: expected i2c.Bus, got %T", driverName, hardwareResources)
	}

	targetStr, _ := params[paramTarget].(string)
	target, err := parseTarget(targetStr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", driverName, err)
	}

	encrypted := false
	if v, ok := params[paramEncrypted]; ok {
		encrypted, _ = v.(bool)
	}

	pollMs := defaultPollIntervalMs
	if v, ok := params[paramPollInterval]; ok {
		if i, iok := hal.ConvertToInt(v); iok {
			pollMs = i
		}
	}

	debug := false
	if v, ok := params[paramDebug]; ok {
		debug, _ = v.(bool)
	}
	if debug {
		if b, err := json.MarshalIndent(params, "", "  "); err == nil {
			log.Printf("%s NewDriver params:\n%s", driverName, string(b))
		}
	}

	dev, err := wiilib.InitializeWithBus(newBusTransport(bus), uint32(i2c.ClockRateStandard), target, !encrypted)
	switch {
	case err == nil:
	case errors.Is(err, wiilib.ErrTargetIDMismatch):
		// Not fatal: a peripheral did respond, just not the configured
		// kind. Drive what was found.
		log.Printf("%s: configured target %q but discovered %s; using it", driverName, targetStr, dev.Target())
	default:
		return nil, fmt.Errorf("%s: initialize target %s: %w", driverName, target, err)
	}
	dev.SetDebug(debug)

	d := &Driver{
		dev:          dev,
		meta:         f.meta,
		pollInterval: time.Duration(pollMs) * time.Millisecond,
		debug:        debug,
	}
	d.buildPins()

	log.Printf("%s init target=%s encrypted=%v poll=%dms debug=%v", driverName, dev.Target(), encrypted, pollMs, debug)

	return d, nil
}
