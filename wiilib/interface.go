package wiilib

import "fmt"

// InterfaceState is the canonical decoded snapshot of a controller. It
// carries every feature known across the supported targets; targets
// without a feature leave its fields zeroed.
//
// Nunchuks have a single stick and a single Z/C button pair; the decoder
// mirrors them into both the left and right fields so downstream code
// never special-cases the device kind.
//
// Numeric fields are signed so a relative snapshot (current minus home)
// can be represented with the same type.
type InterfaceState struct {
	// Discrete buttons (pressed == true).
	ButtonA     bool
	ButtonB     bool
	ButtonC     bool
	ButtonX     bool
	ButtonY     bool
	ButtonZL    bool
	ButtonZR    bool
	ButtonMinus bool
	ButtonHome  bool
	ButtonPlus  bool

	// D-pad.
	DPadLeft  bool
	DPadUp    bool
	DPadRight bool
	DPadDown  bool

	// Trigger click switches and analog trigger travel.
	ButtonLeftTrigger  bool
	ButtonRightTrigger bool
	TriggerLeft        int8
	TriggerRight       int8

	// Analog sticks.
	AnalogLeftX  int16
	AnalogLeftY  int16
	AnalogRightX int16
	AnalogRightY int16

	// Accelerometer (10-bit equivalent).
	AccelX int16
	AccelY int16
	AccelZ int16

	// Gyroscope.
	GyroX int16
	GyroY int16
	GyroZ int16
}

// DecodeInterface maps a raw status payload into an InterfaceState for
// the given target kind. Decoding is pure; the payload is not modified.
//
// Motion-Plus direct mode has no published decode in this library and
// returns ErrUnsupportedDevice rather than guessing a bit layout.
func DecodeInterface(kind Kind, payload []byte) (InterfaceState, error) {
	switch kind {
	case KindNunchuck:
		return decodeNunchuck(payload, false)
	case KindMotionPlusNunchuck:
		return decodeNunchuck(payload, true)
	case KindClassicController:
		return decodeClassic(payload, false)
	case KindMotionPlusClassic:
		return decodeClassic(payload, true)
	case KindMotionPlus:
		return InterfaceState{}, fmt.Errorf("%w: motion-plus direct decode not implemented", ErrUnsupportedDevice)
	default:
		return InterfaceState{}, fmt.Errorf("%w: no decoder for %s", ErrUnsupportedDevice, kind)
	}
}

func payloadLenCheck(payload []byte) error {
	if len(payload) < responseLenDefault {
		return fmt.Errorf("%w: payload too short (%d bytes)", ErrInvalidData, len(payload))
	}
	return nil
}
