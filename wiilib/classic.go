package wiilib

// decodeClassic interprets a 6-byte Classic Controller status payload.
//
// Direct layout: 6-bit sticks (left stick in the low bits of bytes 0-1,
// right Y in the low bits of byte 2), right stick X split across three
// fragments (byte 0 bits <7:6>, byte 1 bits <7:6>, byte 2 bit <7>),
// 5-bit triggers split high/low (left: byte 2 bits <6:5> + byte 3 bits
// <7:5>; right: byte 3 bits <4:0>), and fifteen active-low button/d-pad
// bits in bytes 4-5.
//
// Pass-through layout (behind a Motion-Plus): the low bit of each stick
// byte is repurposed, carrying d-pad up (byte 0) and d-pad left (byte 1),
// so sticks are masked even; their byte 5 positions read as reserved.
// Buttons arrive active high and are not inverted.
func decodeClassic(payload []byte, passThrough bool) (InterfaceState, error) {
	var st InterfaceState
	if err := payloadLenCheck(payload); err != nil {
		return st, err
	}

	if passThrough {
		st.AnalogLeftX = int16(payload[0] & 0x3E)
		st.AnalogLeftY = int16(payload[1] & 0x3E)
	} else {
		st.AnalogLeftX = int16(payload[0] & 0x3F)
		st.AnalogLeftY = int16(payload[1] & 0x3F)
	}
	st.AnalogRightX = int16(uint16(payload[0]>>6)<<3 | uint16(payload[1]>>6)<<1 | uint16(payload[2]>>7))
	st.AnalogRightY = int16(payload[2] & 0x1F)

	st.TriggerLeft = int8(((payload[2]>>5)&0x03)<<3 | (payload[3]>>5)&0x07)
	st.TriggerRight = int8(payload[3] & 0x1F)

	if passThrough {
		st.DPadUp = payload[0]&0x01 != 0
		st.DPadLeft = payload[1]&0x01 != 0

		st.DPadRight = payload[4]&0x80 != 0
		st.DPadDown = payload[4]&0x40 != 0
		st.ButtonLeftTrigger = payload[4]&0x20 != 0
		st.ButtonMinus = payload[4]&0x10 != 0
		st.ButtonHome = payload[4]&0x08 != 0
		st.ButtonPlus = payload[4]&0x04 != 0
		st.ButtonRightTrigger = payload[4]&0x02 != 0

		st.ButtonZL = payload[5]&0x80 != 0
		st.ButtonB = payload[5]&0x40 != 0
		st.ButtonY = payload[5]&0x20 != 0
		st.ButtonA = payload[5]&0x10 != 0
		st.ButtonX = payload[5]&0x08 != 0
		st.ButtonZR = payload[5]&0x04 != 0
	} else {
		// Active low when directly connected.
		st.DPadRight = payload[4]&0x80 == 0
		st.DPadDown = payload[4]&0x40 == 0
		st.ButtonLeftTrigger = payload[4]&0x20 == 0
		st.ButtonMinus = payload[4]&0x10 == 0
		st.ButtonHome = payload[4]&0x08 == 0
		st.ButtonPlus = payload[4]&0x04 == 0
		st.ButtonRightTrigger = payload[4]&0x02 == 0

		st.ButtonZL = payload[5]&0x80 == 0
		st.ButtonB = payload[5]&0x40 == 0
		st.ButtonY = payload[5]&0x20 == 0
		st.ButtonA = payload[5]&0x10 == 0
		st.ButtonX = payload[5]&0x08 == 0
		st.ButtonZR = payload[5]&0x04 == 0
		st.DPadLeft = payload[5]&0x02 == 0
		st.DPadUp = payload[5]&0x01 == 0
	}

	return st, nil
}
