package wiilib

// decodeNunchuck interprets a 6-byte Nunchuk status payload.
//
// Direct layout: bytes 0-1 stick X/Y, bytes 2-4 accelerometer bits <9:2>,
// byte 5 packs the Z/C buttons (bits 0-1, active low) with accelerometer
// bits <1:0> for each axis (X in bits 2-3, Y in 4-5, Z in 6-7).
//
// Pass-through layout (behind a Motion-Plus): the extension-detect flag
// steals the low bit of each stick byte and of the accelerometer low
// bits, so sticks are masked even and each axis keeps a single low bit
// (Z keeps two but drops bit <0>). Byte 5 moves Z/C to bits 2-3 and
// reports them active high.
func decodeNunchuck(payload []byte, passThrough bool) (InterfaceState, error) {
	var st InterfaceState
	if err := payloadLenCheck(payload); err != nil {
		return st, err
	}

	if passThrough {
		st.AnalogLeftX = int16(payload[0] &^ 0x01)
		st.AnalogLeftY = int16(payload[1] &^ 0x01)
		st.AccelX = int16(uint16(payload[2])<<2 | uint16((payload[5]>>4)&0x01)<<1)
		st.AccelY = int16(uint16(payload[3])<<2 | uint16((payload[5]>>5)&0x01)<<1)
		st.AccelZ = int16(uint16((payload[4]>>1)&0xFE)<<2 | uint16((payload[5]>>6)&0x03)<<1)
		st.ButtonZL = (payload[5]>>2)&0x01 != 0
		st.ButtonC = (payload[5]>>3)&0x01 != 0
	} else {
		st.AnalogLeftX = int16(payload[0])
		st.AnalogLeftY = int16(payload[1])
		st.AccelX = int16(uint16(payload[2])<<2 | uint16((payload[5]>>2)&0x03))
		st.AccelY = int16(uint16(payload[3])<<2 | uint16((payload[5]>>4)&0x03))
		st.AccelZ = int16(uint16(payload[4])<<2 | uint16((payload[5]>>6)&0x03))
		// Active low when directly connected.
		st.ButtonZL = payload[5]&0x01 == 0
		st.ButtonC = payload[5]&0x02 == 0
	}

	// Mirror the single stick and button pair into both sides.
	st.ButtonZR = st.ButtonZL
	st.AnalogRightX = st.AnalogLeftX
	st.AnalogRightY = st.AnalogLeftY

	return st, nil
}
