package wiilib

// Deobfuscate reverses the extension controller's byte scrambling in
// place. Devices configured through the legacy 0x40/0x00 handshake
// return every payload byte as ((b XOR 0x17) + 0x17); the plaintext
// handshake skips this entirely.
func Deobfuscate(buf []byte) {
	for i, b := range buf {
		buf[i] = (b ^ 0x17) + 0x17
	}
}
