package modbus

// packBits packs bits LSB first into bytes. Unused bits of the last byte are
// zero.
func packBits(bits []bool) []byte {
	packed := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b {
			packed[i/8] |= 1 << (i % 8)
		}
	}
	return packed
}

// unpackBits unpacks all 8*len(packed) bits from packed, LSB first.
func unpackBits(packed []byte) []bool {
	bits := make([]bool, 8*len(packed))
	for i := range bits {
		bits[i] = packed[i/8]&(1<<(i%8)) != 0
	}
	return bits
}

// truncateBits returns the first n bits. If there are fewer, bits is returned
// unchanged.
func truncateBits(bits []bool, n uint16) []bool {
	if int(n) < len(bits) {
		return bits[:n]
	}
	return bits
}
