package arh

import "encoding/binary"

// obfuscationConstant is XORed with the header's encryption key to derive
// the per-archive word mask applied to the string table and path dictionary
// regions. See §4.1 of the format: "mask = key XOR 0xF3F35353".
const obfuscationConstant = 0xF3F35353

// mask returns the 32-bit XOR mask derived from the header's encryption key.
func mask(key uint32) uint32 {
	return key ^ obfuscationConstant
}

// xorRegion XORs every 4-byte little-endian word of b in place with the
// mask derived from key. It is its own inverse: encoding and decoding are
// the same operation, which is what §4.1 means by "recomputed each time
// from the current header key."
//
// b's length need not be a multiple of 4; a short trailing word is XORed
// byte-wise against the low bytes of the mask.
func xorRegion(b []byte, key uint32) {
	m := mask(key)
	var mb [4]byte
	binary.LittleEndian.PutUint32(mb[:], m)
	for i := range b {
		b[i] ^= mb[i%4]
	}
}

// XOR returns a copy of b with the key-derived mask applied. Since XOR is
// its own inverse, the same function both decodes a freshly-read region
// and encodes one for writing.
func XOR(b []byte, key uint32) []byte {
	out := append([]byte(nil), b...)
	xorRegion(out, key)
	return out
}
