// Package lib provide useful bit-twiddling helpers for memory
// management algorithms.
package lib

// Bit8 alias for uint8, provides bit twiddling methods on 8-bit number.
type Bit8 uint8

// Ones count number of set bits.
func (b Bit8) Ones() int8 {
	b = b - ((b >> 1) & 0x55)
	b = (b & 0x33) + ((b >> 2) & 0x33)
	return int8((b + (b >> 4)) & 0x0f)
}

// Zeros count number of clear bits.
func (b Bit8) Zeros() int8 {
	return 8 - b.Ones()
}

// Setbit return a new number with nth bit set.
func (b Bit8) Setbit(n uint8) uint8 {
	return uint8(b) | (1 << n)
}

// Clearbit return a new number with nth bit clear.
func (b Bit8) Clearbit(n uint8) uint8 {
	return uint8(b) & ^uint8(1<<n)
}

// Findfirstset return the position of the least significant set bit,
// -1 if all bits are clear.
func (b Bit8) Findfirstset() int8 {
	if b == 0 {
		return -1
	}
	for n := uint8(0); n < 8; n++ {
		if (b & (1 << n)) != 0 {
			return int8(n)
		}
	}
	return -1 // unreachable
}
