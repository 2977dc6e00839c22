package script

import "fmt"

// Numbers on the VM stack are little endian with a sign bit in the most
// significant byte, and zero is the empty byte string. This mirrors the
// encoding the external VM uses, so values recorded by the tracker compare
// byte-for-byte with what execution produces.

const maxNumLen = 8

// PutNum serializes n as a minimally-encoded script number.
func PutNum(n int64) []byte {
	if n == 0 {
		return nil
	}
	negative := n < 0
	if negative {
		n = -n
	}
	result := make([]byte, 0, 9)
	for n > 0 {
		result = append(result, byte(n&0xff))
		n >>= 8
	}
	// If the high bit of the most significant byte is taken, a padding byte
	// carries the sign instead.
	if result[len(result)-1]&0x80 != 0 {
		extra := byte(0x00)
		if negative {
			extra = 0x80
		}
		result = append(result, extra)
	} else if negative {
		result[len(result)-1] |= 0x80
	}
	return result
}

// ParseNum interprets v as a script number of at most maxLen bytes.
func ParseNum(v []byte, maxLen int) (int64, error) {
	if len(v) > maxLen {
		return 0, fmt.Errorf("number exceeds %d bytes: %x", maxLen, v)
	}
	if len(v) == 0 {
		return 0, nil
	}
	var result int64
	for i, b := range v {
		result |= int64(b) << uint(8*i)
	}
	if v[len(v)-1]&0x80 != 0 {
		result &= ^(int64(0x80) << uint(8*(len(v)-1)))
		return -result, nil
	}
	return result, nil
}

// ParseStackNum interprets a stack value as a number with the default
// 8-byte limit.
func ParseStackNum(v []byte) (int64, error) {
	return ParseNum(v, maxNumLen)
}
