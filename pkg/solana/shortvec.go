package solana

import (
	"bytes"

	"github.com/bundleminer/bundleminer/errors"
)

// encodeCompactU16 writes n using the ledger's compact-u16 encoding: seven bits per byte,
// high bit set on every byte but the last.
func encodeCompactU16(buf *bytes.Buffer, n int) error {
	if n < 0 || n > 0xffff {
		return errors.NewInvalidArgumentError("compact-u16 length out of range: %d", n)
	}

	for {
		b := byte(n & 0x7f)
		n >>= 7

		if n == 0 {
			buf.WriteByte(b)
			return nil
		}

		buf.WriteByte(b | 0x80)
	}
}

func decodeCompactU16(b []byte) (int, int, error) {
	value := 0

	for i := 0; i < 3; i++ {
		if i >= len(b) {
			return 0, 0, errors.NewInvalidArgumentError("compact-u16 truncated")
		}

		value |= int(b[i]&0x7f) << (7 * i)

		if b[i]&0x80 == 0 {
			return value, i + 1, nil
		}
	}

	return 0, 0, errors.NewInvalidArgumentError("compact-u16 too long")
}
