package transport

import (
	"errors"
	"fmt"
)

// Delimiter terminates every COBS frame on the wire.
const Delimiter = 0x00

// ErrCOBS means a frame could not be un-stuffed.
var ErrCOBS = errors.New("malformed COBS frame")

// AppendCOBS stuffs src so it contains no zero bytes, appends it to dst and terminates it
// with Delimiter.
func AppendCOBS(dst, src []byte) []byte {
	codeIdx := len(dst)
	dst = append(dst, 0)
	code := byte(1)
	for _, b := range src {
		if b == 0 {
			dst[codeIdx] = code
			codeIdx = len(dst)
			dst = append(dst, 0)
			code = 1
			continue
		}
		dst = append(dst, b)
		code++
		if code == 0xff {
			dst[codeIdx] = code
			codeIdx = len(dst)
			dst = append(dst, 0)
			code = 1
		}
	}
	dst[codeIdx] = code
	return append(dst, Delimiter)
}

// DecodeCOBS reverses AppendCOBS for one frame with its delimiter already removed. The
// result is appended to dst.
func DecodeCOBS(dst, src []byte) ([]byte, error) {
	for i := 0; i < len(src); {
		code := int(src[i])
		if code == 0 {
			return dst, fmt.Errorf("zero code byte at %d: %w", i, ErrCOBS)
		}
		i++
		end := i + code - 1
		if end > len(src) {
			return dst, fmt.Errorf("block at %d overruns frame: %w", i-1, ErrCOBS)
		}
		for _, b := range src[i:end] {
			if b == 0 {
				return dst, fmt.Errorf("zero data byte in block at %d: %w", i-1, ErrCOBS)
			}
		}
		dst = append(dst, src[i:end]...)
		i = end
		if code < 0xff && i < len(src) {
			dst = append(dst, 0)
		}
	}
	return dst, nil
}
