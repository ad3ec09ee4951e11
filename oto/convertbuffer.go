package oto

import (
	"encoding/binary"
	"math"
)

// FloatBufferTo16BitLE converts a float32 buffer to 16-bit little-endian
// PCM, appending to dst. Values are clipped to [-1,1].
func FloatBufferTo16BitLE(buff []float32, dst []byte) []byte {
	for _, v := range buff {
		var uv int16
		switch {
		case v < -1.0:
			uv = -math.MaxInt16
		case v > 1.0:
			uv = math.MaxInt16
		default:
			uv = int16(v * math.MaxInt16)
		}
		dst = binary.LittleEndian.AppendUint16(dst, uint16(uv))
	}
	return dst
}

// FloatBufferToFloat32LE serializes a float32 buffer as little-endian bytes,
// appending to dst.
func FloatBufferToFloat32LE(buff []float32, dst []byte) []byte {
	for _, v := range buff {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}
