package identity

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DecodeEmbedding converts a raw embedding blob into a float64 vector of
// the given dimensionality. Blobs are written by the enrollment tooling
// as packed little-endian float64, but older records used float32, so
// both widths are tried in that order. A blob that decodes to the wrong
// length under both widths is rejected.
func DecodeEmbedding(raw []byte, dim int) ([]float64, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid embedding dimensionality %d", dim)
	}

	if len(raw) == dim*8 {
		out := make([]float64, dim)
		for i := range out {
			bits := binary.LittleEndian.Uint64(raw[i*8:])
			out[i] = math.Float64frombits(bits)
		}
		return out, nil
	}

	if len(raw) == dim*4 {
		out := make([]float64, dim)
		for i := range out {
			bits := binary.LittleEndian.Uint32(raw[i*4:])
			out[i] = float64(math.Float32frombits(bits))
		}
		return out, nil
	}

	return nil, fmt.Errorf("embedding blob is %d bytes, want %d values as float64 or float32", len(raw), dim)
}
