package identity

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/kozaktomas/face-gate/internal/config"
)

func packFloat64(values []float64) []byte {
	buf := make([]byte, len(values)*8)
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func packFloat32(values []float64) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
	}
	return buf
}

func TestDecodeEmbedding_Float64(t *testing.T) {
	values := make([]float64, config.EmbeddingDim)
	for i := range values {
		values[i] = float64(i) * 0.01
	}

	decoded, err := DecodeEmbedding(packFloat64(values), config.EmbeddingDim)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(decoded) != config.EmbeddingDim {
		t.Fatalf("expected %d values, got %d", config.EmbeddingDim, len(decoded))
	}

	for i, v := range values {
		if decoded[i] != v {
			t.Errorf("value %d: expected %f, got %f", i, v, decoded[i])
		}
	}
}

func TestDecodeEmbedding_Float32Promoted(t *testing.T) {
	values := make([]float64, config.EmbeddingDim)
	for i := range values {
		values[i] = float64(i) * 0.25
	}

	decoded, err := DecodeEmbedding(packFloat32(values), config.EmbeddingDim)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, v := range values {
		if math.Abs(decoded[i]-v) > 1e-5 {
			t.Errorf("value %d: expected ~%f, got %f", i, v, decoded[i])
		}
	}
}

func TestDecodeEmbedding_WrongLength(t *testing.T) {
	// 100 float64 values cannot satisfy a 128-dim contract under either width.
	raw := packFloat64(make([]float64, 100))

	if _, err := DecodeEmbedding(raw, config.EmbeddingDim); err == nil {
		t.Error("expected error for wrong-length blob")
	}
}

func TestDecodeEmbedding_EmptyBlob(t *testing.T) {
	if _, err := DecodeEmbedding(nil, config.EmbeddingDim); err == nil {
		t.Error("expected error for empty blob")
	}
}

func TestDecodeEmbedding_InvalidDim(t *testing.T) {
	if _, err := DecodeEmbedding([]byte{1, 2, 3}, 0); err == nil {
		t.Error("expected error for zero dimensionality")
	}
}
