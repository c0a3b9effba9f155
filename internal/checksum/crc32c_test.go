package checksum

import "testing"

func TestMaskRoundTrip(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	crc := Value(data)
	masked := Mask(crc)
	if Unmask(masked) != crc {
		t.Fatalf("Unmask(Mask(x)) = %d, want %d", Unmask(masked), crc)
	}
	if masked == crc {
		t.Fatalf("masked value should not equal the raw crc for typical input")
	}
}

func TestValueDeterministic(t *testing.T) {
	data := []byte("leaf-block-payload")
	if Value(data) != Value(append([]byte{}, data...)) {
		t.Fatalf("Value is not deterministic across equal byte slices")
	}
}

func TestExtendMatchesWholeValue(t *testing.T) {
	a := []byte("hello ")
	b := []byte("world")
	whole := Value(append(append([]byte{}, a...), b...))
	extended := Extend(Value(a), b)
	if whole != extended {
		t.Fatalf("Extend(Value(a), b) = %d, want Value(a+b) = %d", extended, whole)
	}
}

func TestComputeBlockChecksumMatchesMaskedValue(t *testing.T) {
	data := []byte("pool-header")
	if ComputeBlockChecksum(data) != MaskedValue(data) {
		t.Fatalf("ComputeBlockChecksum diverged from MaskedValue")
	}
}
