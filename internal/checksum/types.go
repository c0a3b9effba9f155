// types.go defines the checksum type identifiers and the block checksum
// used for adapter-owned records outside the fixed leaf/root layout.
package checksum

// Type identifies a checksum algorithm recorded alongside a persistent block.
type Type uint8

const (
	// TypeNoChecksum means no checksum is used.
	TypeNoChecksum Type = 0
	// TypeCRC32C is CRC32C (Castagnoli) checksum, the only algorithm wired in.
	TypeCRC32C Type = 1
)

// String returns a human-readable name for the checksum type.
func (t Type) String() string {
	switch t {
	case TypeNoChecksum:
		return "NoChecksum"
	case TypeCRC32C:
		return "CRC32C"
	default:
		return "Unknown"
	}
}

// ComputeBlockChecksum computes the masked CRC32C of an adapter-owned block
// (the pool header is the only caller) that sits outside the fixed on-media leaf
// contract, so a checksum field can be added without drifting the contract.
func ComputeBlockChecksum(data []byte) uint32 {
	return MaskedValue(data)
}
