// Package fptree implements the fingerprinting B+-tree core: the
// persistent leaf layout, the volatile inner/leaf node index rebuilt on
// every open, and the search/insert/split/delete/recovery algorithms
// that tie them together over an internal/pmpool.Pool.
package fptree

// fingerprint.go implements the single-byte Pearson hash used as a
// per-slot key fingerprint: a fixed 256-entry permutation table folded
// over the key bytes. Because persisted fingerprints must stay
// reproducible across versions, this table is part of the on-disk
// contract, not an implementation detail — it must never change once a
// pool has been written with it.

var pearsonTable = [256]byte{
	0x95, 0x25, 0x79, 0xcf, 0xa2, 0xd7, 0x70, 0x04, 0xfe, 0xd8, 0xab, 0x03, 0x37, 0x43, 0xc3, 0xc6,
	0xb9, 0x1b, 0xd5, 0xe6, 0x19, 0x42, 0x74, 0x3c, 0x18, 0x67, 0x77, 0x1c, 0xb4, 0xc2, 0x6c, 0x73,
	0x4e, 0xf3, 0xa9, 0x5b, 0x64, 0x80, 0x08, 0xfa, 0xfc, 0x5c, 0xb5, 0x32, 0xc9, 0x85, 0x7a, 0x82,
	0xe7, 0xe0, 0x57, 0xac, 0x69, 0xbe, 0xff, 0x10, 0xa8, 0x47, 0xdc, 0x4a, 0x0e, 0xf1, 0x12, 0x4f,
	0x90, 0x23, 0xee, 0xa4, 0xdf, 0x49, 0x9e, 0x2d, 0x20, 0x98, 0xfb, 0x3d, 0x6f, 0x99, 0x61, 0xf8,
	0xe5, 0xae, 0x7b, 0x17, 0x0d, 0xce, 0x5a, 0xb8, 0xb2, 0x44, 0xc7, 0x8e, 0x53, 0xde, 0x1e, 0x9f,
	0xe2, 0xdb, 0x52, 0x76, 0x6d, 0x0f, 0xe9, 0x40, 0xcd, 0xf2, 0xea, 0x0b, 0xad, 0xd3, 0x2a, 0x91,
	0x81, 0x28, 0xb1, 0x84, 0x92, 0xaa, 0xf5, 0x83, 0x4c, 0xd9, 0xa3, 0xa7, 0x39, 0x59, 0x3a, 0x72,
	0x60, 0x5d, 0x6b, 0x16, 0x8d, 0x24, 0x2c, 0x86, 0x48, 0xca, 0x1a, 0xf0, 0x14, 0xbb, 0x62, 0xaf,
	0x31, 0x3e, 0xc8, 0x68, 0xbd, 0x7f, 0xed, 0xe8, 0x9c, 0xbc, 0xbf, 0x27, 0xdd, 0x8c, 0x6e, 0xe1,
	0x94, 0x54, 0xc5, 0x9a, 0xf4, 0x2e, 0xe4, 0x8f, 0x71, 0x63, 0xba, 0xa5, 0x0a, 0x3f, 0x55, 0xf9,
	0x33, 0xf6, 0x9d, 0xd1, 0xcb, 0x7c, 0x75, 0xc1, 0xfd, 0x78, 0x46, 0x38, 0x1f, 0x07, 0xd4, 0x22,
	0x2b, 0xa1, 0x4b, 0x51, 0x89, 0x9b, 0x56, 0xb0, 0x5e, 0xd6, 0xc4, 0x41, 0x7d, 0x00, 0x3b, 0x65,
	0xb6, 0x93, 0x58, 0x87, 0x26, 0xb3, 0xd0, 0xda, 0x88, 0x7e, 0x09, 0x29, 0x01, 0x96, 0x30, 0x36,
	0x2f, 0xd2, 0x50, 0x1d, 0x5f, 0xc0, 0xef, 0x34, 0x6a, 0x02, 0x15, 0xa6, 0xec, 0x45, 0x21, 0x8b,
	0xe3, 0xf7, 0x0c, 0x8a, 0x05, 0x11, 0xeb, 0x66, 0xb7, 0x06, 0x4d, 0xa0, 0xcc, 0x13, 0x35, 0x97,
}

// PearsonHash computes the one-byte Pearson hash of key, with the length
// as the hash's initial seed before folding the bytes right-to-left. The
// computed byte 0 is reserved to mean "empty slot", so a hash of 0 is
// substituted with 1.
func PearsonHash(key []byte) byte {
	h := byte(len(key))
	for i := len(key) - 1; i >= 0; i-- {
		h = pearsonTable[h^key[i]]
	}
	if h == 0 {
		return 1
	}
	return h
}
