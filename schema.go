package pagedb

import "encoding/binary"

// Bucket names for the store's logical indices. bbolt buckets are always
// ordered byte-lexicographically on their keys; there is no pluggable
// comparator as there would be in LMDB/mdbx. u64 keys are therefore
// encoded big-endian, not native-endian, specifically so that
// byte-lexicographic order equals numeric order — see DESIGN.md for the
// reasoning. Value encodings stay little-endian, matching the PageInfo
// codec.
var (
	bucketInfo      = []byte("info")
	bucketHash2Idx  = []byte("hash2idx")
	bucketHash2Info = []byte("hash2info")
	bucketLinks     = []byte("links")
)

// keyNPages is the info bucket's tag for the next-index counter.
var keyNPages = []byte("n_pages")

// allBuckets lists every bucket created on Open.
var allBuckets = [][]byte{bucketInfo, bucketHash2Idx, bucketHash2Info, bucketLinks}

// encodeU64Key big-endian encodes v so that bbolt's byte-lexicographic
// bucket ordering matches numeric ordering over v.
func encodeU64Key(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func decodeU64Key(buf []byte) uint64 {
	return binary.BigEndian.Uint64(buf)
}

// encodeU64Value little-endian encodes v for storage as a bucket value
// (n_pages counter, hash2idx index, and links target-list entries).
func encodeU64Value(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}

func decodeU64Value(buf []byte) (uint64, error) {
	if len(buf) != 8 {
		return 0, Errorf(Internal, "expected 8-byte value, got %d bytes", len(buf))
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// encodeEdgeList packs target indices in page order, little-endian,
// with no delimiter — the buffer length alone determines the count.
func encodeEdgeList(targets []uint64) []byte {
	buf := make([]byte, 8*len(targets))
	for i, t := range targets {
		binary.LittleEndian.PutUint64(buf[i*8:i*8+8], t)
	}
	return buf
}

// decodeEdgeList unpacks a buffer produced by encodeEdgeList.
func decodeEdgeList(buf []byte) ([]uint64, error) {
	if len(buf)%8 != 0 {
		return nil, Errorf(Internal, "edge list buffer length %d is not a multiple of 8", len(buf))
	}
	targets := make([]uint64, len(buf)/8)
	for i := range targets {
		targets[i] = binary.LittleEndian.Uint64(buf[i*8 : i*8+8])
	}
	return targets, nil
}
