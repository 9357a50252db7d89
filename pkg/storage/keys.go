package storage

import "encoding/binary"

// Key schema:
//
//	st           → gob-encoded pair state snapshot
//	e:<8-byte-seq> → event record, big-endian sequence number
//	es           → last written event sequence
var (
	keyState   = []byte("st")
	keyLastSeq = []byte("es")
)

func eventKey(seq uint64) []byte {
	k := make([]byte, 2+8)
	copy(k, "e:")
	binary.BigEndian.PutUint64(k[2:], seq)
	return k
}

func seqBytes(seq uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return b[:]
}
