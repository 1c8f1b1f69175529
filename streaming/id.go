package streaming

import (
	"encoding/binary"
	"encoding/hex"
	"io"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"
)

// StreamID is the deterministic identifier of a stream slot.
type StreamID [32]byte

// String renders the identifier as lowercase hex.
func (id StreamID) String() string {
	return hex.EncodeToString(id[:])
}

// DeriveStreamID hashes the five identifying fields into a stream slot key.
// The field order is part of the format: payer, recipient, rate, starts,
// ends. String fields are length-prefixed and integers are big-endian
// fixed-width, so distinct parameter tuples cannot collide by
// concatenation. Identical parameters always map to the same slot; that is
// how the cancel/create pair inside a modify finds the same record.
func DeriveStreamID(payer, recipient string, ratePerSec decimal.Decimal, starts, ends int64) StreamID {
	h := sha3.New256()

	writeString(h, payer)
	writeString(h, recipient)
	writeString(h, ratePerSec.String())
	writeInt64(h, starts)
	writeInt64(h, ends)

	var id StreamID
	h.Sum(id[:0])
	return id
}

func writeString(w io.Writer, s string) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(s)))
	w.Write(n[:])
	io.WriteString(w, s)
}

func writeInt64(w io.Writer, v int64) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(v))
	w.Write(n[:])
}
