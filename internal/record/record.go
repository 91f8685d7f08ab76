// Package record implements the on-disk layout of a single log entry:
// a fixed 8-byte header (key_len, value_len_field) followed by the key
// bytes and, for non-tombstone records, the value bytes.
//
// The format has no magic bytes, no version field, and no checksum — a log
// file is purely a concatenation of these records from offset 0 to EOF.
// Grounded in the wire format mini-bitcask-rs/src/log.rs writes in
// write_entry and parses in load_index.
package record

import (
	"encoding/binary"
	"math"

	"github.com/emberkv/emberkv/pkg/errors"
)

// HeaderSize is the fixed width, in bytes, of a record's header: a 4-byte
// unsigned key length followed by a 4-byte signed value-length field.
const HeaderSize = 8

// Tombstone is the canonical encoding of a deletion marker in the
// value-length field. Readers must treat any negative value as a
// tombstone, not just this exact value.
const Tombstone int32 = -1

// Header is the decoded form of a record's fixed-width prefix.
type Header struct {
	KeyLen        uint32
	ValueLenField int32
}

// IsTombstone reports whether this header marks a deletion.
func (h Header) IsTombstone() bool {
	return h.ValueLenField < 0
}

// ValueLen returns the length of the value that follows the key, or 0 for
// a tombstone (which has no value bytes on disk at all).
func (h Header) ValueLen() uint32 {
	if h.IsTombstone() {
		return 0
	}
	return uint32(h.ValueLenField)
}

// EncodeHeader writes keyLen and valueLenField into an 8-byte header.
func EncodeHeader(keyLen uint32, valueLenField int32) [HeaderSize]byte {
	var buf [HeaderSize]byte
	binary.BigEndian.PutUint32(buf[0:4], keyLen)
	binary.BigEndian.PutUint32(buf[4:8], uint32(valueLenField))
	return buf
}

// DecodeHeader parses an 8-byte header previously written by EncodeHeader.
// The caller must supply exactly HeaderSize bytes.
func DecodeHeader(buf []byte) Header {
	return Header{
		KeyLen:        binary.BigEndian.Uint32(buf[0:4]),
		ValueLenField: int32(binary.BigEndian.Uint32(buf[4:8])),
	}
}

// Encode builds a complete non-tombstone record: header, key, value.
func Encode(key, value []byte) ([]byte, error) {
	if err := validateLengths(key, value); err != nil {
		return nil, err
	}

	header := EncodeHeader(uint32(len(key)), int32(len(value)))

	buf := make([]byte, 0, HeaderSize+len(key)+len(value))
	buf = append(buf, header[:]...)
	buf = append(buf, key...)
	buf = append(buf, value...)
	return buf, nil
}

// EncodeTombstone builds a complete tombstone record: header and key only.
func EncodeTombstone(key []byte) ([]byte, error) {
	if err := validateLengths(key, nil); err != nil {
		return nil, err
	}

	header := EncodeHeader(uint32(len(key)), Tombstone)

	buf := make([]byte, 0, HeaderSize+len(key))
	buf = append(buf, header[:]...)
	buf = append(buf, key...)
	return buf, nil
}

// validateLengths rejects keys or values that would overflow their
// on-disk length fields: key_len is an unsigned 32-bit field, and
// value_len_field must remain non-negative (it doubles as the tombstone
// marker) so a value is bounded by the signed 32-bit range.
func validateLengths(key, value []byte) error {
	if uint64(len(key)) > math.MaxUint32 {
		return errors.NewValidationError(
			nil, errors.ErrorCodeInvalidInput, "key exceeds maximum encodable length",
		).WithField("key").WithRule("max_length").WithDetail("length", len(key)).WithDetail("max", uint32(math.MaxUint32))
	}
	if uint64(len(value)) > math.MaxInt32 {
		return errors.NewValidationError(
			nil, errors.ErrorCodeInvalidInput, "value exceeds maximum encodable length",
		).WithField("value").WithRule("max_length").WithDetail("length", len(value)).WithDetail("max", int32(math.MaxInt32))
	}
	return nil
}
