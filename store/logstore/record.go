package logstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
)

const (
	kindValue byte = iota
	kindTombstone
)

// ErrInsufficientData is returned when the given data is not enough to be
// parsed into a record
var ErrInsufficientData = errors.New("insufficient bytes to parse a record")

// ErrCorruptData is returned when the crc checksum is not matching the provided serialized data
var ErrCorruptData = errors.New("crc checksum doesnt match the provided record data")

// ErrUnknownKind is returned for records whose kind byte is neither a value nor a tombstone
var ErrUnknownKind = errors.New("unknown record kind")

func newValue(key, value string) *record {
	return &record{
		kind:  kindValue,
		key:   key,
		value: []byte(value),
	}
}

func newTombstone(key string) *record {
	return &record{
		kind: kindTombstone,
		key:  key,
	}
}

// record is a single entry of the log.
//
// A record is serialized to a sequence of bytes in the following format
//
//	[checksum]: 4 bytes, CRC32 (IEEE) over everything that follows
//	[kind]:     1 byte
//	[keyLen]:   4 bytes
//	[valLen]:   4 bytes
//	[key]:      keyLen bytes
//	[value]:    valLen bytes
type record struct {
	kind  byte
	key   string
	value []byte
}

const (
	checksumSize = 4
	kindSize     = 1
	keyLenSize   = 4
	valLenSize   = 4
	headerLength = checksumSize + kindSize + keyLenSize + valLenSize

	kindOffset = checksumSize
)

func (r *record) isTombstone() bool {
	return r.kind == kindTombstone
}

// size returns the length of the serialized record.
func (r *record) size() int {
	return headerLength + len(r.key) + len(r.value)
}

// serialize serializes a record into the specified binary format
func (r *record) serialize() []byte {
	buf := bytes.NewBuffer(make([]byte, 0, r.size()))
	lenBuf := make([]byte, 4)

	// Placeholder for the checksum
	buf.Write(lenBuf)
	buf.WriteByte(r.kind)

	binary.BigEndian.PutUint32(lenBuf, uint32(len(r.key)))
	buf.Write(lenBuf)

	binary.BigEndian.PutUint32(lenBuf, uint32(len(r.value)))
	buf.Write(lenBuf)

	buf.WriteString(r.key)
	buf.Write(r.value)

	serialized := buf.Bytes()
	binary.BigEndian.PutUint32(serialized, crc32.ChecksumIEEE(serialized[kindOffset:]))
	return serialized
}

// deserialize parses the first record of data. Trailing bytes are ignored.
func deserialize(data []byte) (*record, error) {
	if len(data) < headerLength {
		return nil, ErrInsufficientData
	}

	checksum := binary.BigEndian.Uint32(data[:checksumSize])
	kind := data[kindOffset]
	keyLength := uint64(binary.BigEndian.Uint32(data[kindOffset+kindSize:]))
	valLength := uint64(binary.BigEndian.Uint32(data[kindOffset+kindSize+keyLenSize:]))

	total := uint64(headerLength) + keyLength + valLength
	if uint64(len(data)) < total {
		return nil, ErrInsufficientData
	}

	if crc32.ChecksumIEEE(data[kindOffset:total]) != checksum {
		return nil, ErrCorruptData
	}
	if kind != kindValue && kind != kindTombstone {
		return nil, ErrUnknownKind
	}

	key := data[headerLength : headerLength+keyLength]
	val := make([]byte, valLength)
	copy(val, data[headerLength+keyLength:total])

	return &record{
		kind:  kind,
		key:   string(key),
		value: val,
	}, nil
}

func (r *record) write(w io.Writer) (int, error) {
	return w.Write(r.serialize())
}
