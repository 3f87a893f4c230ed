package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	version    byte = 1
	kindEntry  byte = 1
	kindIndex  byte = 2
	maxKeySize      = 0xFFFF
)

var (
	ErrCorrupt = errors.New("tagcache: corrupt entry")
	magic4     = [...]byte{'T', 'A', 'G', 'C'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Entry is one stored value together with its storage key and absolute
// expiry (unix nanoseconds).
type Entry struct {
	Key       string
	ExpiresAt int64
	Payload   []byte
}

// Entry: magic(4) | ver(1) | kind(1=entry) | exp(i64 be) | keyLen(u16 be) | key | vlen(u32 be) | payload(vlen)
func EncodeEntry(e Entry) ([]byte, error) {
	if l := len(e.Key); l == 0 || l > maxKeySize {
		return nil, fmt.Errorf("tagcache: invalid key length %d", l)
	}

	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 8 + 2 + len(e.Key) + 4 + len(e.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], uint64(e.ExpiresAt))
	buf.Write(u8[:])

	binary.BigEndian.PutUint16(u2[:], uint16(len(e.Key)))
	buf.Write(u2[:])
	buf.WriteString(e.Key)

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])
	buf.Write(e.Payload)

	return buf.Bytes(), nil
}

// DecodeEntry parses a full entry frame. Trailing bytes are rejected.
func DecodeEntry(b []byte) (Entry, error) {
	e, off, err := decodeEntryHeader(b)
	if err != nil {
		return Entry{}, err
	}
	if off+4 > len(b) {
		return Entry{}, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off {
		return Entry{}, ErrCorrupt
	}
	e.Payload = b[off : off+vlen]
	return e, nil
}

// DecodeEntryHeader parses only the key and expiry, leaving Payload nil.
// b may be a prefix of the frame.
func DecodeEntryHeader(b []byte) (Entry, error) {
	e, _, err := decodeEntryHeader(b)
	return e, err
}

// HeaderSize returns how many leading bytes DecodeEntryHeader needs for a key
// of keyLen bytes.
func HeaderSize(keyLen int) int { return 4 + 1 + 1 + 8 + 2 + keyLen }

func decodeEntryHeader(b []byte) (Entry, int, error) {
	const hdr = 4 + 1 + 1 + 8 + 2
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindEntry {
		return Entry{}, 0, ErrCorrupt
	}

	off := 6
	exp := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	klen := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if klen <= 0 || klen > len(b)-off {
		return Entry{}, 0, ErrCorrupt
	}
	key := string(b[off : off+klen])
	off += klen

	return Entry{Key: key, ExpiresAt: exp}, off, nil
}

// Index:
//
//	magic(4) | ver(1) | kind(2=index) | exp(i64 be) | n(u32 be)
//	keyLen(u16 be) | key(keyLen) * n
type Index struct {
	ExpiresAt int64
	Members   []string
}

func EncodeIndex(ix Index) ([]byte, error) {
	total := 4 + 1 + 1 + 8 + 4
	for _, m := range ix.Members {
		total += 2 + len(m)
	}

	var buf bytes.Buffer
	buf.Grow(total)

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindIndex)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint64(u8[:], uint64(ix.ExpiresAt))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(ix.Members)))
	buf.Write(u4[:])

	for _, m := range ix.Members {
		if l := len(m); l == 0 || l > maxKeySize {
			return nil, fmt.Errorf("tagcache: invalid index member length %d", l)
		}
		binary.BigEndian.PutUint16(u2[:], uint16(len(m)))
		buf.Write(u2[:])
		buf.WriteString(m)
	}
	return buf.Bytes(), nil
}

func DecodeIndex(b []byte) (Index, error) {
	const hdr = 4 + 1 + 1 + 8 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindIndex {
		return Index{}, ErrCorrupt
	}

	off := 6
	exp := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	n := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	// each member needs at least 3 bytes; don't trust n for preallocation
	if n < 0 || n > (len(b)-off)/3 {
		return Index{}, ErrCorrupt
	}

	members := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if off+2 > len(b) {
			return Index{}, ErrCorrupt
		}
		klen := int(binary.BigEndian.Uint16(b[off : off+2]))
		off += 2
		if klen <= 0 || klen > len(b)-off {
			return Index{}, ErrCorrupt
		}
		members = append(members, string(b[off:off+klen]))
		off += klen
	}
	if off != len(b) {
		return Index{}, ErrCorrupt
	}
	return Index{ExpiresAt: exp, Members: members}, nil
}
