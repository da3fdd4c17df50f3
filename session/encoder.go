package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const sessionFormatVersion = 1

// fixedTailSize is the byte count of the fields at the end of every blob:
// refresh hash (32) + created (8) + last activity (8) + expires (8).
// The rotation script addresses these fields relative to the blob end, so
// any new variable-length field must be added BEFORE the tail.
const fixedTailSize = 56

var errCorruptBlob = errors.New("invalid session encoding")

// Encode renders a Session into the compact binary blob stored in Redis.
func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersion)

	if len(s.PrincipalID) == 0 || len(s.PrincipalID) > 255 {
		return nil, errors.New("invalid principalID length")
	}
	buf.WriteByte(byte(len(s.PrincipalID)))
	buf.WriteString(s.PrincipalID)

	if len(s.Fingerprint) > 255 {
		return nil, errors.New("fingerprint too long")
	}
	buf.WriteByte(byte(len(s.Fingerprint)))
	buf.WriteString(s.Fingerprint)

	buf.Write(s.RefreshHash[:])

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.LastActivity); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a blob produced by Encode. SessionID is not part of the
// blob; callers set it from the Redis key they fetched.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil || version != sessionFormatVersion {
		return nil, errCorruptBlob
	}

	s := &Session{}

	idLen, err := reader.ReadByte()
	if err != nil || idLen == 0 {
		return nil, errCorruptBlob
	}
	principalID := make([]byte, idLen)
	if _, err := io.ReadFull(reader, principalID); err != nil {
		return nil, errCorruptBlob
	}
	s.PrincipalID = string(principalID)

	fpLen, err := reader.ReadByte()
	if err != nil {
		return nil, errCorruptBlob
	}
	fingerprint := make([]byte, fpLen)
	if _, err := io.ReadFull(reader, fingerprint); err != nil {
		return nil, errCorruptBlob
	}
	s.Fingerprint = string(fingerprint)

	if _, err := io.ReadFull(reader, s.RefreshHash[:]); err != nil {
		return nil, errCorruptBlob
	}

	var tail [24]byte
	if _, err := io.ReadFull(reader, tail[:]); err != nil {
		return nil, errCorruptBlob
	}
	s.CreatedAt = int64(binary.BigEndian.Uint64(tail[0:8]))
	s.LastActivity = int64(binary.BigEndian.Uint64(tail[8:16]))
	s.ExpiresAt = int64(binary.BigEndian.Uint64(tail[16:24]))

	if reader.Len() != 0 {
		return nil, errCorruptBlob
	}

	return s, nil
}
