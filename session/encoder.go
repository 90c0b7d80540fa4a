package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// CurrentSchemaVersion is written by [Encode].
	CurrentSchemaVersion uint8 = 2

	// v1 predates name metadata on the identity.
	sessionFormatVersionV1 uint8 = 1

	maxShortField = 255
	maxTokenField = 1<<16 - 1
)

var (
	errFieldTooLong = errors.New("session field too long")
	errTokenTooLong = errors.New("session token too long")
)

// Encode serializes s in the current schema version.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}

	var buf bytes.Buffer
	buf.WriteByte(CurrentSchemaVersion)

	for _, v := range []string{s.Identity.ID, s.Identity.Email} {
		if err := writeShort(&buf, v); err != nil {
			return nil, err
		}
	}
	if s.Identity.Verified {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	md := s.Identity.Metadata
	for _, v := range []string{string(md.Role), md.FirstName, md.LastName, md.Country} {
		if err := writeShort(&buf, v); err != nil {
			return nil, err
		}
	}

	for _, v := range []string{s.AccessToken, s.RefreshToken} {
		if err := writeToken(&buf, v); err != nil {
			return nil, err
		}
	}

	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses any supported schema version. The returned session records the version
// it was read from in SchemaVersion.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != CurrentSchemaVersion && version != sessionFormatVersionV1 {
		return nil, fmt.Errorf("unsupported session schema version %d", version)
	}

	s := &Session{SchemaVersion: version}

	if s.Identity.ID, err = readShort(reader); err != nil {
		return nil, err
	}
	if s.Identity.Email, err = readShort(reader); err != nil {
		return nil, err
	}
	verified, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	s.Identity.Verified = verified == 1

	role, err := readShort(reader)
	if err != nil {
		return nil, err
	}
	s.Identity.Metadata.Role = Role(role)

	if version >= CurrentSchemaVersion {
		md := &s.Identity.Metadata
		for _, dst := range []*string{&md.FirstName, &md.LastName, &md.Country} {
			if *dst, err = readShort(reader); err != nil {
				return nil, err
			}
		}
	}

	if s.AccessToken, err = readToken(reader); err != nil {
		return nil, err
	}
	if s.RefreshToken, err = readToken(reader); err != nil {
		return nil, err
	}

	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes after session")
	}

	return s, nil
}

func writeShort(buf *bytes.Buffer, v string) error {
	if len(v) > maxShortField {
		return errFieldTooLong
	}
	buf.WriteByte(byte(len(v)))
	buf.WriteString(v)
	return nil
}

func writeToken(buf *bytes.Buffer, v string) error {
	if len(v) > maxTokenField {
		return errTokenTooLong
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(v))); err != nil {
		return err
	}
	buf.WriteString(v)
	return nil
}

func readShort(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	return readN(r, int(n))
}

func readToken(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	return readN(r, int(n))
}

func readN(r *bytes.Reader, n int) (string, error) {
	if n > r.Len() {
		return "", io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
