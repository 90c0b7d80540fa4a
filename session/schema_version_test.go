package session

import (
	"bytes"
	"context"
	"encoding/binary"
	"strings"
	"testing"
	"time"
)

func TestDecodeRejectsUnsupportedSchemaVersion(t *testing.T) {
	_, err := Decode([]byte{99})
	if err == nil || !strings.Contains(err.Error(), "unsupported session schema version") {
		t.Fatalf("expected unsupported schema version error, got %v", err)
	}
}

func TestEncodeDecodeCurrent(t *testing.T) {
	sess := testSession()
	data, err := Encode(sess)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if data[0] != CurrentSchemaVersion {
		t.Fatalf("expected schema byte %d, got %d", CurrentSchemaVersion, data[0])
	}

	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Identity != sess.Identity || got.AccessToken != sess.AccessToken ||
		got.RefreshToken != sess.RefreshToken || got.ExpiresAt != sess.ExpiresAt {
		t.Fatalf("round trip mismatch: %+v vs %+v", sess, got)
	}
	if got.SchemaVersion != CurrentSchemaVersion {
		t.Fatalf("expected schema version recorded, got %d", got.SchemaVersion)
	}
}

func TestEncodeRejectsOversizedFields(t *testing.T) {
	sess := testSession()
	sess.Identity.Email = strings.Repeat("a", 256)
	if _, err := Encode(sess); err == nil {
		t.Fatal("expected oversized email to be rejected")
	}

	sess = testSession()
	sess.AccessToken = strings.Repeat("t", 1<<16)
	if _, err := Encode(sess); err == nil {
		t.Fatal("expected oversized token to be rejected")
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	data, _ := Encode(testSession())
	if _, err := Decode(append(data, 0)); err == nil {
		t.Fatal("expected trailing bytes to be rejected")
	}
}

func TestLoadMigratesLegacySchemaToCurrent(t *testing.T) {
	store, rdb, done := newSessionStoreTest(t)
	defer done()

	legacy := testSession()
	key := store.key("client-legacy")
	if err := rdb.Set(context.Background(), key, encodeLegacyV1Session(t, legacy), time.Hour).Err(); err != nil {
		t.Fatalf("seed legacy session failed: %v", err)
	}

	sess, err := store.Load(context.Background(), "client-legacy")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if sess.SchemaVersion != CurrentSchemaVersion {
		t.Fatalf("expected migrated schema version %d, got %d", CurrentSchemaVersion, sess.SchemaVersion)
	}
	if sess.Identity.Metadata.FirstName != "" || sess.Role() != RoleProvider {
		t.Fatalf("unexpected migrated identity: %+v", sess.Identity)
	}

	raw, err := rdb.Get(context.Background(), key).Bytes()
	if err != nil {
		t.Fatalf("read migrated blob failed: %v", err)
	}
	if len(raw) == 0 || raw[0] != CurrentSchemaVersion {
		t.Fatalf("expected stored schema byte %d, got %v", CurrentSchemaVersion, raw)
	}
	if ttl := rdb.TTL(context.Background(), key).Val(); ttl <= 0 {
		t.Fatalf("expected TTL kept after migration, got %v", ttl)
	}
}

func encodeLegacyV1Session(tb testing.TB, sess *Session) []byte {
	tb.Helper()

	var buf bytes.Buffer
	buf.WriteByte(1)

	buf.WriteByte(byte(len(sess.Identity.ID)))
	buf.WriteString(sess.Identity.ID)
	buf.WriteByte(byte(len(sess.Identity.Email)))
	buf.WriteString(sess.Identity.Email)
	buf.WriteByte(1)
	buf.WriteByte(byte(len(sess.Identity.Metadata.Role)))
	buf.WriteString(string(sess.Identity.Metadata.Role))

	for _, tok := range []string{sess.AccessToken, sess.RefreshToken} {
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(tok))); err != nil {
			tb.Fatalf("write token length failed: %v", err)
		}
		buf.WriteString(tok)
	}

	if err := binary.Write(&buf, binary.BigEndian, sess.ExpiresAt); err != nil {
		tb.Fatalf("write expiresAt failed: %v", err)
	}
	return buf.Bytes()
}
