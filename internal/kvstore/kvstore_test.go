package kvstore

import (
	"bytes"
	"context"
	"testing"
)

func TestEncryptDecryptSecretRoundTrip(t *testing.T) {
	password := []byte("correct horse battery staple")
	plaintext := []byte("a 32-byte sapling spending key!")

	enc, err := EncryptSecret(password, plaintext)
	if err != nil {
		t.Fatalf("EncryptSecret: %v", err)
	}
	if enc.IVBase64() == "" || enc.SaltBase64() == "" {
		t.Fatal("expected non-empty iv/salt")
	}

	got, err := DecryptSecret(password, enc)
	if err != nil {
		t.Fatalf("DecryptSecret: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %x want %x", got, plaintext)
	}
}

func TestDecryptSecretWrongPasswordFails(t *testing.T) {
	enc, err := EncryptSecret([]byte("right"), []byte("secret material"))
	if err != nil {
		t.Fatalf("EncryptSecret: %v", err)
	}
	if _, err := DecryptSecret([]byte("wrong"), enc); err != ErrDecryptFailed {
		t.Fatalf("expected ErrDecryptFailed, got %v", err)
	}
}

func TestMemoryStorePutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	bundle := &KeyBundle{
		AccountID: "acct-1",
		TAddr:     "t1exampleaddress",
		ZAddr:     "zsexampleaddress",
	}
	if err := s.Put(ctx, bundle); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, "acct-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TAddr != bundle.TAddr || got.ZAddr != bundle.ZAddr {
		t.Fatalf("Get returned mismatched bundle: %+v", got)
	}

	if err := s.Delete(ctx, "acct-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "acct-1"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStoreGetMissingReturnsErrNotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get(context.Background(), "nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
