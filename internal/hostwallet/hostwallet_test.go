package hostwallet

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

func TestLoadMissingFileYieldsEmptyWallet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	w, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error for a missing file, got %v", err)
	}
	if w.HasHost("anyone") {
		t.Fatal("expected an empty wallet for a missing file")
	}
}

func TestPutThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.json")
	w, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	skHex := "0101010101010101010101010101010101010101010101010101010101010101"
	if err := w.Put("host-1", skHex[:64]); err != nil {
		t.Fatalf("put: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.HasHost("host-1") {
		t.Fatal("expected host-1 to persist across reload")
	}

	sk, err := reloaded.ExportPrivateKey(context.Background(), "host-1")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(sk) != 32 {
		t.Fatalf("expected a 32-byte key, got %d", len(sk))
	}
}

func TestExportPrivateKeyUnknownHostIsDenied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.json")
	w, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := w.ExportPrivateKey(context.Background(), "unknown"); !errors.Is(err, zcash.ErrHostDenied) {
		t.Fatalf("expected ErrHostDenied, got %v", err)
	}
}

func TestPutRejectsNonHexKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet.json")
	w, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := w.Put("host-1", "not-hex"); err == nil {
		t.Fatal("expected an error for a non-hex key")
	}
}
