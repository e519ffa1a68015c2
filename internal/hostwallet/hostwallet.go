// Package hostwallet provides a minimal, file-backed implementation of
// internal/keybridge.HostWallet for the cmd/zbridge-cli and
// cmd/zbridge-syncd binaries. The real host wallet this core embeds into
// lives in another process and is reached only through that interface;
// this type exists so the two binaries have something concrete to derive
// against without a foreign wallet process to talk to.
package hostwallet

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

// FileWallet implements internal/keybridge.HostWallet by looking up a
// hex-encoded private key from a small on-disk JSON map of
// host_id -> hex(private_key). It is the CLI/daemon's stand-in for a real
// foreign wallet.
type FileWallet struct {
	path string
	keys map[string]string
}

// Load reads path (host_id -> hex privkey JSON object). A missing file
// yields an empty wallet rather than an error, so `zbridge-cli derive` can
// be pointed at a not-yet-created file and fail informatively per host id
// instead of at startup.
func Load(path string) (*FileWallet, error) {
	w := &FileWallet{path: path, keys: map[string]string{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return w, nil
		}
		return nil, fmt.Errorf("reading host wallet file: %w", err)
	}
	if err := json.Unmarshal(data, &w.keys); err != nil {
		return nil, fmt.Errorf("parsing host wallet file %s: %w", path, err)
	}
	return w, nil
}

// ExportPrivateKey implements internal/keybridge.HostWallet.
func (w *FileWallet) ExportPrivateKey(ctx context.Context, hostID string) ([]byte, error) {
	hexKey, ok := w.keys[hostID]
	if !ok {
		return nil, fmt.Errorf("%w: host id %q not present in %s", zcash.ErrHostDenied, hostID, w.path)
	}
	sk, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed hex key for host id %q", zcash.ErrHostDenied, hostID)
	}
	return sk, nil
}

// Put writes (or overwrites) hostID's key and persists the file, used by
// `zbridge-cli wallet import`.
func (w *FileWallet) Put(hostID string, skHex string) error {
	if _, err := hex.DecodeString(skHex); err != nil {
		return fmt.Errorf("key for %q is not valid hex: %w", hostID, err)
	}
	w.keys[hostID] = skHex
	data, err := json.MarshalIndent(w.keys, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(w.path, data, 0600)
}

// HasHost reports whether hostID has a key on file.
func (w *FileWallet) HasHost(hostID string) bool {
	_, ok := w.keys[hostID]
	return ok
}
