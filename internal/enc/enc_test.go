package enc

import (
	"bytes"
	"testing"
)

func TestBase58CheckRoundTrip(t *testing.T) {
	version := [2]byte{0x1c, 0xb8}
	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = byte(i)
	}

	encoded := Base58CheckEncode(version, payload)
	gotVersion, gotPayload, err := Base58CheckDecode(encoded)
	if err != nil {
		t.Fatalf("Base58CheckDecode: %v", err)
	}
	if gotVersion != version {
		t.Errorf("version mismatch: got %v want %v", gotVersion, version)
	}
	if string(gotPayload) != string(payload) {
		t.Errorf("payload mismatch after round trip")
	}
}

func TestBase58CheckChecksumMismatch(t *testing.T) {
	version := [2]byte{0x1c, 0xb8}
	payload := make([]byte, 20)
	encoded := Base58CheckEncode(version, payload)

	mutated := []byte(encoded)
	last := mutated[len(mutated)-1]
	if last == 'A' {
		last = 'B'
	} else {
		last = 'A'
	}
	mutated[len(mutated)-1] = last

	if _, _, err := Base58CheckDecode(string(mutated)); err == nil {
		t.Error("mutated checksum should fail to decode")
	}
}

func TestBech32RoundTrip(t *testing.T) {
	payload := make([]byte, 43)
	for i := range payload {
		payload[i] = byte(i * 3)
	}

	encoded, err := Bech32Encode("zs", payload)
	if err != nil {
		t.Fatalf("Bech32Encode: %v", err)
	}
	hrp, decoded, err := Bech32Decode(encoded)
	if err != nil {
		t.Fatalf("Bech32Decode: %v", err)
	}
	if hrp != "zs" {
		t.Errorf("hrp mismatch: got %q", hrp)
	}
	if len(decoded) != len(payload) {
		t.Fatalf("payload length mismatch: got %d want %d", len(decoded), len(payload))
	}
	for i := range payload {
		if decoded[i] != payload[i] {
			t.Fatalf("payload mismatch at byte %d", i)
		}
	}
}

func TestHkdfSha512Deterministic(t *testing.T) {
	ikm := []byte("host-private-key-material-000000")
	salt := []byte("zcash-miden-mainnet-host1")
	info := []byte("zcash-master-seed-v1")

	a, err := HkdfSha512(ikm, salt, info, 64)
	if err != nil {
		t.Fatalf("HkdfSha512: %v", err)
	}
	b, err := HkdfSha512(ikm, salt, info, 64)
	if err != nil {
		t.Fatalf("HkdfSha512: %v", err)
	}
	if string(a) != string(b) {
		t.Error("HKDF output should be deterministic for identical inputs")
	}

	c, _ := HkdfSha512(ikm, []byte("different-salt"), info, 64)
	if string(a) == string(c) {
		t.Error("different salt should change HKDF output")
	}
}

func TestCompactSizeRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 252, 253, 0xffff, 0x10000, 0xffffffff, 0x100000000}
	for _, n := range cases {
		var buf bytes.Buffer
		CompactSizeWrite(&buf, n)
		got, err := CompactSizeRead(&buf)
		if err != nil {
			t.Fatalf("CompactSizeRead(%d): %v", n, err)
		}
		if got != n {
			t.Errorf("round trip mismatch: got %d want %d", got, n)
		}
	}
}

func TestHash160Length(t *testing.T) {
	h := Hash160([]byte("a compressed pubkey placeholder"))
	if len(h) != 20 {
		t.Errorf("hash160 should be 20 bytes, got %d", len(h))
	}
}
