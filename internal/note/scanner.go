package note

import (
	"context"
	"encoding/binary"
	"math/big"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/amiabix/zcash-bridge/internal/enc"
	"github.com/amiabix/zcash-bridge/internal/jubjub"
	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

// plaintextLen is lead byte ‖ d[11] ‖ v[8] ‖ rseed[32] ‖ memo[512].
const plaintextLen = 1 + 11 + 8 + 32 + 512

// CompactOutput is one shielded output description as it appears on the
// chain, restricted to the fields a scanner needs to trial-decrypt.
type CompactOutput struct {
	Position      uint64
	Cmu           zcash.Hash32
	Epk           [32]byte
	EncCiphertext []byte // 580 bytes
	OutCiphertext []byte // 80 bytes
}

// CompactBlock is the minimal per-block view the scanner consumes.
type CompactBlock struct {
	Height  uint32
	Outputs []CompactOutput
}

// RecoveredOutgoing is a note the scanner recognized via ovk trial-decryption
// of out_ciphertext: one this wallet sent, to a recipient it does not hold
// the incoming viewing key for.
type RecoveredOutgoing struct {
	Position uint64
	Pkd      [32]byte
	Esk      *big.Int
}

// Scanner trial-decrypts compact-block outputs against one account's ivk and
// ovk, recomputes cmu to authenticate candidate notes, and feeds accepted
// notes and witnesses into a Cache and CommitmentTree.
type Scanner struct {
	Address string
	Ivk     *big.Int
	Ovk     [32]byte

	Cache *Cache
	Tree  *CommitmentTree
}

// NewScanner builds a scanner for one viewing key, writing into cache/tree.
func NewScanner(addr string, ivk *big.Int, ovk [32]byte, cache *Cache, tree *CommitmentTree) *Scanner {
	return &Scanner{Address: addr, Ivk: ivk, Ovk: ovk, Cache: cache, Tree: tree}
}

// ScanBlock appends every output's commitment to the tree (so tree state
// stays consistent regardless of ownership) and trial-decrypts each one
// against s.Ivk, returning the number of notes newly accepted into s.Cache.
func (s *Scanner) ScanBlock(ctx context.Context, block *CompactBlock) (int, error) {
	accepted := 0
	for _, out := range block.Outputs {
		position, err := s.Tree.AddCommitment(ctx, out.Cmu)
		if err != nil {
			return accepted, err
		}

		n, ok, err := s.tryDecryptIncoming(out, position)
		if err != nil {
			continue // not ours, or a corrupted entry; either way, skip
		}
		if ok {
			witness, err := s.Tree.Path(ctx, position)
			if err != nil {
				return accepted, err
			}
			n.Witness = witness
			s.Cache.AddNote(s.Address, n)
			accepted++
		}
	}
	s.Cache.SetSyncedHeight(s.Address, block.Height)
	return accepted, nil
}

// tryDecryptIncoming attempts the ivk-side note recovery: derive the
// shared secret from epk and ivk (the same point the sender derives from
// esk and pkd, by Diffie-Hellman symmetry), decrypt enc_ciphertext, and
// accept the note only if the recomputed commitment matches the claimed
// position's cmu.
//
// Key and nonce both derive from values public to the two ends of the
// exchange, the DH shared point and epk. Deriving the nonce from rseed
// would be circular here: rseed is itself part of the encrypted plaintext,
// so a recipient could not form its own decryption nonce without already
// having decrypted. See DESIGN.md.
func (s *Scanner) tryDecryptIncoming(out CompactOutput, position uint64) (*SaplingNote, bool, error) {
	epkPoint, err := jubjub.Decompress(out.Epk)
	if err != nil {
		return nil, false, err
	}
	shared := jubjub.ScalarMult(epkPoint, s.Ivk)
	sharedBytes := jubjub.Compress(shared)

	key := enc.Blake2sPersonalized("Zcash_enc_key", 32, sharedBytes[:])
	nonce := enc.Blake2sPersonalized("Zcash_enc_nonce", chacha20poly1305.NonceSize, []byte{0x00}, out.Epk[:])

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, false, err
	}
	plaintext, err := aead.Open(nil, nonce, out.EncCiphertext, nil)
	if err != nil {
		return nil, false, nil // not addressed to this ivk
	}
	if len(plaintext) != plaintextLen {
		return nil, false, zcash.ErrDecryptionFailure
	}

	var d [11]byte
	copy(d[:], plaintext[1:12])
	value := binary.LittleEndian.Uint64(plaintext[12:20])
	var rseed [32]byte
	copy(rseed[:], plaintext[20:52])
	memo := append([]byte(nil), plaintext[52:564]...)

	dPoint, err := jubjub.DiversifyHash(d[:])
	if err != nil {
		return nil, false, err
	}
	pkdPoint := jubjub.ScalarMult(dPoint, s.Ivk)
	pkd := jubjub.Compress(pkdPoint)

	rcm := jubjub.DeriveRcm(rseed)
	cmu := jubjub.NoteCommit(d[:], pkd, value, rcm)
	if cmu != out.Cmu {
		return nil, false, zcash.ErrDecryptionFailure
	}

	var rcmBytes [32]byte
	copyScalarInto(rcmBytes[:], rcm)

	n := &SaplingNote{
		Value:       zcash.Zatoshi(value),
		Diversifier: d,
		Pkd:         pkd,
		Rcm:         rcmBytes,
		Rseed:       rseed,
		Cmu:         out.Cmu,
		Address:     s.Address,
		Memo:        memo,
	}
	return n, true, nil
}

// ScanOutgoing recovers {pkd, esk} for outputs this account sent using ovk,
// for self-auditing outputs addressed to a recipient this wallet has no
// incoming viewing key for. The recovery blob is {pkd[32], esk[32]},
// encrypted with key=BLAKE2s(ovk‖epk) and nonce=BLAKE2s(0x01‖epk). The key
// derives from ovk and the public epk, never from esk: esk is the secret
// being recovered, so it cannot be its own key input.
func (s *Scanner) ScanOutgoing(block *CompactBlock) []RecoveredOutgoing {
	var out []RecoveredOutgoing
	for _, o := range block.Outputs {
		if len(o.OutCiphertext) == 0 {
			continue
		}
		key := enc.Blake2sPersonalized("Zcash_out_key", 32, s.Ovk[:], o.Epk[:])
		nonce := enc.Blake2sPersonalized("Zcash_out_nonce", chacha20poly1305.NonceSize, []byte{0x01}, o.Epk[:])

		aead, err := chacha20poly1305.New(key)
		if err != nil {
			continue
		}
		plaintext, err := aead.Open(nil, nonce, o.OutCiphertext, nil)
		if err != nil || len(plaintext) != 64 {
			continue
		}
		var pkd [32]byte
		copy(pkd[:], plaintext[:32])
		esk := new(big.Int).SetBytes(plaintext[32:64])
		out = append(out, RecoveredOutgoing{Position: o.Position, Pkd: pkd, Esk: esk})
	}
	return out
}

func copyScalarInto(dst []byte, s *big.Int) {
	b := s.Bytes()
	if len(b) > len(dst) {
		b = b[len(b)-len(dst):]
	}
	copy(dst[len(dst)-len(b):], b)
}
