package note

import (
	"context"
	"testing"

	"github.com/amiabix/zcash-bridge/pkg/zcash"
)

func TestAddCommitmentAssignsSequentialPositions(t *testing.T) {
	ctx := context.Background()
	tree, err := NewCommitmentTree(ctx, NewInMemoryTreeStore())
	if err != nil {
		t.Fatalf("new tree: %v", err)
	}

	pos0, err := tree.AddCommitment(ctx, zcash.Hash32{0x01})
	if err != nil {
		t.Fatalf("add commitment 0: %v", err)
	}
	pos1, err := tree.AddCommitment(ctx, zcash.Hash32{0x02})
	if err != nil {
		t.Fatalf("add commitment 1: %v", err)
	}
	if pos0 != 0 || pos1 != 1 {
		t.Fatalf("expected sequential positions 0, 1, got %d, %d", pos0, pos1)
	}
	if tree.Size() != 2 {
		t.Fatalf("expected size 2, got %d", tree.Size())
	}
}

func TestAddCommitmentChangesRoot(t *testing.T) {
	ctx := context.Background()
	tree, err := NewCommitmentTree(ctx, NewInMemoryTreeStore())
	if err != nil {
		t.Fatalf("new tree: %v", err)
	}
	before := tree.Root()

	if _, err := tree.AddCommitment(ctx, zcash.Hash32{0x01}); err != nil {
		t.Fatalf("add commitment: %v", err)
	}
	if tree.Root() == before {
		t.Fatal("expected root to change after adding a commitment")
	}
}

func TestPathVerifiesAgainstCurrentRoot(t *testing.T) {
	ctx := context.Background()
	tree, err := NewCommitmentTree(ctx, NewInMemoryTreeStore())
	if err != nil {
		t.Fatalf("new tree: %v", err)
	}

	leaf := zcash.Hash32{0x01}
	pos, err := tree.AddCommitment(ctx, leaf)
	if err != nil {
		t.Fatalf("add commitment: %v", err)
	}
	if _, err := tree.AddCommitment(ctx, zcash.Hash32{0x02}); err != nil {
		t.Fatalf("add second commitment: %v", err)
	}

	path, err := tree.Path(ctx, pos)
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if !VerifyPath(leaf, path, tree.Root()) {
		t.Fatal("expected the witness to verify against the current root")
	}
}

func TestVerifyPathRejectsWrongLeaf(t *testing.T) {
	ctx := context.Background()
	tree, err := NewCommitmentTree(ctx, NewInMemoryTreeStore())
	if err != nil {
		t.Fatalf("new tree: %v", err)
	}

	pos, err := tree.AddCommitment(ctx, zcash.Hash32{0x01})
	if err != nil {
		t.Fatalf("add commitment: %v", err)
	}
	path, err := tree.Path(ctx, pos)
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if VerifyPath(zcash.Hash32{0xFF}, path, tree.Root()) {
		t.Fatal("expected verification to fail against a different leaf")
	}
}

func TestPathRejectsOutOfRangePosition(t *testing.T) {
	ctx := context.Background()
	tree, err := NewCommitmentTree(ctx, NewInMemoryTreeStore())
	if err != nil {
		t.Fatalf("new tree: %v", err)
	}
	if _, err := tree.AddCommitment(ctx, zcash.Hash32{0x01}); err != nil {
		t.Fatalf("add commitment: %v", err)
	}

	if _, err := tree.Path(ctx, 5); err != ErrInvalidPosition {
		t.Fatalf("expected ErrInvalidPosition, got %v", err)
	}
}
