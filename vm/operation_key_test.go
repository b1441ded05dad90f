package vm

import "testing"

func TestOperationKeyHash(t *testing.T) {
	a := NewOperationKey("plus", IntegerClass, []*Class{LongClass})
	b := NewOperationKey("plus", IntegerClass, []*Class{LongClass})
	c := NewOperationKey("plus", IntegerClass, []*Class{DoubleClass})

	if a.Hash() == 0 {
		t.Error("Expected non-zero hash")
	}
	if a.Hash() != a.Hash() {
		t.Error("Expected stable hash")
	}
	if a.Hash() != b.Hash() || !a.Equal(b) {
		t.Error("Expected equal keys to hash equally")
	}
	if a.Equal(c) {
		t.Error("Expected keys with different argument classes to differ")
	}
}

func TestOperationKeyHashMatchesLiveCall(t *testing.T) {
	key := NewOperationKey("minus", LongClass, []*Class{IntegerClass, NullObjectClass})
	if h := hashCall("minus", LongClass, []Value{int32(1), nil}); h != key.Hash() {
		t.Errorf("hashCall = %x, key hash = %x", h, key.Hash())
	}
	if !key.matches("minus", LongClass, []Value{int32(1), nil}) {
		t.Error("Expected key to match the live call")
	}
	if key.matches("minus", LongClass, []Value{int32(1)}) {
		t.Error("Expected arity mismatch")
	}
}

func TestOperationKeyZeroHashSentinel(t *testing.T) {
	if got := hashFinal(0); got != hashSentinel {
		t.Errorf("Expected sentinel, got %x", got)
	}
	if got := hashFinal(42); got != 42 {
		t.Errorf("Expected 42, got %d", got)
	}
}

func TestOperationKeyCopiesArgs(t *testing.T) {
	args := []*Class{IntegerClass}
	key := NewOperationKey("plus", IntegerClass, args)
	h := key.Hash()
	args[0] = DoubleClass
	if key.Args[0] != IntegerClass || key.Hash() != h {
		t.Error("Expected key to be unaffected by caller mutation")
	}
}
