package scann

import (
	"slices"
	"testing"
)

// TestKeys tests the key naming convention
func TestKeys(t *testing.T) {
	if got := PartitionKey(0); got != "E_0" {
		t.Errorf("PartitionKey(0) = %q", got)
	}
	if got := PartitionKey(4294967295); got != "E_4294967295" {
		t.Errorf("PartitionKey(max) = %q", got)
	}
	if got := MetadataKey(12); got != "M_12" {
		t.Errorf("MetadataKey(12) = %q", got)
	}
}

// TestSortKeysLexically tests byte-order sorting across the 1/2/10/11 boundary
func TestSortKeysLexically(t *testing.T) {
	keys := []string{"E_2", "E_11", "E_0", "E_10", "E_1", "E_20", "E_3"}
	SortKeysLexically(keys)

	want := []string{"E_0", "E_1", "E_10", "E_11", "E_2", "E_20", "E_3"}
	if !slices.Equal(keys, want) {
		t.Errorf("SortKeysLexically = %v, want %v", keys, want)
	}
}

// TestLexicalSlots tests that slots keep their numeric index after sorting
func TestLexicalSlots(t *testing.T) {
	slots := lexicalSlots(12, MetadataKey)
	if len(slots) != 12 {
		t.Fatalf("len = %d, want 12", len(slots))
	}

	wantOrder := []uint32{0, 1, 10, 11, 2, 3, 4, 5, 6, 7, 8, 9}
	for i, s := range slots {
		if s.slot != wantOrder[i] {
			t.Errorf("slots[%d].slot = %d, want %d", i, s.slot, wantOrder[i])
		}
		if s.key != MetadataKey(s.slot) {
			t.Errorf("slots[%d].key = %q, want %q", i, s.key, MetadataKey(s.slot))
		}
		if i > 0 && slots[i-1].key >= s.key {
			t.Errorf("keys not strictly ascending at %d: %q >= %q", i, slots[i-1].key, s.key)
		}
	}

	if len(lexicalSlots(0, PartitionKey)) != 0 {
		t.Error("lexicalSlots(0) should be empty")
	}
}
