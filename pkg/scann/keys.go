package scann

import (
	"slices"
	"strconv"
	"strings"
)

// Reserved table keys
const (
	IndexConfigKey = "INDEX_CONFIG"
	UserInfoKey    = "USER_INFO"

	partitionKeyPrefix = "E_"
	metadataKeyPrefix  = "M_"
)

// PartitionKey returns the table key of partition i
func PartitionKey(i uint32) string {
	return partitionKeyPrefix + strconv.FormatUint(uint64(i), 10)
}

// MetadataKey returns the table key of global metadata slot i
func MetadataKey(i uint32) string {
	return metadataKeyPrefix + strconv.FormatUint(uint64(i), 10)
}

// SortKeysLexically sorts keys in place by raw byte order, the order the table
// codec requires on insertion. Numeric suffixes therefore sort as
// E_1, E_10, E_11, E_2.
func SortKeysLexically(keys []string) {
	slices.SortFunc(keys, strings.Compare)
}

// keyedSlot pairs a table key with the numeric slot it names
type keyedSlot struct {
	key  string
	slot uint32
}

// lexicalSlots returns the keys for slots [0, n) in table insertion order
func lexicalSlots(n int, keyFn func(uint32) string) []keyedSlot {
	slots := make([]keyedSlot, n)
	for i := range slots {
		slots[i] = keyedSlot{key: keyFn(uint32(i)), slot: uint32(i)}
	}
	slices.SortFunc(slots, func(a, b keyedSlot) int {
		return strings.Compare(a.key, b.key)
	})
	return slots
}
