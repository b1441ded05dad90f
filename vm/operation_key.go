package vm

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// hashSentinel stands in for a natural hash of zero, so a stored zero always
// means "not computed yet".
const hashSentinel uint64 = 0x9e3779b97f4a7c15

const (
	fnvOffset uint64 = 14695981039346656037
	fnvPrime  uint64 = 1099511628211
)

// OperationKey identifies a dispatch target within one method-table
// generation: method name, exact receiver class and exact argument classes.
// Keys are immutable after construction; the hash is memoized on first use.
type OperationKey struct {
	Name     string
	Receiver *Class
	Args     []*Class

	hash atomic.Uint64
}

// NewOperationKey copies args so the key cannot change under its hash.
func NewOperationKey(name string, receiver *Class, args []*Class) *OperationKey {
	return &OperationKey{
		Name:     name,
		Receiver: receiver,
		Args:     append([]*Class(nil), args...),
	}
}

// ArgCount is the number of arguments, excluding the receiver.
func (k *OperationKey) ArgCount() int {
	return len(k.Args)
}

// Hash returns the memoized hash, computing it on first call.
func (k *OperationKey) Hash() uint64 {
	if h := k.hash.Load(); h != 0 {
		return h
	}
	h := hashFinal(hashClasses(hashName(k.Name), k.Receiver, k.Args))
	k.hash.Store(h)
	return h
}

// Equal compares two keys by name and class identity.
func (k *OperationKey) Equal(o *OperationKey) bool {
	if k == o {
		return true
	}
	if k.Name != o.Name || k.Receiver != o.Receiver || len(k.Args) != len(o.Args) {
		return false
	}
	for i := range k.Args {
		if k.Args[i] != o.Args[i] {
			return false
		}
	}
	return true
}

// matches compares the key against a live call without allocating.
func (k *OperationKey) matches(name string, receiver *Class, args []Value) bool {
	if k.Name != name || k.Receiver != receiver || len(k.Args) != len(args) {
		return false
	}
	for i, a := range args {
		if k.Args[i] != ClassOf(a) {
			return false
		}
	}
	return true
}

func (k *OperationKey) String() string {
	var b strings.Builder
	b.WriteString(k.Name)
	b.WriteByte('|')
	b.WriteString(strconv.FormatUint(k.Receiver.id, 10))
	for _, a := range k.Args {
		b.WriteByte(',')
		b.WriteString(strconv.FormatUint(a.id, 10))
	}
	return b.String()
}

// hashCall hashes a live call the same way OperationKey.Hash hashes the key
// built from it.
func hashCall(name string, receiver *Class, args []Value) uint64 {
	h := mixUint64(hashName(name), receiver.id)
	for _, a := range args {
		h = mixUint64(h, ClassOf(a).id)
	}
	return hashFinal(mixUint64(h, uint64(len(args))))
}

func hashName(name string) uint64 {
	h := fnvOffset
	for i := 0; i < len(name); i++ {
		h ^= uint64(name[i])
		h *= fnvPrime
	}
	return h
}

func hashClasses(h uint64, receiver *Class, args []*Class) uint64 {
	h = mixUint64(h, receiver.id)
	for _, a := range args {
		h = mixUint64(h, a.id)
	}
	return mixUint64(h, uint64(len(args)))
}

func mixUint64(h, v uint64) uint64 {
	for i := 0; i < 8; i++ {
		h ^= v & 0xff
		h *= fnvPrime
		v >>= 8
	}
	return h
}

func hashFinal(h uint64) uint64 {
	if h == 0 {
		return hashSentinel
	}
	return h
}
