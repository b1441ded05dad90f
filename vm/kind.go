package vm

import (
	"math/big"

	"github.com/cockroachdb/apd/v3"
)

// Value is any receiver or argument seen by the dispatcher.
//
// Numeric values are carried as exact Go types, one per numeric kind:
//
//	int32         Integer
//	int64         Long
//	*big.Int      BigInteger
//	float32       Float
//	float64       Double
//	*apd.Decimal  BigDecimal
//
// nil is the null sentinel. *Object carries its own class. Host strings and
// bools classify as instances of String and Boolean; any other host value is
// a plain Object.
type Value = any

// Kind is the shape category of a runtime value.
type Kind uint8

// The numeric kinds are declared in promotion-lattice order and index the
// coercion tables directly.
const (
	KindInt        Kind = iota // small-integer (int32)
	KindLong                   // wide-integer (int64)
	KindBigInt                 // arbitrary-precision integer
	KindFloat                  // single-float
	KindDouble                 // double-float
	KindBigDecimal             // arbitrary-precision decimal
	KindObject                 // generic object, identified by its exact class
	KindNull                   // the null sentinel
)

const numKinds = int(KindBigDecimal) + 1

var kindNames = [...]string{
	KindInt:        "Integer",
	KindLong:       "Long",
	KindBigInt:     "BigInteger",
	KindFloat:      "Float",
	KindDouble:     "Double",
	KindBigDecimal: "BigDecimal",
	KindObject:     "Object",
	KindNull:       "null",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(?)"
}

// IsNumeric reports whether k is one of the six numeric kinds.
func (k Kind) IsNumeric() bool {
	return k <= KindBigDecimal
}

// IsFloating reports whether k follows IEEE 754 semantics.
func (k Kind) IsFloating() bool {
	return k == KindFloat || k == KindDouble
}

// IsIntegral reports whether k is a fixed-width or arbitrary-precision integer.
func (k Kind) IsIntegral() bool {
	return k <= KindBigInt
}

// Classify maps a value to its kind. Numeric kinds are chosen by the exact
// Go type, never by the magnitude of the value.
func Classify(v Value) Kind {
	switch x := v.(type) {
	case nil:
		return KindNull
	case int32:
		return KindInt
	case int64:
		return KindLong
	case float32:
		return KindFloat
	case float64:
		return KindDouble
	case *big.Int:
		if x == nil {
			return KindNull
		}
		return KindBigInt
	case *apd.Decimal:
		if x == nil {
			return KindNull
		}
		return KindBigDecimal
	case *Object:
		if x == nil {
			return KindNull
		}
		return KindObject
	default:
		return KindObject
	}
}

// ClassifyPair classifies a receiver and its single argument.
func ClassifyPair(receiver, arg Value) (Kind, Kind) {
	return Classify(receiver), Classify(arg)
}

// ClassOf returns the exact runtime class of v. Guards compare the result by
// identity.
func ClassOf(v Value) *Class {
	switch x := v.(type) {
	case nil:
		return NullObjectClass
	case int32:
		return IntegerClass
	case int64:
		return LongClass
	case float32:
		return FloatClass
	case float64:
		return DoubleClass
	case *big.Int:
		if x == nil {
			return NullObjectClass
		}
		return BigIntegerClass
	case *apd.Decimal:
		if x == nil {
			return NullObjectClass
		}
		return BigDecimalClass
	case *Object:
		if x == nil {
			return NullObjectClass
		}
		return x.class
	case string:
		return StringClass
	case bool:
		return BooleanClass
	default:
		return ObjectClass
	}
}

// classForKind returns the builtin class of a numeric kind.
func classForKind(k Kind) *Class {
	switch k {
	case KindInt:
		return IntegerClass
	case KindLong:
		return LongClass
	case KindBigInt:
		return BigIntegerClass
	case KindFloat:
		return FloatClass
	case KindDouble:
		return DoubleClass
	case KindBigDecimal:
		return BigDecimalClass
	case KindNull:
		return NullObjectClass
	}
	return ObjectClass
}

func classesOf(args []Value) []*Class {
	if len(args) == 0 {
		return nil
	}
	out := make([]*Class, len(args))
	for i, a := range args {
		out[i] = ClassOf(a)
	}
	return out
}
