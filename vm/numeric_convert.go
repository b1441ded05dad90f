package vm

import (
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/cockroachdb/apd/v3"
)

// Widening conversions. The promotion table only ever asks for a kind at or
// above the operand's kind, so the narrowing cases are unreachable.

func toInt64(v Value) int64 {
	switch x := v.(type) {
	case int32:
		return int64(x)
	case int64:
		return x
	}
	panic(fmt.Sprintf("vm: cannot widen %T to Long", v))
}

func toBigInt(v Value) *big.Int {
	switch x := v.(type) {
	case int32:
		return big.NewInt(int64(x))
	case int64:
		return big.NewInt(x)
	case *big.Int:
		return x
	}
	panic(fmt.Sprintf("vm: cannot widen %T to BigInteger", v))
}

func toFloat32(v Value) float32 {
	switch x := v.(type) {
	case int32:
		return float32(x)
	case float32:
		return x
	}
	panic(fmt.Sprintf("vm: cannot widen %T to Float", v))
}

func toFloat64(v Value) float64 {
	switch x := v.(type) {
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case *big.Int:
		f, _ := new(big.Float).SetInt(x).Float64()
		return f
	case float32:
		return float64(x)
	case float64:
		return x
	}
	panic(fmt.Sprintf("vm: cannot widen %T to Double", v))
}

// toDecimal converts any numeric value to a BigDecimal. Floats go through
// their shortest decimal representation, so 0.1f becomes 0.1 rather than the
// exact binary expansion.
func toDecimal(op Op, v Value) (*apd.Decimal, error) {
	switch x := v.(type) {
	case int32:
		return apd.New(int64(x), 0), nil
	case int64:
		return apd.New(x, 0), nil
	case *big.Int:
		return bigIntToDecimal(x)
	case float32:
		return floatToDecimal(op, float64(x), 32)
	case float64:
		return floatToDecimal(op, x, 64)
	case *apd.Decimal:
		return x, nil
	}
	panic(fmt.Sprintf("vm: cannot widen %T to BigDecimal", v))
}

func bigIntToDecimal(b *big.Int) (*apd.Decimal, error) {
	d, _, err := apd.NewFromString(b.String())
	if err != nil {
		return nil, &ArithmeticError{Op: OpDiv, Msg: err.Error()}
	}
	return d, nil
}

func floatToDecimal(op Op, f float64, bits int) (*apd.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, &ArithmeticError{Op: op, Msg: "non-finite value has no BigDecimal form"}
	}
	d, _, err := apd.NewFromString(strconv.FormatFloat(f, 'g', -1, bits))
	if err != nil {
		return nil, &ArithmeticError{Op: op, Msg: err.Error()}
	}
	return d, nil
}

// NewBigInteger is a convenience constructor for BigInteger values.
func NewBigInteger(v int64) *big.Int {
	return big.NewInt(v)
}

// ParseBigDecimal parses a decimal string such as "1.25" or "3E-2".
func ParseBigDecimal(s string) (*apd.Decimal, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid BigDecimal %q: %w", s, err)
	}
	return d, nil
}

// FormatValue renders a value the way the runtime prints it.
func FormatValue(v Value) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case *big.Int:
		return x.String()
	case *apd.Decimal:
		return x.Text('f')
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}
