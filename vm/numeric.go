package vm

import (
	"math"
	"math/big"

	"github.com/cockroachdb/apd/v3"
)

// ---------------------------------------------------------------------------
// Numeric coercion engine
//
// One table indexed by (op, left kind, right kind) replaces a class per
// operand pair. Every entry converts both operands to the promoted kind and
// runs that kind's arithmetic.
// ---------------------------------------------------------------------------

// Op is a binary number operator.
type Op uint8

const (
	OpAdd Op = iota
	OpSub
	OpMul
	OpDiv
	OpIntDiv
	OpMod
	OpCompare
)

const numOps = int(OpCompare) + 1

var opNames = [...]string{
	OpAdd:     "plus",
	OpSub:     "minus",
	OpMul:     "multiply",
	OpDiv:     "div",
	OpIntDiv:  "intdiv",
	OpMod:     "mod",
	OpCompare: "compareTo",
}

// Ops lists every operator in declaration order.
func Ops() []Op {
	return []Op{OpAdd, OpSub, OpMul, OpDiv, OpIntDiv, OpMod, OpCompare}
}

// String returns the method name the operator dispatches under.
func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "op(?)"
}

// OpByName maps a method name such as "plus" to its operator.
func OpByName(name string) (Op, bool) {
	for i, n := range opNames {
		if n == name {
			return Op(i), true
		}
	}
	return 0, false
}

// promotion is spelled out per ordered pair. Long and BigInteger combined
// with Float compute in Double so the integer operand keeps its precision.
var promotion = [numKinds][numKinds]Kind{
	KindInt:        {KindInt, KindLong, KindBigInt, KindFloat, KindDouble, KindBigDecimal},
	KindLong:       {KindLong, KindLong, KindBigInt, KindDouble, KindDouble, KindBigDecimal},
	KindBigInt:     {KindBigInt, KindBigInt, KindBigInt, KindDouble, KindDouble, KindBigDecimal},
	KindFloat:      {KindFloat, KindDouble, KindDouble, KindFloat, KindDouble, KindBigDecimal},
	KindDouble:     {KindDouble, KindDouble, KindDouble, KindDouble, KindDouble, KindBigDecimal},
	KindBigDecimal: {KindBigDecimal, KindBigDecimal, KindBigDecimal, KindBigDecimal, KindBigDecimal, KindBigDecimal},
}

// Promote returns the kind both operands are converted to before combining.
// Non-numeric operands promote to KindObject.
func Promote(left, right Kind) Kind {
	if !left.IsNumeric() || !right.IsNumeric() {
		return KindObject
	}
	return promotion[left][right]
}

// ResultKind is the kind Combine produces for op. Division of two
// BigIntegers yields a BigDecimal so the fractional part survives; every
// other integer pair keeps truncating division.
func ResultKind(op Op, left, right Kind) Kind {
	if !left.IsNumeric() || !right.IsNumeric() {
		return KindObject
	}
	switch {
	case op == OpCompare:
		return KindInt
	case op == OpDiv && left == KindBigInt && right == KindBigInt:
		return KindBigDecimal
	}
	return promotion[left][right]
}

type binaryFunc func(l, r Value) (Value, error)

var binaries [numOps][numKinds][numKinds]binaryFunc

func init() {
	for op := 0; op < numOps; op++ {
		for a := 0; a < numKinds; a++ {
			for b := 0; b < numKinds; b++ {
				binaries[op][a][b] = makeBinary(Op(op), Kind(a), Kind(b))
			}
		}
	}
}

// binaryFor returns the implementation for a known kind pair. Callers that
// already know the operand kinds, such as specialized candidates, skip
// classification entirely.
func binaryFor(op Op, left, right Kind) binaryFunc {
	return binaries[op][left][right]
}

// Combine classifies both operands and applies op under the promotion rules.
func Combine(op Op, left, right Value) (Value, error) {
	a, b := Classify(left), Classify(right)
	if !a.IsNumeric() || !b.IsNumeric() {
		return nil, noApplicable(op.String(), ClassOf(left), []*Class{ClassOf(right)})
	}
	return binaries[op][a][b](left, right)
}

func makeBinary(op Op, a, b Kind) binaryFunc {
	if op == OpDiv && a == KindBigInt && b == KindBigInt {
		return func(l, r Value) (Value, error) {
			return divideBigInts(l.(*big.Int), r.(*big.Int))
		}
	}
	switch promotion[a][b] {
	case KindInt:
		return func(l, r Value) (Value, error) {
			return combineInt(op, l.(int32), r.(int32))
		}
	case KindLong:
		return func(l, r Value) (Value, error) {
			return combineLong(op, toInt64(l), toInt64(r))
		}
	case KindBigInt:
		return func(l, r Value) (Value, error) {
			return combineBigInt(op, toBigInt(l), toBigInt(r))
		}
	case KindFloat:
		return func(l, r Value) (Value, error) {
			return combineFloat(op, toFloat32(l), toFloat32(r))
		}
	case KindDouble:
		return func(l, r Value) (Value, error) {
			return combineDouble(op, toFloat64(l), toFloat64(r))
		}
	default:
		return func(l, r Value) (Value, error) {
			x, err := toDecimal(op, l)
			if err != nil {
				return nil, err
			}
			y, err := toDecimal(op, r)
			if err != nil {
				return nil, err
			}
			return combineDecimal(op, x, y)
		}
	}
}

// ---------------------------------------------------------------------------
// Per-kind arithmetic
// ---------------------------------------------------------------------------

type ordered interface {
	~int32 | ~int64
}

func compareOrdered[T ordered](a, b T) int32 {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func combineInt(op Op, a, b int32) (Value, error) {
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMul:
		return a * b, nil
	case OpDiv, OpIntDiv:
		if b == 0 {
			return nil, divisionByZero(op)
		}
		return a / b, nil
	case OpMod:
		if b == 0 {
			return nil, divisionByZero(op)
		}
		return a % b, nil
	}
	return compareOrdered(a, b), nil
}

func combineLong(op Op, a, b int64) (Value, error) {
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMul:
		return a * b, nil
	case OpDiv, OpIntDiv:
		if b == 0 {
			return nil, divisionByZero(op)
		}
		return a / b, nil
	case OpMod:
		if b == 0 {
			return nil, divisionByZero(op)
		}
		return a % b, nil
	}
	return compareOrdered(a, b), nil
}

func combineBigInt(op Op, a, b *big.Int) (Value, error) {
	switch op {
	case OpAdd:
		return new(big.Int).Add(a, b), nil
	case OpSub:
		return new(big.Int).Sub(a, b), nil
	case OpMul:
		return new(big.Int).Mul(a, b), nil
	case OpDiv, OpIntDiv:
		if b.Sign() == 0 {
			return nil, divisionByZero(op)
		}
		return new(big.Int).Quo(a, b), nil
	case OpMod:
		if b.Sign() == 0 {
			return nil, divisionByZero(op)
		}
		return new(big.Int).Rem(a, b), nil
	}
	return int32(a.Cmp(b)), nil
}

func combineFloat(op Op, a, b float32) (Value, error) {
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMul:
		return a * b, nil
	case OpDiv:
		return a / b, nil
	case OpIntDiv:
		return nil, &ArithmeticError{Op: op, Msg: "not supported for Float"}
	case OpMod:
		return float32(math.Mod(float64(a), float64(b))), nil
	}
	return compareFloat64(float64(a), float64(b)), nil
}

func combineDouble(op Op, a, b float64) (Value, error) {
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMul:
		return a * b, nil
	case OpDiv:
		return a / b, nil
	case OpIntDiv:
		return nil, &ArithmeticError{Op: op, Msg: "not supported for Double"}
	case OpMod:
		return math.Mod(a, b), nil
	}
	return compareFloat64(a, b), nil
}

// compareFloat64 orders NaN above everything and -0 below +0.
func compareFloat64(a, b float64) int32 {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	an, bn := math.IsNaN(a), math.IsNaN(b)
	switch {
	case an && bn:
		return 0
	case an:
		return 1
	case bn:
		return -1
	}
	sa, sb := math.Signbit(a), math.Signbit(b)
	switch {
	case sa == sb:
		return 0
	case sa:
		return -1
	}
	return 1
}

func combineDecimal(op Op, x, y *apd.Decimal) (Value, error) {
	if op == OpCompare {
		return int32(x.Cmp(y)), nil
	}
	if op == OpDiv {
		return divideDecimal(x, y)
	}
	if (op == OpIntDiv || op == OpMod) && y.IsZero() {
		return nil, divisionByZero(op)
	}

	ctx := exactContext(x, y)
	d := new(apd.Decimal)
	var err error
	switch op {
	case OpAdd:
		_, err = ctx.Add(d, x, y)
	case OpSub:
		_, err = ctx.Sub(d, x, y)
	case OpMul:
		_, err = ctx.Mul(d, x, y)
	case OpIntDiv:
		_, err = ctx.QuoInteger(d, x, y)
	case OpMod:
		_, err = ctx.Rem(d, x, y)
	}
	if err != nil {
		return nil, &ArithmeticError{Op: op, Msg: err.Error()}
	}
	return d, nil
}

// exactContext has enough precision that the sum, difference, product,
// integer quotient and remainder of x and y are never rounded.
func exactContext(x, y *apd.Decimal) *apd.Context {
	spread := int64(x.Exponent) - int64(y.Exponent)
	if spread < 0 {
		spread = -spread
	}
	c := apd.BaseContext.WithPrecision(uint32(x.NumDigits() + y.NumDigits() + spread + 2))
	c.Rounding = apd.RoundHalfUp
	return c
}

// ---------------------------------------------------------------------------
// Decimal division
// ---------------------------------------------------------------------------

const divisionMinScale = 10

var (
	bigTwo  = big.NewInt(2)
	bigFive = big.NewInt(5)
	bigTen  = big.NewInt(10)
)

func divideBigInts(a, b *big.Int) (Value, error) {
	if b.Sign() == 0 {
		return nil, divisionByZero(OpDiv)
	}
	return divideScaled(a, 0, b, 0), nil
}

func divideDecimal(x, y *apd.Decimal) (Value, error) {
	if y.IsZero() {
		return nil, divisionByZero(OpDiv)
	}
	return divideScaled(signedCoeff(x), x.Exponent, signedCoeff(y), y.Exponent), nil
}

func signedCoeff(d *apd.Decimal) *big.Int {
	c := d.Coeff.MathBigInt()
	if d.Negative {
		c.Neg(c)
	}
	return c
}

// divideScaled divides cx×10^ex by cy×10^ey in integer arithmetic. The
// quotient is exact when it terminates, scaled no finer than ex-ey. A
// non-terminating quotient is rounded half-up to max(10, -ex, -ey)
// fractional digits.
func divideScaled(cx *big.Int, ex int32, cy *big.Int, ey int32) *apd.Decimal {
	ideal := int64(ex) - int64(ey)
	if cx.Sign() == 0 {
		return apd.New(0, int32(min(ideal, 0)))
	}

	g := new(big.Int).GCD(nil, nil, new(big.Int).Abs(cx), new(big.Int).Abs(cy))
	den := new(big.Int).Quo(cy, g)
	if k, ok := terminatingDigits(den); ok {
		// cx/cy = (cx/g)/den, and den divides 10^k.
		q := new(big.Int).Quo(cx, g)
		q.Mul(q, pow10(k))
		q.Quo(q, den)
		exp := ideal - k
		r := new(big.Int)
		for exp < ideal {
			next, rem := new(big.Int).QuoRem(q, bigTen, r)
			if rem.Sign() != 0 {
				break
			}
			q, exp = next, exp+1
		}
		return decimalFrom(q, exp)
	}

	scale := int64(divisionMinScale)
	scale = max(scale, -int64(ex), -int64(ey))
	num, den := new(big.Int).Set(cx), new(big.Int).Set(cy)
	if shift := ideal + scale; shift >= 0 {
		num.Mul(num, pow10(shift))
	} else {
		den.Mul(den, pow10(-shift))
	}
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	r.Abs(r).Lsh(r, 1)
	if r.CmpAbs(den) >= 0 {
		if num.Sign() == den.Sign() {
			q.Add(q, big.NewInt(1))
		} else {
			q.Sub(q, big.NewInt(1))
		}
	}
	return decimalFrom(q, -scale)
}

// terminatingDigits reports whether 1/den has a finite decimal expansion and
// how many fractional digits it needs.
func terminatingDigits(den *big.Int) (int64, bool) {
	d := new(big.Int).Abs(den)
	r := new(big.Int)
	count := func(p *big.Int) int64 {
		var n int64
		for {
			q, m := new(big.Int).QuoRem(d, p, r)
			if m.Sign() != 0 {
				return n
			}
			d, n = q, n+1
		}
	}
	twos, fives := count(bigTwo), count(bigFive)
	if d.Cmp(big.NewInt(1)) != 0 {
		return 0, false
	}
	return max(twos, fives), true
}

func pow10(n int64) *big.Int {
	return new(big.Int).Exp(bigTen, big.NewInt(n), nil)
}

func decimalFrom(coeff *big.Int, exp int64) *apd.Decimal {
	return apd.NewWithBigInt(new(apd.BigInt).SetMathBigInt(coeff), int32(exp))
}
