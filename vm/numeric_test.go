package vm

import (
	"errors"
	"math"
	"math/big"
	"strings"
	"testing"

	"github.com/cockroachdb/apd/v3"
)

func sampleOf(k Kind, n int64) Value {
	switch k {
	case KindInt:
		return int32(n)
	case KindLong:
		return n
	case KindBigInt:
		return big.NewInt(n)
	case KindFloat:
		return float32(n)
	case KindDouble:
		return float64(n)
	case KindBigDecimal:
		return apd.New(n, 0)
	}
	panic("not numeric")
}

func numericKinds() []Kind {
	return []Kind{KindInt, KindLong, KindBigInt, KindFloat, KindDouble, KindBigDecimal}
}

func TestCombineResultKindMatchesPromotion(t *testing.T) {
	for _, op := range []Op{OpAdd, OpSub, OpMul, OpDiv} {
		for _, a := range numericKinds() {
			for _, b := range numericKinds() {
				got, err := Combine(op, sampleOf(a, 6), sampleOf(b, 3))
				if err != nil {
					t.Fatalf("%s(%s, %s): unexpected error %v", op, a, b, err)
				}
				want := Promote(a, b)
				if op == OpDiv && a == KindBigInt && b == KindBigInt {
					want = KindBigDecimal
				}
				if k := Classify(got); k != want {
					t.Errorf("%s(%s, %s): expected %s, got %s", op, a, b, want, k)
				}
				if rk := ResultKind(op, a, b); rk != want {
					t.Errorf("ResultKind(%s, %s, %s) = %s, want %s", op, a, b, rk, want)
				}
			}
		}
	}
}

func TestPromoteAsymmetricPairs(t *testing.T) {
	tests := []struct {
		a, b Kind
		want Kind
	}{
		{KindInt, KindFloat, KindFloat},
		{KindFloat, KindInt, KindFloat},
		{KindLong, KindFloat, KindDouble},
		{KindFloat, KindLong, KindDouble},
		{KindBigInt, KindFloat, KindDouble},
		{KindFloat, KindBigInt, KindDouble},
		{KindBigInt, KindDouble, KindDouble},
		{KindDouble, KindBigDecimal, KindBigDecimal},
		{KindInt, KindLong, KindLong},
		{KindObject, KindInt, KindObject},
	}
	for _, tt := range tests {
		if got := Promote(tt.a, tt.b); got != tt.want {
			t.Errorf("Promote(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestLongFloatWidensBothToDouble(t *testing.T) {
	got, err := Combine(OpAdd, int64(1)<<40, float32(0.5))
	if err != nil {
		t.Fatal(err)
	}
	if got != float64(1<<40)+0.5 {
		t.Errorf("Expected %v, got %v (%T)", float64(1<<40)+0.5, got, got)
	}
}

func TestIntegerDivisionByZero(t *testing.T) {
	for _, k := range []Kind{KindInt, KindLong, KindBigInt, KindBigDecimal} {
		for _, op := range []Op{OpDiv, OpIntDiv, OpMod} {
			_, err := Combine(op, sampleOf(k, 1), sampleOf(k, 0))
			if !errors.Is(err, ErrArithmetic) {
				t.Errorf("%s on %s by zero: expected arithmetic error, got %v", op, k, err)
			}
		}
	}
}

func TestFloatingDivisionByZero(t *testing.T) {
	got, err := Combine(OpDiv, float64(1), float64(0))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !math.IsInf(got.(float64), 1) {
		t.Errorf("Expected +Inf, got %v", got)
	}

	got, err = Combine(OpDiv, float64(-1), float64(0))
	if err != nil || !math.IsInf(got.(float64), -1) {
		t.Errorf("Expected -Inf, got %v (%v)", got, err)
	}

	got, err = Combine(OpDiv, float64(0), float64(0))
	if err != nil || !math.IsNaN(got.(float64)) {
		t.Errorf("Expected NaN, got %v (%v)", got, err)
	}

	got, err = Combine(OpDiv, float32(1), float32(0))
	if err != nil || !math.IsInf(float64(got.(float32)), 1) {
		t.Errorf("Expected float32 +Inf, got %v (%v)", got, err)
	}
}

func TestIntegerOverflowWraps(t *testing.T) {
	got, _ := Combine(OpAdd, int32(math.MaxInt32), int32(1))
	if got != int32(math.MinInt32) {
		t.Errorf("Expected wrap to MinInt32, got %v", got)
	}
	got, _ = Combine(OpMul, int64(math.MaxInt64), int64(2))
	if got != int64(-2) {
		t.Errorf("Expected -2, got %v", got)
	}
}

func TestIntegerDivisionTruncates(t *testing.T) {
	got, _ := Combine(OpDiv, int32(-7), int32(2))
	if got != int32(-3) {
		t.Errorf("Expected -3, got %v", got)
	}
	got, _ = Combine(OpMod, int64(-7), int64(2))
	if got != int64(-1) {
		t.Errorf("Expected -1, got %v", got)
	}
	got, _ = Combine(OpDiv, int32(7), big.NewInt(2))
	if b, ok := got.(*big.Int); !ok || b.Int64() != 3 {
		t.Errorf("Expected BigInteger 3, got %v (%T)", got, got)
	}
}

func TestBigIntegerDivisionYieldsDecimal(t *testing.T) {
	tests := []struct {
		a, b int64
		want string
	}{
		{6, 3, "2"},
		{1, 8, "0.125"},
		{1, 3, "0.3333333333"},
		{2, 3, "0.6666666667"},
		{100, 2, "50"},
		{-1, 3, "-0.3333333333"},
	}
	for _, tt := range tests {
		got, err := Combine(OpDiv, big.NewInt(tt.a), big.NewInt(tt.b))
		if err != nil {
			t.Fatalf("%d/%d: %v", tt.a, tt.b, err)
		}
		d, ok := got.(*apd.Decimal)
		if !ok {
			t.Fatalf("%d/%d: expected BigDecimal, got %T", tt.a, tt.b, got)
		}
		if s := d.Text('f'); s != tt.want {
			t.Errorf("%d/%d = %s, want %s", tt.a, tt.b, s, tt.want)
		}
	}
}

func TestDecimalDivisionKeepsOperandScale(t *testing.T) {
	x, _ := ParseBigDecimal("1.000000000000")
	got, err := Combine(OpDiv, x, apd.New(3, 0))
	if err != nil {
		t.Fatal(err)
	}
	if s := got.(*apd.Decimal).Text('f'); s != "0.333333333333" {
		t.Errorf("Expected 12 fractional digits, got %s", s)
	}
}

func TestFloatIntDivUnsupported(t *testing.T) {
	_, err := Combine(OpIntDiv, float64(7), float64(2))
	if !errors.Is(err, ErrArithmetic) {
		t.Errorf("Expected arithmetic error, got %v", err)
	}
}

func TestNonFiniteToDecimal(t *testing.T) {
	_, err := Combine(OpAdd, math.Inf(1), apd.New(1, 0))
	if !errors.Is(err, ErrArithmetic) {
		t.Errorf("Expected arithmetic error, got %v", err)
	}
}

func TestFloatToDecimalUsesShortestForm(t *testing.T) {
	got, err := Combine(OpAdd, float32(0.1), apd.New(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if s := got.(*apd.Decimal).Text('f'); s != "0.1" {
		t.Errorf("Expected 0.1, got %s", s)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b Value
		want int32
	}{
		{int32(1), float64(2), -1},
		{int64(5), int32(5), 0},
		{big.NewInt(9), int32(2), 1},
		{math.NaN(), float64(1), 1},
		{math.Copysign(0, -1), float64(0), -1},
		{apd.New(15, -1), float32(1.5), 0},
	}
	for _, tt := range tests {
		got, err := Combine(OpCompare, tt.a, tt.b)
		if err != nil {
			t.Fatalf("compare(%v, %v): %v", tt.a, tt.b, err)
		}
		if got != tt.want {
			t.Errorf("compare(%v, %v) = %v, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCombineNonNumeric(t *testing.T) {
	_, err := Combine(OpAdd, "a", int32(1))
	if !errors.Is(err, ErrNoApplicableOperation) {
		t.Errorf("Expected no applicable operation, got %v", err)
	}
}

func TestOpByName(t *testing.T) {
	for _, op := range Ops() {
		got, ok := OpByName(op.String())
		if !ok || got != op {
			t.Errorf("OpByName(%q) = %v, %v", op.String(), got, ok)
		}
	}
	if _, ok := OpByName("power"); ok {
		t.Error("Expected power to be unknown")
	}
}

func TestDecimalArithmeticIsExactForLongOperands(t *testing.T) {
	n := new(big.Int).Exp(big.NewInt(10), big.NewInt(1101), nil)
	n.Add(n, big.NewInt(1))
	x := apd.NewWithBigInt(new(apd.BigInt).SetMathBigInt(n), 0)

	sum, err := Combine(OpAdd, x, apd.New(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if s := sum.(*apd.Decimal).Text('f'); s != n.String() {
		t.Errorf("Expected the sum to keep every digit, got %d digits", len(s))
	}

	diff, err := Combine(OpSub, x, apd.New(1, -5))
	if err != nil {
		t.Fatal(err)
	}
	want := "1" + strings.Repeat("0", 1101) + ".99999"
	if s := diff.(*apd.Decimal).Text('f'); s != want {
		t.Errorf("Expected exact difference, got %d chars", len(s))
	}

	product, err := Combine(OpMul, x, x)
	if err != nil {
		t.Fatal(err)
	}
	if s := product.(*apd.Decimal).Text('f'); s != new(big.Int).Mul(n, n).String() {
		t.Error("Expected an exact product")
	}

	rem, err := Combine(OpMod, x, apd.New(10, 0))
	if err != nil {
		t.Fatal(err)
	}
	if rem.(*apd.Decimal).Cmp(apd.New(1, 0)) != 0 {
		t.Errorf("Expected remainder 1, got %v", rem)
	}
	quo, err := Combine(OpIntDiv, x, apd.New(1, 0))
	if err != nil {
		t.Fatal(err)
	}
	if quo.(*apd.Decimal).Cmp(x) != 0 {
		t.Error("Expected x intdiv 1 to be x")
	}
}

func TestBigIntegerDivisionOfLongOperands(t *testing.T) {
	a := new(big.Int).Exp(big.NewInt(10), big.NewInt(1500), nil)
	got, err := Combine(OpDiv, a, big.NewInt(1))
	if err != nil {
		t.Fatal(err)
	}
	if s := got.(*apd.Decimal).Text('f'); s != a.String() {
		t.Errorf("Expected 10^1500 back, got %d chars", len(s))
	}

	b := new(big.Int).Exp(big.NewInt(10), big.NewInt(1200), nil)
	got, err = Combine(OpDiv, b, big.NewInt(3))
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Repeat("3", 1200) + "." + strings.Repeat("3", 10)
	if s := got.(*apd.Decimal).Text('f'); s != want {
		t.Errorf("Expected 1200 integer digits and 10 fractional, got %d chars", len(s))
	}

	got, err = Combine(OpDiv, big.NewInt(-2), big.NewInt(3))
	if err != nil {
		t.Fatal(err)
	}
	if s := got.(*apd.Decimal).Text('f'); s != "-0.6666666667" {
		t.Errorf("Expected half-up away from zero, got %s", s)
	}
}
