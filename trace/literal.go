package trace

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/chazu/pica/vm"
)

// ParseLiteral parses one value literal.
//
//	null true false       null and booleans
//	"text"                string (Go escapes)
//	6                     Integer, widened to Long or BigInteger if it does not fit
//	6i 6L 6G              Integer, Long, BigInteger
//	1.5 1e3               BigDecimal
//	1.5f 1.5d 1.5G        Float, Double, BigDecimal
func ParseLiteral(s string) (vm.Value, error) {
	switch s {
	case "":
		return nil, fmt.Errorf("empty literal")
	case "null":
		return nil, nil
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	if s[0] == '"' {
		v, err := strconv.Unquote(s)
		if err != nil {
			return nil, fmt.Errorf("invalid string literal %s: %w", s, err)
		}
		return v, nil
	}

	body, suffix := s, byte(0)
	switch last := s[len(s)-1]; last {
	case 'i', 'I', 'l', 'L', 'g', 'G', 'f', 'F', 'd', 'D':
		body, suffix = s[:len(s)-1], last|0x20
	}
	if body == "" || body == "-" || body == "+" {
		return nil, fmt.Errorf("invalid literal %q", s)
	}

	if isIntegral(body) {
		return parseInteger(s, body, suffix)
	}
	return parseDecimal(s, body, suffix)
}

func isIntegral(s string) bool {
	return !strings.ContainsAny(s, ".eE")
}

func parseInteger(lit, body string, suffix byte) (vm.Value, error) {
	n, ok := new(big.Int).SetString(strings.TrimPrefix(body, "+"), 10)
	if !ok {
		return nil, fmt.Errorf("invalid number %q", lit)
	}
	switch suffix {
	case 0:
		switch {
		case n.IsInt64() && n.Int64() >= math.MinInt32 && n.Int64() <= math.MaxInt32:
			return int32(n.Int64()), nil
		case n.IsInt64():
			return n.Int64(), nil
		}
		return n, nil
	case 'i':
		if !n.IsInt64() || n.Int64() < math.MinInt32 || n.Int64() > math.MaxInt32 {
			return nil, fmt.Errorf("integer literal %q out of range", lit)
		}
		return int32(n.Int64()), nil
	case 'l':
		if !n.IsInt64() {
			return nil, fmt.Errorf("long literal %q out of range", lit)
		}
		return n.Int64(), nil
	case 'g':
		return n, nil
	case 'f':
		f, _ := new(big.Float).SetInt(n).Float32()
		return f, nil
	case 'd':
		f, _ := new(big.Float).SetInt(n).Float64()
		return f, nil
	}
	return nil, fmt.Errorf("invalid number %q", lit)
}

func parseDecimal(lit, body string, suffix byte) (vm.Value, error) {
	switch suffix {
	case 0, 'g':
		d, err := vm.ParseBigDecimal(body)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", lit, err)
		}
		return d, nil
	case 'f':
		f, err := strconv.ParseFloat(body, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q: %w", lit, err)
		}
		return float32(f), nil
	case 'd':
		f, err := strconv.ParseFloat(body, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid double %q: %w", lit, err)
		}
		return f, nil
	}
	return nil, fmt.Errorf("invalid number %q", lit)
}

// FormatLiteral renders v so that ParseLiteral reads back the same kind.
func FormatLiteral(v vm.Value) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case int32:
		return strconv.FormatInt(int64(x), 10) + "i"
	case int64:
		return strconv.FormatInt(x, 10) + "L"
	case *big.Int:
		return x.String() + "G"
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32) + "f"
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64) + "d"
	}
	if vm.Classify(v) == vm.KindBigDecimal {
		s := vm.FormatValue(v)
		if isIntegral(s) {
			s += "E0"
		}
		return s + "G"
	}
	return vm.FormatValue(v)
}
