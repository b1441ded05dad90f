// Package trace reads call traces: a line-oriented stand-in for compiled
// call sites. Each call line names a site label, a method, a receiver and
// arguments; every line with the same label reuses one call site.
//
//	# comment
//	!define Point                 define a class (optionally: !define Sub Point)
//	!method Point describe "pt"   register a zero-argument method returning a literal
//	s1 plus 1 2                   call plus on 1 with argument 2 at site s1
//	s2 describe @Point            @Class makes a fresh instance
//	!invalidate Point
//	!reset
package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/chazu/pica/vm"
)

// StepKind identifies a trace line.
type StepKind uint8

const (
	StepCall StepKind = iota
	StepDefine
	StepMethod
	StepInvalidate
	StepReset
)

// Operand is a receiver or argument: either a literal value or a fresh
// instance of a class defined in the trace.
type Operand struct {
	Value vm.Value
	Class string
}

func (o Operand) String() string {
	if o.Class != "" {
		return "@" + o.Class
	}
	return FormatLiteral(o.Value)
}

// Step is one parsed line.
type Step struct {
	Line int
	Kind StepKind

	// StepCall
	Site     int
	Method   string
	Receiver Operand
	Args     []Operand

	// StepDefine, StepMethod, StepInvalidate
	Class string
	Super string
	Name  string
	Value vm.Value
}

// Program is a parsed trace.
type Program struct {
	Name  string
	Steps []Step

	labels []string
	sites  []string // method name per site index
}

// SiteNames returns the method name of every site, by index.
func (p *Program) SiteNames() []string {
	return p.sites
}

// SiteLabel returns the label a site was declared with.
func (p *Program) SiteLabel(i int) string {
	return p.labels[i]
}

// ParseFile reads and parses a trace file.
func ParseFile(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	defer f.Close()
	return Parse(path, f)
}

// Parse parses a trace.
func Parse(name string, r io.Reader) (*Program, error) {
	p := &Program{Name: name}
	index := make(map[string]int)

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		toks, err := tokenize(sc.Text())
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", name, line, err)
		}
		if len(toks) == 0 {
			continue
		}

		step, err := p.parseStep(line, toks, index)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", name, line, err)
		}
		p.Steps = append(p.Steps, step)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return p, nil
}

func (p *Program) parseStep(line int, toks []string, index map[string]int) (Step, error) {
	step := Step{Line: line}

	switch toks[0] {
	case "!define":
		if len(toks) < 2 || len(toks) > 3 {
			return step, fmt.Errorf("usage: !define <Class> [<Superclass>]")
		}
		step.Kind, step.Class = StepDefine, toks[1]
		if len(toks) == 3 {
			step.Super = toks[2]
		}
		return step, nil

	case "!method":
		if len(toks) != 4 {
			return step, fmt.Errorf("usage: !method <Class> <name> <literal>")
		}
		v, err := ParseLiteral(toks[3])
		if err != nil {
			return step, err
		}
		step.Kind, step.Class, step.Name, step.Value = StepMethod, toks[1], toks[2], v
		return step, nil

	case "!invalidate":
		if len(toks) != 2 {
			return step, fmt.Errorf("usage: !invalidate <Class>")
		}
		step.Kind, step.Class = StepInvalidate, toks[1]
		return step, nil

	case "!reset":
		if len(toks) != 1 {
			return step, fmt.Errorf("usage: !reset")
		}
		step.Kind = StepReset
		return step, nil
	}

	if strings.HasPrefix(toks[0], "!") {
		return step, fmt.Errorf("unknown directive %s", toks[0])
	}
	if len(toks) < 3 {
		return step, fmt.Errorf("usage: <site> <method> <receiver> [args...]")
	}

	label, method := toks[0], toks[1]
	i, ok := index[label]
	if !ok {
		i = len(p.sites)
		index[label] = i
		p.labels = append(p.labels, label)
		p.sites = append(p.sites, method)
	} else if p.sites[i] != method {
		return step, fmt.Errorf("site %s already calls %s, not %s", label, p.sites[i], method)
	}

	recv, err := parseOperand(toks[2])
	if err != nil {
		return step, err
	}
	args := make([]Operand, 0, len(toks)-3)
	for _, tok := range toks[3:] {
		a, err := parseOperand(tok)
		if err != nil {
			return step, err
		}
		args = append(args, a)
	}

	step.Kind, step.Site, step.Method = StepCall, i, method
	step.Receiver, step.Args = recv, args
	return step, nil
}

func parseOperand(tok string) (Operand, error) {
	if strings.HasPrefix(tok, "@") {
		if len(tok) == 1 {
			return Operand{}, fmt.Errorf("missing class name after @")
		}
		return Operand{Class: tok[1:]}, nil
	}
	v, err := ParseLiteral(tok)
	if err != nil {
		return Operand{}, err
	}
	return Operand{Value: v}, nil
}

// tokenize splits a line on white space, keeping quoted strings whole and
// dropping a trailing # comment.
func tokenize(line string) ([]string, error) {
	var toks []string
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == '#':
			return toks, nil
		case unicode.IsSpace(rune(c)):
			i++
		case c == '"':
			j := i + 1
			for ; j < len(line); j++ {
				if line[j] == '\\' {
					j++
					continue
				}
				if line[j] == '"' {
					break
				}
			}
			if j >= len(line) {
				return nil, fmt.Errorf("unterminated string")
			}
			toks = append(toks, line[i:j+1])
			i = j + 1
		default:
			j := i
			for j < len(line) && !unicode.IsSpace(rune(line[j])) && line[j] != '#' {
				j++
			}
			toks = append(toks, line[i:j])
			i = j
		}
	}
	return toks, nil
}
