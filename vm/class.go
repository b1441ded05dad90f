package vm

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Loader: class-loader identity
// ---------------------------------------------------------------------------

// Loader defines classes. Two loaders may each define a class with the same
// name; the classes are distinct and get independent method tables.
type Loader struct {
	ID     uuid.UUID
	Name   string
	Parent *Loader

	mu      sync.RWMutex
	classes map[string]*Class
}

// NewLoader creates a loader with a fresh identity.
func NewLoader(name string, parent *Loader) *Loader {
	return &Loader{
		ID:      uuid.New(),
		Name:    name,
		Parent:  parent,
		classes: make(map[string]*Class),
	}
}

// Define creates a class owned by this loader. A nil superclass means
// Object. Defining the same name twice in one loader fails.
func (l *Loader) Define(name string, superclass *Class, interfaces ...*Class) (*Class, error) {
	if superclass == nil {
		superclass = ObjectClass
	}
	return l.define(name, KindObject, false, superclass, interfaces)
}

// DefineInterface creates an interface class owned by this loader.
func (l *Loader) DefineInterface(name string, extends ...*Class) (*Class, error) {
	return l.define(name, KindObject, true, nil, extends)
}

// MustDefine is Define for bootstrap code and tests.
func (l *Loader) MustDefine(name string, superclass *Class, interfaces ...*Class) *Class {
	c, err := l.Define(name, superclass, interfaces...)
	if err != nil {
		panic(err)
	}
	return c
}

func (l *Loader) define(name string, kind Kind, iface bool, superclass *Class, interfaces []*Class) (*Class, error) {
	if superclass != nil && superclass.final {
		return nil, fmt.Errorf("%w: %s cannot extend %s", ErrFinalClass, name, superclass.Name)
	}
	for _, i := range interfaces {
		if i.final {
			return nil, fmt.Errorf("%w: %s cannot extend %s", ErrFinalClass, name, i.Name)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.classes[name]; exists {
		return nil, fmt.Errorf("%w: %s in loader %s", ErrDuplicateClass, name, l.Name)
	}
	c := &Class{
		Name:        name,
		Loader:      l,
		Superclass:  superclass,
		Interfaces:  append([]*Class(nil), interfaces...),
		Kind:        kind,
		IsInterface: iface,
		id:          classIDs.Add(1),
	}
	c.lineage = computeLineage(c)
	l.classes[name] = c
	return c, nil
}

// Lookup finds a class by name, delegating to the parent loader first.
func (l *Loader) Lookup(name string) *Class {
	if l.Parent != nil {
		if c := l.Parent.Lookup(name); c != nil {
			return c
		}
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.classes[name]
}

// Classes returns the classes defined directly by this loader.
func (l *Loader) Classes() []*Class {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Class, 0, len(l.classes))
	for _, c := range l.classes {
		out = append(out, c)
	}
	return out
}

func (l *Loader) String() string {
	return l.Name
}

// ---------------------------------------------------------------------------
// Class
// ---------------------------------------------------------------------------

var classIDs atomic.Uint64

// Class is an exact runtime class. Classes are immutable once defined; the
// methods they answer live in the Registry, not here.
type Class struct {
	Name        string
	Loader      *Loader
	Superclass  *Class
	Interfaces  []*Class
	Kind        Kind
	IsInterface bool

	final   bool // builtin value class: no subclasses, no *Object instances
	id      uint64
	lineage []*Class // self, superclass chain, then interfaces breadth-first
}

// ID returns the process-unique numeric identity of the class.
func (c *Class) ID() uint64 {
	return c.id
}

// Lineage returns the class followed by every supertype in lookup order.
// The returned slice must not be modified.
func (c *Class) Lineage() []*Class {
	return c.lineage
}

// Distance returns how many lineage steps separate c from target, or -1 if
// c is not assignable to target.
func (c *Class) Distance(target *Class) int {
	for i, s := range c.lineage {
		if s == target {
			return i
		}
	}
	return -1
}

// IsAssignableTo reports whether a value of class c may be used where target
// is expected.
func (c *Class) IsAssignableTo(target *Class) bool {
	return c.Distance(target) >= 0
}

// IsFinal reports whether c is a builtin value class. Its instances are
// host values, never *Object.
func (c *Class) IsFinal() bool {
	return c.final
}

// IsNumeric reports whether instances of c are one of the numeric kinds.
func (c *Class) IsNumeric() bool {
	return c.Kind.IsNumeric()
}

// QualifiedName includes the defining loader.
func (c *Class) QualifiedName() string {
	if c.Loader == nil {
		return c.Name
	}
	return c.Loader.Name + ":" + c.Name
}

func (c *Class) String() string {
	return c.Name
}

func computeLineage(c *Class) []*Class {
	var out []*Class
	seen := make(map[*Class]bool)
	add := func(k *Class) {
		if k != nil && !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for k := c; k != nil; k = k.Superclass {
		add(k)
	}
	// Interfaces after the whole superclass chain.
	queue := make([]*Class, 0, len(out))
	for _, k := range out {
		queue = append(queue, k.Interfaces...)
	}
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		if seen[k] {
			continue
		}
		add(k)
		queue = append(queue, k.Interfaces...)
	}
	return out
}

// ---------------------------------------------------------------------------
// Boot loader and builtin classes
// ---------------------------------------------------------------------------

// BootLoader owns the builtin classes.
var BootLoader = NewLoader("boot", nil)

var (
	ObjectClass     = bootDefine("Object", KindObject, false, nil)
	ComparableClass = bootDefine("Comparable", KindObject, true, nil)
	NumberClass     = bootDefine("Number", KindObject, false, ObjectClass)

	IntegerClass    = bootFinal("Integer", KindInt, NumberClass, ComparableClass)
	LongClass       = bootFinal("Long", KindLong, NumberClass, ComparableClass)
	BigIntegerClass = bootFinal("BigInteger", KindBigInt, NumberClass, ComparableClass)
	FloatClass      = bootFinal("Float", KindFloat, NumberClass, ComparableClass)
	DoubleClass     = bootFinal("Double", KindDouble, NumberClass, ComparableClass)
	BigDecimalClass = bootFinal("BigDecimal", KindBigDecimal, NumberClass, ComparableClass)

	StringClass     = bootFinal("String", KindObject, ObjectClass, ComparableClass)
	BooleanClass    = bootFinal("Boolean", KindObject, ObjectClass, ComparableClass)
	NullObjectClass = bootFinal("NullObject", KindNull, ObjectClass)
)

// NumericClasses lists the builtin numeric classes in lattice order.
func NumericClasses() []*Class {
	return []*Class{IntegerClass, LongClass, BigIntegerClass, FloatClass, DoubleClass, BigDecimalClass}
}

func bootDefine(name string, kind Kind, iface bool, superclass *Class, interfaces ...*Class) *Class {
	c, err := BootLoader.define(name, kind, iface, superclass, interfaces)
	if err != nil {
		panic(err)
	}
	return c
}

func bootFinal(name string, kind Kind, superclass *Class, interfaces ...*Class) *Class {
	c := bootDefine(name, kind, false, superclass, interfaces...)
	c.final = true
	return c
}
