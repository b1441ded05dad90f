package vm

import (
	"fmt"
	"sync"
)

// Object is an instance of a user-defined class. Dispatch only looks at the
// class; fields are a convenience for method implementations.
type Object struct {
	class *Class

	mu     sync.RWMutex
	fields map[string]Value
}

// NewObject creates an instance of class. Builtin value classes and
// interfaces have no *Object instances.
func NewObject(class *Class) (*Object, error) {
	if class.final || class.IsInterface {
		return nil, fmt.Errorf("%w: %s", ErrNotInstantiable, class.Name)
	}
	return &Object{class: class}, nil
}

// MustNewObject is NewObject for bootstrap code and tests.
func MustNewObject(class *Class) *Object {
	o, err := NewObject(class)
	if err != nil {
		panic(err)
	}
	return o
}

// Class returns the exact class of the object.
func (o *Object) Class() *Class {
	return o.class
}

// Get returns a field value, or nil if unset.
func (o *Object) Get(name string) Value {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.fields[name]
}

// Set stores a field value.
func (o *Object) Set(name string, v Value) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fields == nil {
		o.fields = make(map[string]Value)
	}
	o.fields[name] = v
}

func (o *Object) String() string {
	return "a " + o.class.Name
}
