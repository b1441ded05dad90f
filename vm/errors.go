package vm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoApplicableOperation matches every dispatch failure where no
	// candidate accepts the classified receiver and arguments.
	ErrNoApplicableOperation = errors.New("no applicable operation")

	// ErrArithmetic matches domain errors raised by the numeric engine.
	ErrArithmetic = errors.New("arithmetic error")

	// ErrDuplicateClass is returned when a loader defines a name twice.
	ErrDuplicateClass = errors.New("class already defined")

	// ErrFinalClass is returned when a class would extend a builtin value
	// class such as Integer or String.
	ErrFinalClass = errors.New("class is final")

	// ErrNotInstantiable is returned when an Object is requested for a
	// builtin value class or an interface.
	ErrNotInstantiable = errors.New("class cannot be instantiated")
)

// NoApplicableOperationError reports a failed resolution.
type NoApplicableOperationError struct {
	Name     string
	Receiver *Class
	Args     []*Class
}

func (e *NoApplicableOperationError) Error() string {
	if e.Receiver == NullObjectClass {
		return fmt.Sprintf("cannot invoke method %s() on null object", e.Name)
	}
	names := make([]string, len(e.Args))
	for i, a := range e.Args {
		names[i] = a.Name
	}
	return fmt.Sprintf("no applicable operation %s.%s(%s)", e.Receiver.Name, e.Name, strings.Join(names, ", "))
}

func (e *NoApplicableOperationError) Is(target error) bool {
	return target == ErrNoApplicableOperation
}

// ArithmeticError is a domain error from the numeric engine, such as integer
// division by zero. It is never cached by a call site.
type ArithmeticError struct {
	Op  Op
	Msg string
}

func (e *ArithmeticError) Error() string {
	return fmt.Sprintf("arithmetic error in %s: %s", e.Op, e.Msg)
}

func (e *ArithmeticError) Is(target error) bool {
	return target == ErrArithmetic
}

func divisionByZero(op Op) error {
	return &ArithmeticError{Op: op, Msg: "division by zero"}
}

func noApplicable(name string, receiver *Class, args []*Class) error {
	return &NoApplicableOperationError{Name: name, Receiver: receiver, Args: args}
}
