package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPreExecution marks a cell that was rejected before it started running
	ErrPreExecution = errors.New("pre-execution error")
	// ErrExecution marks a cell that raised while running
	ErrExecution = errors.New("execution error")
	// ErrInterpreterUnavailable is returned once the interpreter can no longer evaluate cells
	ErrInterpreterUnavailable = errors.New("interpreter unavailable")
	// ErrKernelFault is returned when a cell could not be run but the interpreter remains usable
	ErrKernelFault = errors.New("kernel fault")
)

// Capture is the per-call sink receiving everything a single cell wrote to
// its standard streams.
type Capture struct {
	Stdout strings.Builder
	Stderr strings.Builder
}

// CellError describes a failure raised by user code, as opposed to a fault
// of the interpreter itself.
type CellError struct {
	// BeforeExec is true when the cell never started (e.g. it does not parse)
	BeforeExec bool
	Type       string
	Message    string
}

func (e *CellError) Error() string {
	if e.Message == "" {
		return e.Type
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap classifies the error as ErrPreExecution or ErrExecution
func (e *CellError) Unwrap() error {
	if e.BeforeExec {
		return ErrPreExecution
	}
	return ErrExecution
}

// Text returns the text surfaced in an error content item. Execution errors
// always carry a readable message and fall back to the exception type; errors
// raised before execution only carry their own message, which may be empty.
func (e *CellError) Text() string {
	if e.BeforeExec || e.Message != "" {
		return e.Message
	}
	return e.Type
}

// Interpreter evaluates code cells against persistent state
type Interpreter interface {
	// Eval runs one cell, writing its output to sink. A non-nil *CellError
	// reports a failure of the user's code; a non-nil error reports a fault
	// of the interpreter.
	Eval(ctx context.Context, code string, sink *Capture) (*CellError, error)
	// Version describes the interpreter runtime
	Version() string
	Close() error
}

// InterpreterFactory constructs the interpreter bound to a working directory
type InterpreterFactory func(ctx context.Context, workdir string) (Interpreter, error)
