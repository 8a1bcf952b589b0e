package schematree

import (
	"errors"
	"fmt"

	"github.com/starford/schemaview/internal/pointer"
)

// Sentinels matched by the concrete error types below via errors.Is.
var (
	ErrUnresolvedReference = errors.New("unresolved reference")
	ErrNullReference       = errors.New("null reference")
	ErrEmptyExpansion      = errors.New("empty expansion")

	ErrUnknownNode   = errors.New("unknown node")
	ErrNotExpandable = errors.New("node is not expandable")
)

// UnresolvedReferenceError reports a $ref whose target is missing or is not
// an object schema.
type UnresolvedReferenceError struct {
	Pointer string
	Cause   error
}

func (e *UnresolvedReferenceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("schematree: could not dereference %q: %v", e.Pointer, e.Cause)
	}
	return fmt.Sprintf("schematree: could not dereference %q", e.Pointer)
}

func (e *UnresolvedReferenceError) Is(target error) bool { return target == ErrUnresolvedReference }
func (e *UnresolvedReferenceError) Unwrap() error        { return e.Cause }

// NullReferenceError reports a reference node without a usable pointer.
type NullReferenceError struct {
	Path pointer.Path
}

func (e *NullReferenceError) Error() string {
	return fmt.Sprintf("schematree: reference at %q has no target", e.Path.Fragment())
}

func (e *NullReferenceError) Is(target error) bool { return target == ErrNullReference }

// EmptyExpansionError reports an expansion that produced no nodes.
type EmptyExpansionError struct {
	Path pointer.Path
}

func (e *EmptyExpansionError) Error() string {
	return fmt.Sprintf("schematree: expanding %q produced no children", e.Path.Fragment())
}

func (e *EmptyExpansionError) Is(target error) bool { return target == ErrEmptyExpansion }
