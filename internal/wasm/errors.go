package internalwasm

import "fmt"

// DecodeError is returned by the binary decoder when the byte stream does not conform to the
// WebAssembly binary format grammar.
type DecodeError struct {
	// Section is the SectionID being decoded when the error occurred, or SectionIDCustom if the
	// error occurred before any section (e.g. a bad magic/version header).
	Section SectionID
	// Pos is the byte offset within the module at which decoding failed.
	Pos uint64
	// Message describes the malformed encoding.
	Message string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("section %s: offset %#x: %s", SectionIDName(e.Section), e.Pos, e.Message)
}

// ParseError is returned by the text format parser when tokens do not conform to the WebAssembly
// text format grammar.
type ParseError struct {
	// Line and Col are 1-based source positions of the offending token.
	Line, Col int
	Message   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Message)
}

// ValidationError is returned when a structurally well-formed Module fails static validation:
// an out-of-range index, a type mismatch, or a violated stack-polymorphism rule.
type ValidationError struct {
	// FunctionIndex is the module-level index of the function being validated, or -1 if the error
	// is not scoped to a single function (e.g. an invalid export).
	FunctionIndex int
	Message       string
}

func (e *ValidationError) Error() string {
	if e.FunctionIndex < 0 {
		return "invalid module: " + e.Message
	}
	return fmt.Sprintf("invalid function[%d]: %s", e.FunctionIndex, e.Message)
}

// LinkError is returned when a Module cannot be instantiated against a Store: a missing import, an
// import whose concrete type disagrees with the declared one, or an active segment out of bounds.
type LinkError struct {
	// Module and Name identify the import the error concerns, when applicable.
	Module, Name string
	Message      string
}

func (e *LinkError) Error() string {
	if e.Module == "" {
		return "link error: " + e.Message
	}
	return fmt.Sprintf("link error: %s.%s: %s", e.Module, e.Name, e.Message)
}
