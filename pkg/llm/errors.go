package llm

import "fmt"

// TransportError indicates the collaborator was unreachable or refused the
// request. Recomputation and consolidation recover from it locally; it is
// never surfaced to a conversation's caller.
type TransportError struct {
	Op  string // the operation being performed, e.g. "summarize"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("llm: transport failure during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError indicates the collaborator answered with a shape the core
// cannot interpret. Raw preserves the offending text for logs.
type ParseError struct {
	Target string // the schema being decoded, e.g. "memory"
	Raw    string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("llm: cannot parse %s response: %v", e.Target, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
