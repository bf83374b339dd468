package order

// InvalidStateError indicates a precondition violation: missing builder
// fields, an empty cart at checkout, or nil arguments. Internal marks the one
// unrepairable case, a failure detected after payment already succeeded; the
// surface is the same but callers must alert on it distinctly.
type InvalidStateError struct {
	Reason   string
	Internal bool
}

func (e *InvalidStateError) Error() string {
	return "invalid state: " + e.Reason
}
