package oracle

// TransportError wraps network and HTTP-level failures talking to the oracle.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "oracle transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError wraps failures to decode the oracle's reply into the expected
// structure.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "oracle parse: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
