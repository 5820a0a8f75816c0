package smartcrop

import "fmt"

// ParseError reports a malformed aspect specification, such as a non-numeric
// or non-positive "W:H" component.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "invalid aspect specification: " + e.Reason
}

// ValidationError reports degenerate requested dimensions, such as a negative
// explicit width. Out-of-range boost weights are clamped, not rejected.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid crop request: " + e.Reason
}

// DecodeError wraps a failure from the decode collaborator for corrupt or
// unsupported input bytes.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode failed: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// InternalError reports an invariant violation that should be unreachable: a
// computed window outside the raster or off the requested ratio. It is
// surfaced instead of returning a partial result.
type InternalError struct {
	Reason string
}

func (e *InternalError) Error() string {
	return "internal invariant violated: " + e.Reason
}
