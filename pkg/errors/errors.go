package apperrors

import "errors"

// Standardized planner errors
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrDegenerateMath      = errors.New("degenerate calculation")
	ErrInvalidRiskRatio    = errors.New("invalid risk ratio")
	ErrUnsupportedProtocol = errors.New("unsupported protocol")
	ErrUnsupportedNetwork  = errors.New("unsupported network")
	ErrUnsupportedAction   = errors.New("unsupported action")
	ErrQuoteUnavailable    = errors.New("swap quote unavailable")
	ErrPrecisionOverflow   = errors.New("amount exceeds on-chain precision range")
	ErrMissingDependency   = errors.New("missing dependency")
	ErrNotFound            = errors.New("not found")
)

// DomainError reports a mathematically or semantically impossible request.
// It unwraps to one of the sentinels above so callers can use errors.Is.
type DomainError struct {
	Op     string
	Reason string
	Err    error
}

func (e *DomainError) Error() string {
	if e.Reason == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error() + ": " + e.Reason
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError builds a DomainError wrapping sentinel.
func NewDomainError(op string, sentinel error, reason string) error {
	return &DomainError{Op: op, Reason: reason, Err: sentinel}
}
