package failure

import "errors"

type Severity int

// controller flow
const (
	SeverityFatal Severity = iota
	SeverityRecoverable
)

func (s Severity) String() string {
	switch s {
	case SeverityFatal:
		return "fatal"
	case SeverityRecoverable:
		return "recoverable"
	default:
		return "unknown"
	}
}

type ClassifiedError interface {
	error
	Severity() Severity
}

// IsFatal reports whether err, or any error it wraps, is classified as fatal.
// Unclassified errors are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var classified ClassifiedError
	if errors.As(err, &classified) {
		return classified.Severity() == SeverityFatal
	}
	return true
}
