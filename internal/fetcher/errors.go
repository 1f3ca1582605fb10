package fetcher

import (
	"fmt"

	"github.com/rohmanhakim/capture-crawler/internal/metadata"
	"github.com/rohmanhakim/capture-crawler/pkg/failure"
)

type FetchErrorCause string

const (
	ErrCauseTimeout        FetchErrorCause = "timeout"
	ErrCauseNetworkFailure FetchErrorCause = "network issues"
	ErrCauseRequestInvalid FetchErrorCause = "invalid request"
	ErrCauseCaptureStatus  FetchErrorCause = "capture relay status"
	ErrCauseReadBodyError  FetchErrorCause = "failed to read response body"
)

type FetchError struct {
	Message   string
	Retryable bool
	Cause     FetchErrorCause
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetcher error: %s: %s", e.Cause, e.Message)
}

func (e *FetchError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// IsRetryable returns whether this error is retryable
func (e *FetchError) IsRetryable() bool {
	return e.Retryable
}

// mapFetchErrorToMetadataCause maps fetcher-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapFetchErrorToMetadataCause(err *FetchError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseTimeout, ErrCauseNetworkFailure, ErrCauseReadBodyError, ErrCauseCaptureStatus:
		return metadata.CauseNetworkFailure
	case ErrCauseRequestInvalid:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}

func classifyTransportError(err error) *FetchError {
	if isTimeout(err) {
		return &FetchError{Message: err.Error(), Retryable: true, Cause: ErrCauseTimeout}
	}
	return &FetchError{Message: err.Error(), Retryable: true, Cause: ErrCauseNetworkFailure}
}
