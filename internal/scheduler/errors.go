package scheduler

import (
	"fmt"

	"github.com/rohmanhakim/capture-crawler/internal/metadata"
	"github.com/rohmanhakim/capture-crawler/pkg/failure"
)

type ControllerErrorCause string

const (
	ErrCauseInvalidSeed     ControllerErrorCause = "invalid seed"
	ErrCauseSeedUnreachable ControllerErrorCause = "seed unreachable"
	ErrCauseSeedOutOfDomain ControllerErrorCause = "seed redirects out of domain"
	ErrCauseEngineFailure   ControllerErrorCause = "rendering engine failure"
)

// ControllerError reports a crawl that could not start. It is always fatal.
type ControllerError struct {
	Message string
	Cause   ControllerErrorCause
	Err     error
}

func (e *ControllerError) Error() string {
	return fmt.Sprintf("controller error: %s: %s", e.Cause, e.Message)
}

func (e *ControllerError) Unwrap() error {
	return e.Err
}

func (e *ControllerError) Severity() failure.Severity {
	return failure.SeverityFatal
}

func (e *ControllerError) IsRetryable() bool {
	return false
}

func mapControllerErrorToMetadataCause(err *ControllerError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseInvalidSeed:
		return metadata.CauseContentInvalid
	case ErrCauseSeedUnreachable, ErrCauseSeedOutOfDomain:
		return metadata.CauseNetworkFailure
	case ErrCauseEngineFailure:
		return metadata.CauseRenderFailure
	default:
		return metadata.CauseUnknown
	}
}
