package render

import (
	"fmt"

	"github.com/rohmanhakim/capture-crawler/internal/metadata"
	"github.com/rohmanhakim/capture-crawler/pkg/failure"
)

type RenderErrorCause string

const (
	ErrCauseLaunchFailure     RenderErrorCause = "browser launch failed"
	ErrCauseTabFailure        RenderErrorCause = "tab creation failed"
	ErrCauseNavigationFailure RenderErrorCause = "navigation failed"
	ErrCauseNavigationTimeout RenderErrorCause = "navigation timed out"
	ErrCauseEvaluateFailure   RenderErrorCause = "script evaluation failed"
	ErrCauseScrollCeiling     RenderErrorCause = "scroll ceiling reached"
	ErrCauseCancelled         RenderErrorCause = "cancelled"
)

type RenderError struct {
	Message   string
	Retryable bool
	Cause     RenderErrorCause
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render error: %s: %s", e.Cause, e.Message)
}

func (e *RenderError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *RenderError) IsRetryable() bool {
	return e.Retryable
}

// MapRenderErrorToMetadataCause maps render-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func MapRenderErrorToMetadataCause(err *RenderError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseNavigationFailure, ErrCauseNavigationTimeout:
		return metadata.CauseNetworkFailure
	case ErrCauseLaunchFailure, ErrCauseTabFailure, ErrCauseEvaluateFailure, ErrCauseScrollCeiling:
		return metadata.CauseRenderFailure
	default:
		return metadata.CauseUnknown
	}
}
