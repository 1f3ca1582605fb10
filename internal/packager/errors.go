package packager

import (
	"fmt"

	"github.com/rohmanhakim/capture-crawler/internal/metadata"
	"github.com/rohmanhakim/capture-crawler/pkg/failure"
)

type PackageErrorCause string

const (
	ErrCauseNoArchives   PackageErrorCause = "no archives"
	ErrCauseInvalidInput PackageErrorCause = "invalid options"
	ErrCauseStartFailure PackageErrorCause = "packager could not start"
	ErrCauseExitStatus   PackageErrorCause = "packager failed"
)

type PackageError struct {
	Message  string
	Cause    PackageErrorCause
	ExitCode int
}

func (e *PackageError) Error() string {
	return fmt.Sprintf("package error: %s: %s", e.Cause, e.Message)
}

func (e *PackageError) Severity() failure.Severity {
	return failure.SeverityFatal
}

func (e *PackageError) IsRetryable() bool {
	return false
}

// MapPackageErrorToMetadataCause is observational only.
func MapPackageErrorToMetadataCause(err *PackageError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseNoArchives, ErrCauseStartFailure, ErrCauseExitStatus:
		return metadata.CausePackagingFailure
	case ErrCauseInvalidInput:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
