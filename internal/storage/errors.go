package storage

import (
	"fmt"

	"github.com/rohmanhakim/capture-crawler/internal/metadata"
	"github.com/rohmanhakim/capture-crawler/pkg/failure"
)

type StorageErrorCause string

const (
	ErrCauseWriteFailure StorageErrorCause = "write failed"
	ErrCauseOpenFailure  StorageErrorCause = "open failed"
	ErrCauseQueryFailure StorageErrorCause = "query failed"
)

type StorageError struct {
	Message   string
	Retryable bool
	Cause     StorageErrorCause
	Path      string
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s: %s", e.Cause, e.Message)
}

func (e *StorageError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *StorageError) IsRetryable() bool {
	return e.Retryable
}

// mapStorageErrorToMetadataCause maps storage-local error semantics
// to the canonical metadata.ErrorCause table. Observational only.
func mapStorageErrorToMetadataCause(err *StorageError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseWriteFailure, ErrCauseOpenFailure, ErrCauseQueryFailure:
		return metadata.CauseStorageFailure
	default:
		return metadata.CauseUnknown
	}
}
