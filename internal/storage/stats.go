package storage

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rohmanhakim/capture-crawler/internal/metadata"
	"github.com/rohmanhakim/capture-crawler/pkg/failure"
	"github.com/rohmanhakim/capture-crawler/pkg/fileutil"
)

/*
Responsibilities
- Publish crawl progress for external watchers as a small JSON document
- Rewrite the whole file on every update, atomically

File shape:

	{"crawled": 3, "total": 10, "pending": 7, "failed": 0, "limit": {"max": 0, "hit": false}}
*/

type Progress struct {
	Crawled int           `json:"crawled"`
	Total   int           `json:"total"`
	Pending int           `json:"pending"`
	Failed  int           `json:"failed"`
	Limit   ProgressLimit `json:"limit"`
}

type ProgressLimit struct {
	Max int  `json:"max"`
	Hit bool `json:"hit"`
}

type StatsWriter struct {
	mu           sync.Mutex
	path         string
	metadataSink metadata.MetadataSink
}

// NewStatsWriter returns a writer for path. An empty path yields a writer
// that does nothing.
func NewStatsWriter(path string, metadataSink metadata.MetadataSink) *StatsWriter {
	return &StatsWriter{
		path:         path,
		metadataSink: metadataSink,
	}
}

func (s *StatsWriter) Enabled() bool {
	return s != nil && s.path != ""
}

func (s *StatsWriter) Write(progress Progress) failure.ClassifiedError {
	if !s.Enabled() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	content, err := json.Marshal(progress)
	if err != nil {
		return s.fail(&StorageError{Message: err.Error(), Cause: ErrCauseWriteFailure, Path: s.path})
	}
	if writeErr := fileutil.WriteFileAtomic(s.path, content, 0644); writeErr != nil {
		var fileErr *fileutil.FileError
		retryable := errors.As(writeErr, &fileErr) && fileErr.IsRetryable()
		return s.fail(&StorageError{
			Message:   writeErr.Error(),
			Retryable: retryable,
			Cause:     ErrCauseWriteFailure,
			Path:      s.path,
		})
	}
	return nil
}

func (s *StatsWriter) fail(err *StorageError) *StorageError {
	if s.metadataSink != nil {
		s.metadataSink.RecordError(
			time.Now(),
			"storage",
			"StatsWriter.Write",
			mapStorageErrorToMetadataCause(err),
			err.Error(),
			[]metadata.Attribute{metadata.NewAttr(metadata.AttrWritePath, err.Path)},
		)
	}
	return err
}
