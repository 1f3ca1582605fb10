package render

import (
	"context"
	"errors"
)

const snapshotScript = `[document.baseURI || "", document.documentElement ? document.documentElement.outerHTML : ""]`

// Snapshot returns the document's baseURI and its serialized DOM.
func Snapshot(ctx context.Context, page Page) (string, string, error) {
	var parts []string
	if err := page.Evaluate(ctx, snapshotScript, &parts); err != nil {
		var renderErr *RenderError
		if errors.As(err, &renderErr) {
			return "", "", renderErr
		}
		return "", "", &RenderError{Message: err.Error(), Retryable: true, Cause: ErrCauseEvaluateFailure}
	}
	if len(parts) != 2 {
		return "", "", &RenderError{
			Message:   "unexpected snapshot shape",
			Retryable: true,
			Cause:     ErrCauseEvaluateFailure,
		}
	}
	return parts[0], parts[1], nil
}
