package http

import (
	"fmt"
	"net/http"
	"strconv"

	"mentorly/pkg/config"
	apperrors "mentorly/pkg/errors"
)

// ExtractBatchCursor reads the fetch-one-extra pagination parameters.
// A missing batch falls back to the configured default; a batch above
// the configured maximum is a client error, not a silent cap.
func ExtractBatchCursor(r *http.Request, cfg *config.Config) (int, int64, error) {
	query := r.URL.Query()

	batch := 0
	if s := query.Get("batch"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			return 0, 0, apperrors.InvalidInput("invalid batch parameter: " + s)
		}
		batch = v
	}
	if batch > cfg.MaxBatch {
		return 0, 0, apperrors.InvalidInput(fmt.Sprintf("batch %d exceeds maximum %d", batch, cfg.MaxBatch))
	}
	batch = cfg.NormalizeBatch(batch)

	var cursor int64
	if s := query.Get("cursor"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v < 0 {
			return 0, 0, apperrors.InvalidInput("invalid cursor parameter: " + s)
		}
		cursor = v
	}

	return batch, cursor, nil
}
