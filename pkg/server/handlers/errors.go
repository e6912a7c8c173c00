package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/careergraph/pkg/server/dto"
	"github.com/soundprediction/careergraph/pkg/types"
)

// writeError writes an error response as JSON
func writeError(c *gin.Context, status int, errCode, message string) {
	c.JSON(status, dto.ErrorResponse{
		Error:   errCode,
		Message: message,
		Code:    status,
	})
}

// respondError maps client errors to HTTP responses:
// validation 400, write 500, connection 503, query 500.
// A WriteError takes precedence over a ConnectionError it wraps.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	var (
		verr *types.ValidationError
		cerr *types.ConnectionError
		werr *types.WriteError
		qerr *types.QueryError
	)

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_failed",
			Message: verr.Error(),
			Code:    http.StatusBadRequest,
			Field:   verr.Field,
		})
	case errors.As(err, &werr):
		partial := werr.Partial
		logger.ErrorContext(c.Request.Context(), "ingestion failed",
			"record_id", werr.RecordID, "step", werr.Step, "partial", partial, "error", werr.Err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "write_failed",
			Message: err.Error(),
			Code:    http.StatusInternalServerError,
			Step:    werr.Step,
			Partial: &partial,
		})
	case errors.As(err, &cerr):
		writeError(c, http.StatusServiceUnavailable, "datastore_unavailable", err.Error())
	case errors.As(err, &qerr):
		logger.ErrorContext(c.Request.Context(), "query failed", "op", qerr.Op, "error", qerr.Err)
		writeError(c, http.StatusInternalServerError, "query_failed", err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(c, http.StatusServiceUnavailable, "timeout", err.Error())
	default:
		logger.ErrorContext(c.Request.Context(), "request failed", "error", err)
		writeError(c, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
