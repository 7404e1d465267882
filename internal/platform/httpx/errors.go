package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/savdo-pos/savdo-pos/internal/platform/db"
)

// RespondError handles the error cases shared by every module handler:
// serialization conflicts surface as 409, anything unrecognized is logged
// and answered with a bare 500.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, db.ErrTxConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		logger.Error("request failed", slog.Any("error", err))
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
