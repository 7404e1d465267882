package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savdo-pos/savdo-pos/internal/platform/db"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) ProblemDetail {
	t.Helper()
	var pd ProblemDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&pd))
	return pd
}

func TestProblemPayload(t *testing.T) {
	rec := httptest.NewRecorder()
	Problem(rec, http.StatusNotFound, "Not Found", "sale 42 does not exist")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	pd := decodeProblem(t, rec)
	assert.Equal(t, "Not Found", pd.Title)
	assert.Equal(t, http.StatusNotFound, pd.Status)
	assert.Equal(t, "sale 42 does not exist", pd.Detail)
}

func TestRespondErrorTxConflict(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, discardLogger(), fmt.Errorf("completing sale: %w", db.ErrTxConflict))

	assert.Equal(t, http.StatusConflict, rec.Code)
	pd := decodeProblem(t, rec)
	assert.Equal(t, "Conflict", pd.Title)
}

func TestRespondErrorUnknownIsOpaque(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, discardLogger(), errors.New("pool exhausted"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	pd := decodeProblem(t, rec)
	assert.Equal(t, "Internal Error", pd.Title)
	assert.Empty(t, pd.Detail, "internal failures must not leak details")
}
