package closing

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/jangbu-erp/jangbu-erp/internal/ledger"
)

func newTestHandler(t *testing.T) (*memRepository, http.Handler) {
	t.Helper()
	repo := newMemRepository()
	svc := NewService(repo, nil, nil)
	h := NewHandler(slog.Default(), svc)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return repo, r
}

func closeBody() map[string]any {
	return map[string]any{
		"period":       "2025-03",
		"kind":         "payable",
		"biz_unit":     "HQ",
		"counterparty": "CP-100",
		"actor_id":     42,
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestHandlerRunClose(t *testing.T) {
	repo, handler := newTestHandler(t)
	scope := closingScope()
	repo.entries = []ledger.Entry{
		entry(scope, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), 1, 11000, 11000),
	}

	rr := doJSON(t, handler, http.MethodPost, "/", closeBody())
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp struct {
		Period  string `json:"period"`
		Balance int64  `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "2025-03", resp.Period)
	require.Equal(t, int64(11000), resp.Balance)
}

func TestHandlerRunCloseConflictsWhenAlreadyClosed(t *testing.T) {
	_, handler := newTestHandler(t)

	rr := doJSON(t, handler, http.MethodPost, "/", closeBody())
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doJSON(t, handler, http.MethodPost, "/", closeBody())
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestHandlerRunCloseValidation(t *testing.T) {
	_, handler := newTestHandler(t)

	body := closeBody()
	body["kind"] = "equity"
	rr := doJSON(t, handler, http.MethodPost, "/", body)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	body = closeBody()
	body["period"] = "March 2025"
	rr = doJSON(t, handler, http.MethodPost, "/", body)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerGetSnapshot(t *testing.T) {
	_, handler := newTestHandler(t)

	rr := doJSON(t, handler, http.MethodPost, "/", closeBody())
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doJSON(t, handler, http.MethodGet, "/CP-100/2025-03?kind=payable&biz_unit=HQ", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, handler, http.MethodGet, "/CP-100/2025-04?kind=payable&biz_unit=HQ", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, handler, http.MethodGet, "/CP-100/2025-03", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code, "kind query parameter is required")
}

func TestHandlerListSnapshots(t *testing.T) {
	_, handler := newTestHandler(t)

	rr := doJSON(t, handler, http.MethodPost, "/", closeBody())
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doJSON(t, handler, http.MethodGet, "/CP-100", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Snapshots []snapshotResponse `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Snapshots, 1)
}
