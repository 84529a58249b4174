package authority

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"weekplan/internal/model"
	"weekplan/internal/remote"
	"weekplan/internal/repository"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(NewService(repository.NewMemoryStore(), nil))
}

func do(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRoutes_RequireToken(t *testing.T) {
	r := newTestRouter()

	w := do(t, r, http.MethodGet, "/api/v1/beacon", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	var st remote.Status
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if st.OK || st.Error != remote.CodeUnauthorized {
		t.Errorf("body = %s", w.Body.String())
	}

	if w := do(t, r, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Errorf("health status = %d", w.Code)
	}
}

func TestRoutes_WriteAndRead(t *testing.T) {
	r := newTestRouter()
	at := "2026-10-19T08:00:00.000Z"

	req := remote.WriteOverrideRequest{
		Override:   remote.OverrideBody{DateKey: "2026-10-19", Tasks: []model.Task{{ID: "a", Title: "A", DonePercent: 50}}},
		ClientMeta: &model.Meta{UpdatedAt: at, DeviceID: "dev"},
	}
	w := do(t, r, http.MethodPut, "/api/v1/overrides/2026-10-19", "tok", req)
	if w.Code != http.StatusOK {
		t.Fatalf("write status = %d body %s", w.Code, w.Body.String())
	}
	var wr remote.WriteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &wr); err != nil || !wr.OK || !wr.Applied {
		t.Fatalf("write body = %s", w.Body.String())
	}

	w = do(t, r, http.MethodPut, "/api/v1/overrides/2026-10-19", "tok", req)
	_ = json.Unmarshal(w.Body.Bytes(), &wr)
	if wr.Applied || wr.Reason != remote.ReasonStale {
		t.Errorf("replay = %s, want stale", w.Body.String())
	}

	w = do(t, r, http.MethodGet, "/api/v1/overrides/2026-10-19", "tok", nil)
	var or remote.OverrideResponse
	if err := json.Unmarshal(w.Body.Bytes(), &or); err != nil || w.Code != http.StatusOK {
		t.Fatalf("read = %d %s", w.Code, w.Body.String())
	}
	if or.Meta.Version() != at || len(or.Override.Tasks) != 1 || or.Override.Tasks[0].DonePercent != 50 {
		t.Errorf("read body = %s", w.Body.String())
	}

	if w := do(t, r, http.MethodGet, "/api/v1/schedule", "tok", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing schedule status = %d", w.Code)
	}
}

func TestRoutes_BadInput(t *testing.T) {
	r := newTestRouter()

	w := do(t, r, http.MethodPut, "/api/v1/schedule", "tok", remote.WriteScheduleRequest{Schedule: model.Week{}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing clientMeta status = %d", w.Code)
	}

	req := remote.WriteOverrideRequest{
		Override:   remote.OverrideBody{DateKey: "2026-10-20"},
		ClientMeta: &model.Meta{UpdatedAt: "2026-10-19T08:00:00.000Z"},
	}
	if w := do(t, r, http.MethodPut, "/api/v1/overrides/2026-10-19", "tok", req); w.Code != http.StatusBadRequest {
		t.Errorf("mismatched dateKey status = %d", w.Code)
	}
}
