package remote_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"weekplan/internal/authority"
	"weekplan/internal/model"
	"weekplan/internal/remote"
	"weekplan/internal/repository"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := httptest.NewServer(authority.NewRouter(authority.NewService(repository.NewMemoryStore(), nil)))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_RoundTrip(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	c := remote.NewClient(srv.URL+"/", "tok", time.Second)

	b, err := c.Beacon(ctx)
	if err != nil || b.Watermark() != "" {
		t.Fatalf("Beacon = %+v, %v", b, err)
	}

	at := "2026-10-19T08:00:00.000Z"
	s := model.Schedule{
		Week: model.Week{model.Friday: {{ID: "f1", Title: "Chess", Minutes: 45}}},
		Meta: &model.Meta{CreatedAt: at, UpdatedAt: at, DeviceID: "dev"},
	}
	res, err := c.WriteSchedule(ctx, s)
	if err != nil || !res.Applied {
		t.Fatalf("WriteSchedule = %+v, %v", res, err)
	}

	got, err := c.ReadSchedule(ctx)
	if err != nil {
		t.Fatalf("ReadSchedule: %v", err)
	}
	if got.Meta.Version() != at || got.Tasks(model.Friday)[0].Title != "Chess" || len(got.Week) != 7 {
		t.Errorf("ReadSchedule = %+v", got)
	}

	res, err = c.WriteSchedule(ctx, s)
	if err != nil || !res.Stale() {
		t.Errorf("replayed write = %+v, %v", res, err)
	}

	v, err := c.ListVersions(ctx)
	if err != nil || v.ScheduleVersion() != at || v.Overrides == nil {
		t.Errorf("ListVersions = %+v, %v", v, err)
	}

	if _, err := c.ReadOverride(ctx, "2026-10-19"); !remote.HasCode(err, remote.CodeNotFound) {
		t.Errorf("ReadOverride missing: %v", err)
	}
}

func TestClient_Unauthorized(t *testing.T) {
	srv := newServer(t)
	c := remote.NewClient(srv.URL, "", time.Second)
	if _, err := c.Beacon(context.Background()); !remote.HasCode(err, remote.CodeUnauthorized) {
		t.Errorf("err = %v, want unauthorized", err)
	}
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := remote.NewClient(url, "tok", time.Second)
	if _, err := c.Beacon(context.Background()); !errors.Is(err, remote.ErrUnreachable) {
		t.Errorf("err = %v, want ErrUnreachable", err)
	}
}
