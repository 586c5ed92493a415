package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/hookbox/internal/account"
	"github.com/mattjoyce/hookbox/internal/logstore"
	"github.com/mattjoyce/hookbox/internal/registry"
	"github.com/mattjoyce/hookbox/internal/storage"
	"github.com/mattjoyce/hookbox/internal/webhook"
)

type testEnv struct {
	handler http.Handler
	db      *storage.DB
	reg     *registry.Registry
	logs    *logstore.Store
	keyA    string
	keyB    string
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "hookbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	accounts := account.NewStore(db)
	_, keyA, err := accounts.Create(ctx, "alice")
	require.NoError(t, err)
	_, keyB, err := accounts.Create(ctx, "bob")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	logs := logstore.New(db)
	reg := registry.New(db, logs)
	ingest := webhook.New(webhook.Config{}, reg, logs, logger)
	srv := New(cfg, reg, logs, db, accounts, ingest.Routes(), logger)

	return &testEnv{handler: srv.Handler(), db: db, reg: reg, logs: logs, keyA: keyA, keyB: keyB}
}

func (e *testEnv) request(t *testing.T, method, path, key string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createEndpoint(t *testing.T, key, name string) EndpointResponse {
	t.Helper()
	rec := e.request(t, http.MethodPost, "/endpoints", key, strings.NewReader(`{"name":"`+name+`"}`), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp EndpointResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := env.request(t, http.MethodGet, "/healthz", "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[HealthzResponse](t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Database)

	require.NoError(t, env.db.Close())
	rec = env.request(t, http.MethodGet, "/healthz", "", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", decode[HealthzResponse](t, rec).Database)
}

func TestManagementRequiresAccount(t *testing.T) {
	env := newTestEnv(t, Config{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/endpoints"},
		{http.MethodGet, "/endpoints"},
		{http.MethodGet, "/endpoints/x"},
		{http.MethodGet, "/endpoints/x/logs"},
		{http.MethodPost, "/endpoints/x/toggle"},
		{http.MethodPost, "/endpoints/x/delete"},
	} {
		rec := env.request(t, tc.method, tc.path, "", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)

		rec = env.request(t, tc.method, tc.path, "hbk_not-a-key", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestCreateEndpoint(t *testing.T) {
	env := newTestEnv(t, Config{PublicURL: "https://hooks.example.com"})

	resp := env.createEndpoint(t, env.keyA, "orders")
	assert.Equal(t, "orders", resp.Name)
	assert.True(t, resp.IsActive)
	assert.Len(t, resp.Token, 32)
	assert.Equal(t, "https://hooks.example.com/webhook/orders", resp.URL)
	assert.NotEmpty(t, resp.ID)

	t.Run("form body", func(t *testing.T) {
		form := url.Values{"name": {"billing"}}
		rec := env.request(t, http.MethodPost, "/endpoints", env.keyA, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "billing", decode[EndpointResponse](t, rec).Name)
	})

	tests := []struct {
		name    string
		body    string
		ctype   string
		wantErr string
	}{
		{name: "missing name", body: `{}`, ctype: "application/json", wantErr: "name is required"},
		{name: "blank name", body: `{"name":"   "}`, ctype: "application/json", wantErr: "name is required"},
		{name: "invalid name", body: `{"name":"a/b"}`, ctype: "application/json", wantErr: "invalid endpoint name"},
		{name: "duplicate", body: `{"name":"orders"}`, ctype: "application/json", wantErr: "endpoint name already exists"},
		{name: "bad json", body: `{"name":`, ctype: "application/json", wantErr: "invalid JSON body"},
		{name: "empty form", body: ``, ctype: "application/x-www-form-urlencoded", wantErr: "name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.request(t, http.MethodPost, "/endpoints", env.keyA, strings.NewReader(tt.body), tt.ctype)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantErr, decode[ErrorResponse](t, rec).Error)
		})
	}

	t.Run("same name other account", func(t *testing.T) {
		other := env.createEndpoint(t, env.keyB, "orders")
		assert.NotEqual(t, resp.ID, other.ID)
		assert.NotEqual(t, resp.Token, other.Token)
	})
}

func TestListEndpoints(t *testing.T) {
	env := newTestEnv(t, Config{})

	a := env.createEndpoint(t, env.keyA, "a")
	b := env.createEndpoint(t, env.keyA, "b")
	env.createEndpoint(t, env.keyB, "c")

	rec := env.request(t, http.MethodPost, "/endpoints/"+b.ID+"/toggle", env.keyA, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodGet, "/endpoints", env.keyA, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	active := decode[[]EndpointSummary](t, rec)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)
	assert.Equal(t, "http://example.com/webhook/a", active[0].URL)
	assert.NotContains(t, rec.Body.String(), a.Token)

	rec = env.request(t, http.MethodGet, "/endpoints?all=true", env.keyA, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	all := decode[[]EndpointSummary](t, rec)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Name)
	assert.Equal(t, "b", all[1].Name)
	assert.False(t, all[1].IsActive)
}

func TestIngestURLFromForwardedProto(t *testing.T) {
	env := newTestEnv(t, Config{})

	req := httptest.NewRequest(http.MethodPost, "/endpoints", strings.NewReader(`{"name":"orders"}`))
	req.Host = "hooks.internal:5000"
	req.Header.Set("Authorization", "Bearer "+env.keyA)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "https://hooks.internal:5000/webhook/orders", decode[EndpointResponse](t, rec).URL)
}

func TestGetEndpointAndLogs(t *testing.T) {
	env := newTestEnv(t, Config{})
	ep := env.createEndpoint(t, env.keyA, "orders")

	for i := range 3 {
		body := bytes.NewBufferString(`{"n":` + string(rune('0'+i)) + `}`)
		rec := env.request(t, http.MethodPost, "/webhook/orders", ep.Token, body, "application/json")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := env.request(t, http.MethodGet, "/endpoints/"+ep.ID, env.keyA, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[EndpointDetailResponse](t, rec)
	assert.Equal(t, 3, detail.LogCount)
	assert.Equal(t, ep.Token, detail.Token)

	rec = env.request(t, http.MethodGet, "/endpoints/"+ep.ID+"/logs?limit=2", env.keyA, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	logs := decode[LogsResponse](t, rec)
	assert.Equal(t, 2, logs.Limit)
	require.Len(t, logs.Logs, 2)
	assert.Equal(t, `{"n":2}`, logs.Logs[0].Body)
	assert.Equal(t, `{"n":1}`, logs.Logs[1].Body)
	assert.Equal(t, "POST", logs.Logs[0].Method)

	rec = env.request(t, http.MethodGet, "/endpoints/"+ep.ID+"/logs?limit=9999", env.keyA, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, logstore.MaxLimit, decode[LogsResponse](t, rec).Limit)

	rec = env.request(t, http.MethodGet, "/endpoints/"+ep.ID+"/logs?limit=zero", env.keyA, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Other accounts cannot see it.
	rec = env.request(t, http.MethodGet, "/endpoints/"+ep.ID, env.keyB, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.request(t, http.MethodGet, "/endpoints/"+ep.ID+"/logs", env.keyB, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToggleAndDelete(t *testing.T) {
	env := newTestEnv(t, Config{})
	ep := env.createEndpoint(t, env.keyA, "orders")

	rec := env.request(t, http.MethodPost, "/endpoints/"+ep.ID+"/toggle", env.keyB, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "endpoint not found", decode[ErrorResponse](t, rec).Error)

	rec = env.request(t, http.MethodPost, "/endpoints/"+ep.ID+"/toggle", env.keyA, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[EndpointSummary](t, rec).IsActive)

	rec = env.request(t, http.MethodPost, "/webhook/orders", ep.Token, strings.NewReader("x"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.request(t, http.MethodPost, "/endpoints/"+ep.ID+"/toggle", env.keyA, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[EndpointSummary](t, rec).IsActive)

	rec = env.request(t, http.MethodPost, "/webhook/orders", ep.Token, strings.NewReader("x"), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.request(t, http.MethodPost, "/endpoints/"+ep.ID+"/delete", env.keyB, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.request(t, http.MethodPost, "/endpoints/"+ep.ID+"/delete", env.keyA, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, DeleteResponse{Status: "deleted", ID: ep.ID}, decode[DeleteResponse](t, rec))

	n, err := env.logs.Count(context.Background(), ep.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	rec = env.request(t, http.MethodPost, "/endpoints/"+ep.ID+"/delete", env.keyA, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.request(t, http.MethodPost, "/webhook/orders", ep.Token, strings.NewReader("x"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type failingEndpoints struct{ EndpointService }

func (failingEndpoints) ListForOwner(context.Context, string) ([]registry.Endpoint, error) {
	return nil, errors.New("disk I/O error")
}

func TestStorageErrorsAreNotLeaked(t *testing.T) {
	env := newTestEnv(t, Config{})
	accounts := account.NewStore(env.db)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(Config{}, failingEndpoints{}, env.logs, env.db, accounts, nil, logger)

	req := httptest.NewRequest(http.MethodGet, "/endpoints", nil)
	req.Header.Set("Authorization", "Bearer "+env.keyA)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk")
}
