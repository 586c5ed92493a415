package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/hookbox/internal/account"
	"github.com/mattjoyce/hookbox/internal/logstore"
	"github.com/mattjoyce/hookbox/internal/registry"
	"github.com/mattjoyce/hookbox/internal/storage"
)

func TestOrdersScenario(t *testing.T) {
	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "hookbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	acct, _, err := account.NewStore(db).Create(ctx, "A")
	require.NoError(t, err)
	logs := logstore.New(db)
	reg := registry.New(db, logs)

	ep, err := reg.Create(ctx, acct.ID, "orders")
	require.NoError(t, err)

	router := newRouter(New(Config{}, reg, logs, testLogger()))
	post := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhook/orders", strings.NewReader(`{"id":1}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec := post(ep.Token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp SuccessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "orders", resp.Webhook)
	assert.Equal(t, "POST", resp.Method)
	assert.Equal(t, int64(1), resp.LogID)

	stored, err := logs.ListRecent(ctx, ep.ID, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, resp.LogID, stored[0].ID)
	assert.Equal(t, `{"id":1}`, stored[0].Body)

	rec = post("wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	n, err := logs.Count(ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = reg.ToggleActive(ctx, ep.ID, acct.ID)
	require.NoError(t, err)

	rec = post(ep.Token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	n, err = logs.Count(ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestConcurrentDeliveriesToSameEndpoint(t *testing.T) {
	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "hookbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	acct, _, err := account.NewStore(db).Create(ctx, "A")
	require.NoError(t, err)
	logs := logstore.New(db)
	reg := registry.New(db, logs)
	ep, err := reg.Create(ctx, acct.ID, "orders")
	require.NoError(t, err)

	srv := httptest.NewServer(newRouter(New(Config{}, reg, logs, testLogger())))
	t.Cleanup(srv.Close)

	const n = 10
	ids := make(chan int64, n)
	errs := make(chan error, n)
	for range n {
		go func() {
			req, _ := http.NewRequest(http.MethodPost, srv.URL+"/webhook/orders", strings.NewReader(`{}`))
			req.Header.Set("Authorization", "Bearer "+ep.Token)
			res, err := http.DefaultClient.Do(req)
			if err != nil {
				errs <- err
				return
			}
			defer res.Body.Close()
			var resp SuccessResponse
			if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
				errs <- err
				return
			}
			ids <- resp.LogID
		}()
	}

	seen := map[int64]bool{}
	for range n {
		select {
		case id := <-ids:
			assert.False(t, seen[id], "duplicate log id %d", id)
			seen[id] = true
		case err := <-errs:
			t.Fatal(err)
		}
	}

	count, err := logs.Count(ctx, ep.ID)
	require.NoError(t, err)
	assert.Equal(t, n, count)
}
