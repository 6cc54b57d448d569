package server_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/emrgen/wikinote/internal/model"
	"github.com/emrgen/wikinote/internal/server"
	"github.com/emrgen/wikinote/internal/store"
	"github.com/emrgen/wikinote/internal/tester"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type client struct {
	t       *testing.T
	handler http.Handler
	user    uint64
	tenant  string
}

func (c client) as(user *model.User) client {
	c.user = user.ID
	return c
}

func (c client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(c.t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if c.user != 0 {
		req.Header.Set("X-User-Id", strconv.FormatUint(c.user, 10))
	}
	if c.tenant != "" {
		req.Header.Set(server.HeaderTenant, c.tenant)
	}

	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

type mutation struct {
	Page       model.Page `json:"page"`
	RevisionID uint64     `json:"revision_id"`
	Scheduled  []string   `json:"scheduled"`
}

func setup(t *testing.T) (*tester.Env, client) {
	env := tester.NewApp(t)
	h := server.NewServer(env.App, "wikinote.test", nil).Handler()
	return env, client{t: t, handler: h}
}

func TestServer_Pages(t *testing.T) {
	env, anonymous := setup(t)
	_, user := env.User(t, "writer")
	writer := anonymous.as(user)

	rec := anonymous.do(http.MethodPost, "/v1/pages/docs/intro", map[string]string{"text": "= Intro ="})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = writer.do(http.MethodPost, "/v1/pages/Docs/Intro", map[string]string{"text": "= Intro ="})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created mutation
	decode(t, rec, &created)
	assert.Equal(t, "/docs/intro", created.Page.Path)
	assert.NotZero(t, created.RevisionID)
	assert.Contains(t, created.Scheduled, "search.sync")

	rec = writer.do(http.MethodPost, "/v1/pages/docs/intro", map[string]string{"text": "again"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// inherited access with no parent needs a signed in user
	rec = anonymous.do(http.MethodGet, "/v1/pages/docs/intro", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = writer.do(http.MethodGet, "/v1/pages/docs/intro", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		Path        string `json:"path"`
		Breadcrumbs []struct {
			Name string `json:"name"`
		} `json:"breadcrumbs"`
	}
	decode(t, rec, &view)
	assert.Equal(t, "/docs/intro", view.Path)
	assert.Len(t, view.Breadcrumbs, 2)

	rec = writer.do(http.MethodPut, "/v1/pages/docs/intro", map[string]any{"text": "v2", "prior_revision_id": created.RevisionID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = writer.do(http.MethodPut, "/v1/pages/docs/intro", map[string]any{"text": "v3", "prior_revision_id": created.RevisionID + 100})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	rec = writer.do(http.MethodPut, "/v1/pages/docs/intro", map[string]any{"text": "v3", "markup": "TEX"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = writer.do(http.MethodPut, "/v1/access/docs/intro", map[string]string{"policy": "public"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = anonymous.do(http.MethodGet, "/v1/pages/docs/intro", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = writer.do(http.MethodGet, "/v1/history/docs/intro", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []model.Revision
	decode(t, rec, &history)
	assert.Len(t, history, 1)

	rec = writer.do(http.MethodGet, "/v1/revisions/"+strconv.FormatUint(created.RevisionID, 10)+"/docs/intro", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rev struct {
		Text string `json:"text"`
	}
	decode(t, rec, &rev)
	assert.Equal(t, "v2", rev.Text)

	rec = writer.do(http.MethodGet, "/v1/revisions/abc/docs/intro", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = writer.do(http.MethodPost, "/v1/move", map[string]any{"from": "/docs", "to": "/guide", "cluster": true})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = writer.do(http.MethodPost, "/v1/move", map[string]any{"from": "/docs/intro"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = writer.do(http.MethodPost, "/v1/move", map[string]any{"from": "/docs/intro", "to": "/intro"})
	require.Equal(t, http.StatusOK, rec.Code)

	env.Drain(t)

	rec = anonymous.do(http.MethodGet, "/v1/search?q=intro", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var found []model.Page
	decode(t, rec, &found)
	require.Len(t, found, 1)
	assert.Equal(t, "/intro", found[0].Path)

	rec = writer.do(http.MethodDelete, "/v1/pages/intro", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = writer.do(http.MethodGet, "/v1/pages/intro", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Files(t *testing.T) {
	env, anonymous := setup(t)
	_, user := env.User(t, "writer")
	writer := anonymous.as(user)

	rec := writer.do(http.MethodPost, "/v1/pages/album", map[string]string{})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = writer.do(http.MethodPost, "/v1/files/album?name=note.txt", []byte("hello"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = writer.do(http.MethodGet, "/v1/files/album", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var files []model.File
	decode(t, rec, &files)
	require.Len(t, files, 1)
	assert.Equal(t, int64(5), files[0].Size)

	rec = writer.do(http.MethodGet, "/v1/file/album?name=note.txt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "note.txt")

	rec = writer.do(http.MethodDelete, "/v1/files/album?name=note.txt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = writer.do(http.MethodGet, "/v1/file/album?name=note.txt", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Subscriptions(t *testing.T) {
	env, anonymous := setup(t)
	_, user := env.User(t, "reader")
	reader := anonymous.as(user)

	rec := reader.do(http.MethodPost, "/v1/pages/watched", map[string]string{})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created mutation
	decode(t, rec, &created)

	rec = anonymous.do(http.MethodPut, "/v1/subscriptions/watched", map[string]string{"kind": "page"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = reader.do(http.MethodPut, "/v1/subscriptions/watched", map[string]string{"kind": "weekly"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = reader.do(http.MethodPut, "/v1/subscriptions/watched", map[string]string{"kind": "cluster"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = reader.do(http.MethodGet, "/v1/subscriptions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sub struct {
		Pages    []uint64 `json:"pages"`
		Clusters []uint64 `json:"clusters"`
	}
	decode(t, rec, &sub)
	assert.Empty(t, sub.Pages)
	assert.Equal(t, []uint64{created.Page.ID}, sub.Clusters)
}

func TestServer_Users(t *testing.T) {
	env, anonymous := setup(t)

	now := time.Now()
	admin := &model.User{Name: "root", Email: "root@wikinote.test", Admin: true, ApprovedAt: &now}
	require.NoError(t, env.Store.CreateUser(context.Background(), admin))

	rec := anonymous.do(http.MethodPost, "/v1/users", map[string]string{"name": "Ada", "email": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = anonymous.do(http.MethodPost, "/v1/users", map[string]string{"name": "Ada", "email": "ada@wikinote.test"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var ada model.User
	decode(t, rec, &ada)

	rec = anonymous.as(&ada).do(http.MethodPost, "/v1/pages/ada", map[string]string{})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = anonymous.as(&ada).do(http.MethodPost, "/v1/users/"+strconv.FormatUint(ada.ID, 10)+"/approve", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = anonymous.as(admin).do(http.MethodGet, "/v1/users?approved=false", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []model.User
	decode(t, rec, &pending)
	require.Len(t, pending, 1)

	rec = anonymous.as(admin).do(http.MethodPost, "/v1/users/"+strconv.FormatUint(ada.ID, 10)+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = anonymous.as(&ada).do(http.MethodPost, "/v1/pages/ada", map[string]string{})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = anonymous.as(admin).do(http.MethodPost, "/v1/reindex", nil)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestTenant(t *testing.T) {
	var got string
	h := server.Tenant("wikinote.test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = store.Tenant(r.Context())
	}))

	tests := []struct {
		name   string
		host   string
		header string
		want   string
	}{
		{name: "subdomain", host: "acme.wikinote.test", want: "acme"},
		{name: "subdomain with port", host: "acme.wikinote.test:8030", want: "acme"},
		{name: "header", host: "localhost:8030", header: "beta", want: "beta"},
		{name: "default", host: "localhost", want: store.DefaultTenant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/pages/", nil)
			req.Host = tt.host
			if tt.header != "" {
				req.Header.Set(server.HeaderTenant, tt.header)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}
