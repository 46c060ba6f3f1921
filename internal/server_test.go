package internal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/appperms/internal/config"
	"github.com/kazz187/appperms/internal/eventbus"
	"github.com/kazz187/appperms/internal/label"
	"github.com/kazz187/appperms/internal/permgroup"
	"github.com/kazz187/appperms/internal/pkginfo"
	pkgrepo "github.com/kazz187/appperms/internal/pkginfo/repositoryimpl"
	"github.com/kazz187/appperms/internal/tracker"
	"github.com/kazz187/appperms/pkg/storage"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	repo := pkgrepo.NewYAMLRepository(storage.NewMemoryStorage())
	require.NoError(t, repo.Upsert(context.Background(), &pkginfo.PackageInfo{
		PackageName:          "com.example.app",
		RequestedPermissions: []string{"android.permission.CAMERA"},
	}))
	labels := label.NewProvider("en")
	tr := tracker.New(repo, permgroup.NewResolver(permgroup.DefaultCatalog(), labels), labels, eventbus.New())
	env := &config.Env{BaseEnv: config.BaseEnv{APIKey: "secret"}}
	return NewServer(env, tracker.NewServer(tr)).Handler()
}

func TestServer_Routes(t *testing.T) {
	h := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		header map[string]string
		want   int
	}{
		{name: "health without key", method: http.MethodGet, path: "/health", want: http.StatusOK},
		{name: "metrics without key", method: http.MethodGet, path: "/metrics", want: http.StatusOK},
		{name: "api without key", method: http.MethodGet, path: "/api/packages", want: http.StatusUnauthorized},
		{
			name:   "api with wrong key",
			method: http.MethodGet,
			path:   "/api/packages",
			header: map[string]string{"X-API-Key": "wrong"},
			want:   http.StatusUnauthorized,
		},
		{
			name:   "api with key header",
			method: http.MethodGet,
			path:   "/api/packages",
			header: map[string]string{"X-API-Key": "secret"},
			want:   http.StatusOK,
		},
		{
			name:   "api with bearer token",
			method: http.MethodGet,
			path:   "/api/packages/com.example.app/groups",
			header: map[string]string{"Authorization": "Bearer secret"},
			want:   http.StatusOK,
		},
		{
			name:   "unknown api route",
			method: http.MethodGet,
			path:   "/api/nothing",
			header: map[string]string{"X-API-Key": "secret"},
			want:   http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
