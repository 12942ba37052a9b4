package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vipConfig "github.com/samiecode/babylon/pkg/config"
)

func TestApp_StartsWithSqlite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	yaml := "database:\n  driver: sqlite\n  dsn: \"file::memory:?cache=shared\"\n  max_open: 1\n  log_level: silent\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "savings-app-test.yaml"), []byte(yaml), 0o644))
	t.Chdir(dir)

	a, err := New("savings-app-test", vipConfig.WithPaths(dir))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cleanUp, err := a.StartService(ctx)
	require.NoError(t, err)
	defer cleanUp()

	srv := a.StartHttp()
	assert.Equal(t, ":8080", srv.Addr)

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/wallets", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestApp_FailedStartReleasesDatabase(t *testing.T) {
	dir := t.TempDir()
	yaml := "database:\n  driver: sqlite\n  dsn: \"file::memory:\"\n  log_level: silent\nredis:\n  addr: \"127.0.0.1:1\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "savings-app-fail.yaml"), []byte(yaml), 0o644))
	t.Chdir(dir)

	a, err := New("savings-app-fail", vipConfig.WithPaths(dir))
	require.NoError(t, err)

	cleanUp, err := a.StartService(context.Background())
	require.Error(t, err)
	assert.Nil(t, cleanUp)
	assert.Contains(t, err.Error(), "redis")

	require.NotNil(t, a.db)
	sqlDB, err := a.db.DB()
	require.NoError(t, err)
	assert.Error(t, sqlDB.Ping(), "database handle must be closed")
	assert.Empty(t, a.closers)
}
