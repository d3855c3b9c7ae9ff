package catalogsync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/integrations-dispatch/config"
	"github.com/target/integrations-dispatch/internal/domain/model"
)

func TestHTTPSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`[{"name":"okta","enabled":true}]`))
	}))
	defer srv.Close()

	body, err := (&HTTPSource{URL: srv.URL + "/catalog.json"}).Fetch(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"okta","enabled":true}]`, string(body))

	_, err = (&HTTPSource{URL: srv.URL + "/missing"}).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFileSource_Fetch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("integrations: []\n"), 0o600))

	body, err := (&FileSource{Path: path}).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "integrations: []\n", string(body))

	_, err = (&FileSource{Path: filepath.Join(t.TempDir(), "nope.yaml")}).Fetch(context.Background())
	assert.Error(t, err)
}

func TestNewSource(t *testing.T) {
	src, err := NewSource(config.CatalogConfig{URL: "https://catalog.example/catalog.json", Path: "/etc/catalog.yaml"})
	require.NoError(t, err)
	assert.IsType(t, &HTTPSource{}, src, "URL wins over path")

	src, err = NewSource(config.CatalogConfig{Path: "/etc/catalog.yaml"})
	require.NoError(t, err)
	assert.IsType(t, &FileSource{}, src)

	_, err = NewSource(config.CatalogConfig{})
	assert.Error(t, err)
}

type countingSyncer struct {
	mu     sync.Mutex
	calls  int
	cancel context.CancelFunc
}

func (c *countingSyncer) Sync(context.Context) (*model.SyncResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.calls == 2 {
		c.cancel()
	}
	return &model.SyncResult{Created: []string{"okta"}}, nil
}

func TestRunner_SyncsOnStartAndOnTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &countingSyncer{cancel: cancel}
	r, err := NewRunner(RunnerOptions{Syncer: s, Interval: 10 * time.Millisecond})
	require.NoError(t, err)

	require.NoError(t, r.Run(ctx))
	assert.Equal(t, 2, s.calls)
}
