package export

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/defi-airdrop-feed/internal/model"
	"github.com/yourorg/defi-airdrop-feed/internal/security"
)

type received struct {
	body   []byte
	header http.Header
}

type webhook struct {
	mu     sync.Mutex
	status int
	got    []received
}

func (w *webhook) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.got = append(w.got, received{body: body, header: r.Header.Clone()})
	if w.status != 0 {
		rw.WriteHeader(w.status)
	}
}

func (w *webhook) requests() []received {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]received(nil), w.got...)
}

func records(names ...string) []model.Record {
	out := make([]model.Record, len(names))
	for i, n := range names {
		out[i] = model.Record{Name: n, Status: model.StatusActive}
	}
	return out
}

func TestExporter_FlushSignsBatch(t *testing.T) {
	hook := &webhook{}
	srv := httptest.NewServer(hook)
	defer srv.Close()

	signer, err := security.NewSigner("")
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.URL = srv.URL
	cfg.APIKey = "secret"
	e := New(cfg, signer)

	e.Enqueue(records("LayerZero", "zkSync Era"))
	e.Enqueue(records("Scroll"))
	assert.Equal(t, 2, e.Status().CurrentBatch)

	require.NoError(t, e.Flush(context.Background()))

	reqs := hook.requests()
	require.Len(t, reqs, 1)
	r := reqs[0]
	assert.Equal(t, "Bearer secret", r.header.Get("Authorization"))
	assert.Equal(t, "application/json", r.header.Get("Content-Type"))
	assert.Equal(t, signer.Address(), r.header.Get(SignerHeader))

	ok, err := security.Verify(r.body, r.header.Get(SignatureHeader), signer.Address())
	require.NoError(t, err)
	assert.True(t, ok)

	var b batch
	require.NoError(t, json.Unmarshal(r.body, &b))
	assert.Equal(t, 2, b.Count)
	assert.Equal(t, 2, b.Snapshots[0].Count)
	assert.Equal(t, "Scroll", b.Snapshots[1].Records[0].Name)

	st := e.Status()
	assert.Equal(t, 0, st.CurrentBatch)
	assert.Equal(t, 2, st.Exported)
	assert.NotEmpty(t, st.LastExport)
	assert.Empty(t, st.LastError)
}

func TestExporter_FullBatchExportsImmediately(t *testing.T) {
	hook := &webhook{}
	srv := httptest.NewServer(hook)
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.URL = srv.URL
	cfg.BatchSize = 2
	e := New(cfg, nil)

	e.Enqueue(records("A"))
	assert.Empty(t, hook.requests())
	e.Enqueue(records("B"))

	require.Eventually(t, func() bool { return len(hook.requests()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, hook.requests()[0].header.Get(SignatureHeader), "unsigned without a signer")
}

func TestExporter_ErrorStatus(t *testing.T) {
	hook := &webhook{status: http.StatusBadRequest}
	srv := httptest.NewServer(hook)
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.URL = srv.URL
	e := New(cfg, nil)

	e.Enqueue(records("A"))
	err := e.Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, e.Status().LastError, "400")
	assert.Equal(t, 0, e.Status().Exported)
}

func TestExporter_Disabled(t *testing.T) {
	e := New(DefaultConfig(), nil)
	e.Start()
	e.Enqueue(records("A"))
	assert.Equal(t, 0, e.Status().CurrentBatch)
	assert.False(t, e.Status().Enabled)
	assert.NoError(t, e.Flush(context.Background()))
	e.Stop(context.Background())
}

func TestExporter_StopFlushes(t *testing.T) {
	hook := &webhook{}
	srv := httptest.NewServer(hook)
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.URL = srv.URL
	cfg.Interval = time.Hour
	e := New(cfg, nil)
	e.Start()

	e.Enqueue(records("A"))
	e.Stop(context.Background())

	assert.Len(t, hook.requests(), 1)
}
