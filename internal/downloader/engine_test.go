package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	errs "fantiadl/pkg/errors"
	"fantiadl/pkg/fantia"
	"fantiadl/pkg/ledger"
	"fantiadl/pkg/logger"
	"fantiadl/pkg/retry"
	"fantiadl/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProgress struct {
	started  int
	updates  []int64
	finished int
}

func (p *recordingProgress) Start(string, int64)      { p.started++ }
func (p *recordingProgress) Update(done, total int64) { p.updates = append(p.updates, done) }
func (p *recordingProgress) Finish()                  { p.finished++ }

type lines []string

func (l *lines) Printf(format string, args ...interface{}) {
	*l = append(*l, fmt.Sprintf(format, args...))
}

type assetServer struct {
	*httptest.Server
	gets int32
}

func newAssetServer(t *testing.T) *assetServer {
	t.Helper()
	s := &assetServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/img/photo.jpg", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			atomic.AddInt32(&s.gets, 1)
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Last-Modified", "Wed, 21 Oct 2015 07:28:00 GMT")
		w.Write([]byte("0123456789"))
	})
	mux.HandleFunc("/posts/1/download/2", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.gets, 1)
		http.Redirect(w, r, "/files/real%20name.zip?token=abc", http.StatusFound)
	})
	mux.HandleFunc("/posts/1/download/3", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/files/banned.zip", http.StatusFound)
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("zipdata"))
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *assetServer) client(t *testing.T) *fantia.Client {
	t.Helper()
	c, err := fantia.NewClient(fantia.Options{
		BaseURL: s.URL,
		Retry: &retry.Config{
			MaxAttempts: 1,
			Backoff:     &retry.ConstantBackoff{},
		},
		Logger: logger.NewNopLogger(),
	})
	require.NoError(t, err)
	return c
}

func openLedger(t *testing.T) ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(context.Background(), filepath.Join(t.TempDir(), "db.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestFetchDownloads(t *testing.T) {
	srv := newAssetServer(t)
	led := openLedger(t)
	progress := &recordingProgress{}
	e := NewEngine(Options{
		Transport: srv.client(t),
		Ledger:    led,
		Progress:  progress,
		ChunkSize: 4,
		Logger:    logger.NewNopLogger(),
	})
	dir := t.TempDir()

	outcome, path, err := e.Fetch(context.Background(), srv.URL+"/img/photo.jpg?w=100", filepath.Join(dir, "0.jpg"), false)
	require.NoError(t, err)
	assert.Equal(t, Downloaded, outcome)
	assert.Equal(t, filepath.Join(dir, "0.jpg"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
	assert.NoFileExists(t, path+".part")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2015, 10, 21, 7, 28, 0, 0, time.UTC), info.ModTime().UTC())

	assert.Equal(t, 1, progress.started)
	assert.Equal(t, 1, progress.finished)
	require.GreaterOrEqual(t, len(progress.updates), 3)
	assert.Equal(t, int64(10), progress.updates[len(progress.updates)-1])

	ok, err := led.IsURLDownloaded(context.Background(), srv.URL+"/img/photo.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFetchSkipsRecordedURL(t *testing.T) {
	srv := newAssetServer(t)
	led := openLedger(t)
	e := NewEngine(Options{Transport: srv.client(t), Ledger: led, Logger: logger.NewNopLogger()})
	dir := t.TempDir()
	ctx := context.Background()

	_, _, err := e.Fetch(ctx, srv.URL+"/img/photo.jpg", filepath.Join(dir, "0.jpg"), false)
	require.NoError(t, err)

	outcome, _, err := e.Fetch(ctx, srv.URL+"/img/photo.jpg", filepath.Join(dir, "0.jpg"), false)
	require.NoError(t, err)
	assert.Equal(t, SkippedRecorded, outcome)
	assert.Equal(t, int32(1), atomic.LoadInt32(&srv.gets))
}

func TestFetchSkipsExistingFileOfSameSize(t *testing.T) {
	srv := newAssetServer(t)
	led := openLedger(t)
	var out lines
	e := NewEngine(Options{Transport: srv.client(t), Ledger: led, Output: &out, Logger: logger.NewNopLogger()})
	dir := t.TempDir()
	target := filepath.Join(dir, "0.jpg")
	require.NoError(t, os.WriteFile(target, []byte("abcdefghij"), 0644))

	outcome, _, err := e.Fetch(context.Background(), srv.URL+"/img/photo.jpg", target, false)
	require.NoError(t, err)
	assert.Equal(t, SkippedExisting, outcome)

	data, _ := os.ReadFile(target)
	assert.Equal(t, "abcdefghij", string(data))
	assert.Contains(t, out, fmt.Sprintf("File found (skipping): %s\n", target))

	ok, err := led.IsURLDownloaded(context.Background(), srv.URL+"/img/photo.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFetchReplacesFileOfDifferentSize(t *testing.T) {
	srv := newAssetServer(t)
	e := NewEngine(Options{Transport: srv.client(t), Logger: logger.NewNopLogger()})
	target := filepath.Join(t.TempDir(), "0.jpg")
	require.NoError(t, os.WriteFile(target, []byte("short"), 0644))

	outcome, _, err := e.Fetch(context.Background(), srv.URL+"/img/photo.jpg", target, false)
	require.NoError(t, err)
	assert.Equal(t, Downloaded, outcome)
	data, _ := os.ReadFile(target)
	assert.Equal(t, "0123456789", string(data))
}

func TestFetchExclusions(t *testing.T) {
	srv := newAssetServer(t)
	led := openLedger(t)
	dir := t.TempDir()
	ctx := context.Background()

	tests := []struct {
		name     string
		excluded string
		url      string
		target   string
		server   bool
	}{
		{"server name", "photo.jpg", "/img/photo.jpg", "0.jpg", false},
		{"caller name", "0.jpg", "/img/photo.jpg", "0.jpg", false},
		{"name after redirect", "banned.zip", "/posts/1/download/3", "file.zip", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out lines
			e := NewEngine(Options{
				Transport:  srv.client(t),
				Ledger:     led,
				Exclusions: storage.NewExclusions(tt.excluded),
				Output:     &out,
				Logger:     logger.NewNopLogger(),
			})

			// every run, not just the first
			for i := 0; i < 2; i++ {
				outcome, _, err := e.Fetch(ctx, srv.URL+tt.url, filepath.Join(dir, tt.target), tt.server)
				require.NoError(t, err)
				assert.Equal(t, SkippedExcluded, outcome)
			}
			assert.NoFileExists(t, filepath.Join(dir, tt.target))
			assert.NoFileExists(t, filepath.Join(dir, tt.excluded))
			assert.Contains(t, out[0], "exclusion list")
		})
	}

	ok, err := led.IsURLDownloaded(ctx, srv.URL+"/img/photo.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(0), atomic.LoadInt32(&srv.gets))
}

func TestFetchFollowsRedirectToServerName(t *testing.T) {
	srv := newAssetServer(t)
	led := openLedger(t)
	e := NewEngine(Options{Transport: srv.client(t), Ledger: led, Logger: logger.NewNopLogger()})
	dir := t.TempDir()

	outcome, path, err := e.Fetch(context.Background(), srv.URL+"/posts/1/download/2", filepath.Join(dir, "pack.zip"), true)
	require.NoError(t, err)
	assert.Equal(t, Downloaded, outcome)
	assert.Equal(t, filepath.Join(dir, "real name.zip"), path)
	assert.FileExists(t, path)

	ok, err := led.IsURLDownloaded(context.Background(), srv.URL+"/files/real name.zip")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFetchNotFound(t *testing.T) {
	srv := newAssetServer(t)
	e := NewEngine(Options{Transport: srv.client(t), Logger: logger.NewNopLogger()})
	dir := t.TempDir()

	outcome, _, err := e.Fetch(context.Background(), srv.URL+"/img/missing.jpg", filepath.Join(dir, "0.jpg"), false)
	require.NoError(t, err)
	assert.Equal(t, SkippedNotFound, outcome)
	assert.NoFileExists(t, filepath.Join(dir, "0.jpg"))
}

type shortTransport struct {
	declared int64
	body     string
}

func (s shortTransport) Stream(_ context.Context, rawURL string) (*http.Response, error) {
	u, _ := url.Parse(rawURL)
	return &http.Response{
		StatusCode:    http.StatusOK,
		ContentLength: s.declared,
		Header:        http.Header{},
		Body:          io.NopCloser(bytes.NewBufferString(s.body)),
		Request:       &http.Request{URL: u},
	}, nil
}

func (s shortTransport) Head(context.Context, string) (*http.Response, error) {
	return nil, errs.New(errs.ErrorTypeNotFound, 404, "no head")
}

func TestFetchSizeMismatchIsIntegrityError(t *testing.T) {
	led := openLedger(t)
	e := NewEngine(Options{
		Transport: shortTransport{declared: 10, body: "12345"},
		Ledger:    led,
		Logger:    logger.NewNopLogger(),
	})
	dir := t.TempDir()
	target := filepath.Join(dir, "0.jpg")
	require.NoError(t, os.WriteFile(target, []byte("previous"), 0644))

	_, _, err := e.Fetch(context.Background(), "https://cc.fantia.jp/x/0.jpg", target, false)
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeIntegrity))

	data, _ := os.ReadFile(target)
	assert.Equal(t, "previous", string(data))
	assert.NoFileExists(t, target+".part")

	ok, err := led.IsURLDownloaded(context.Background(), "https://cc.fantia.jp/x/0.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFetchUnknownLengthIsAccepted(t *testing.T) {
	e := NewEngine(Options{
		Transport: shortTransport{declared: -1, body: "stream"},
		Logger:    logger.NewNopLogger(),
	})
	target := filepath.Join(t.TempDir(), "0.bin")

	outcome, _, err := e.Fetch(context.Background(), "https://cc.fantia.jp/x/0.bin", target, false)
	require.NoError(t, err)
	assert.Equal(t, Downloaded, outcome)
	data, _ := os.ReadFile(target)
	assert.Equal(t, "stream", string(data))
}

func TestProbeExtension(t *testing.T) {
	srv := newAssetServer(t)
	e := NewEngine(Options{Transport: srv.client(t), Logger: logger.NewNopLogger()})

	ext, err := e.ProbeExtension(context.Background(), srv.URL+"/img/photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, ".jpg", ext)
	assert.Equal(t, int32(0), atomic.LoadInt32(&srv.gets))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "downloaded", Downloaded.String())
	assert.Equal(t, "skipped_not_found", SkippedNotFound.String())
}

type failingHead struct {
	shortTransport
	err error
}

func (f failingHead) Head(context.Context, string) (*http.Response, error) {
	return nil, f.err
}

func TestExtensionFallsBackOnErrorStatus(t *testing.T) {
	e := NewEngine(Options{
		Transport: failingHead{err: errs.FromStatus(http.StatusNotFound, "https://cc.fantia.jp/x/0.png")},
		Logger:    logger.NewNopLogger(),
	})

	ext, err := e.ProbeExtension(context.Background(), "https://cc.fantia.jp/x/0.png?Expires=1")
	require.NoError(t, err)
	assert.Equal(t, ".png", ext)
}

func TestExtensionLookupPropagatesNetworkErrors(t *testing.T) {
	e := NewEngine(Options{
		Transport: failingHead{err: errs.Wrap(io.ErrUnexpectedEOF, errs.ErrorTypeNetwork, "HEAD")},
		Logger:    logger.NewNopLogger(),
	})

	_, err := e.ProbeExtension(context.Background(), "https://cc.fantia.jp/x/0.png")
	assert.True(t, errs.IsType(err, errs.ErrorTypeNetwork))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e = NewEngine(Options{Transport: failingHead{err: ctx.Err()}, Logger: logger.NewNopLogger()})
	_, err = e.ProbeExtension(ctx, "https://cc.fantia.jp/x/0.png")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchKeepsCallerNameWithoutServerName(t *testing.T) {
	e := NewEngine(Options{
		Transport: shortTransport{declared: 4, body: "data"},
		Logger:    logger.NewNopLogger(),
	})
	dir := t.TempDir()
	target := filepath.Join(dir, "attachment")

	outcome, path, err := e.Fetch(context.Background(), "https://cc.fantia.jp/uploads/post/file/1/", target, true)
	require.NoError(t, err)
	assert.Equal(t, Downloaded, outcome)
	assert.Equal(t, target, path)
	assert.DirExists(t, dir)
	data, _ := os.ReadFile(target)
	assert.Equal(t, "data", string(data))
}
