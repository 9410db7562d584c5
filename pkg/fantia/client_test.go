package fantia

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	errs "fantiadl/pkg/errors"
	"fantiadl/pkg/logger"
	"fantiadl/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() *retry.Config {
	return &retry.Config{
		MaxAttempts: 3,
		Backoff:     &retry.ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     retry.DefaultRetryIf,
		Logger:      logger.NewNopLogger(),
	}
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{
		BaseURL:   srv.URL,
		SessionID: "secret-session",
		Retry:     fastRetry(),
		Logger:    logger.NewTestLogger(),
	})
	require.NoError(t, err)
	return c
}

func TestVerifySession(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"ok", http.StatusOK, false},
		{"not modified", http.StatusNotModified, false},
		{"unauthorized", http.StatusUnauthorized, true},
		{"not found", http.StatusNotFound, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/me", r.URL.Path)
				w.WriteHeader(tt.status)
			}))

			err := c.VerifySession(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errs.IsType(err, errs.ErrorTypeAuth))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRequestsCarrySessionAndUserAgent(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if assert.NoError(t, err) {
			assert.Equal(t, "secret-session", cookie.Value)
		}
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Write([]byte(`{"fanclub_ids":[3,1,2]}`))
	}))

	ids, err := c.FollowedFanclubs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, ids)
}

func TestTransientStatusIsRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"fanclub_ids":[]}`))
	}))

	_, err := c.FollowedFanclubs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRetriesAreBounded(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := c.FollowedFanclubs(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrMaxAttempts)
	assert.True(t, errs.IsType(err, errs.ErrorTypeRateLimit))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := c.FollowedFanclubs(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeAuth))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestStreamReturnsNotFoundResponse(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())

	resp, err := c.Stream(context.Background(), c.endpoint("/missing.jpg", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFetchPost(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/posts/42", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><meta name="csrf-token" content="tok123"></head><body></body></html>`)
	})
	mux.HandleFunc("/api/v1/posts/42", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok123", r.Header.Get("X-CSRF-Token"))
		assert.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		fmt.Fprint(w, `{"post":{
			"id":42,"title":"Summer","comment":null,
			"posted_at":"Thu, 01 Jun 2023 12:00:00 +0900",
			"converted_at":"2023-06-02T08:30:00.000+09:00",
			"fanclub":{"id":7,"creator_name":"Artist"},
			"thumb":{"original":"https://cc.fantia.jp/thumb.png"},
			"post_contents":[{"id":100,"title":null,"category":"photo_gallery","visible_status":"visible",
				"post_content_photos":[{"id":1,"url":{"original":"https://cc.fantia.jp/1.jpg"}}],
				"parent_post":{"title":"Summer","url":"/posts/42"},"foreign_plan_price":500,"currency_code":"JPY"}]
		}}`)
	})
	c := newTestClient(t, mux)

	post, err := c.FetchPost(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), post.ID)
	assert.Equal(t, "Artist", post.Fanclub.CreatorName)
	assert.Equal(t, int64(7), post.Fanclub.ID)
	require.NotNil(t, post.Thumb)
	assert.Equal(t, time.Date(2023, 6, 1, 3, 0, 0, 0, time.UTC), post.PostedAt.UTC())
	assert.Equal(t, time.Date(2023, 6, 1, 23, 30, 0, 0, time.UTC), post.ConvertedAt.UTC())
	require.Len(t, post.Contents, 1)
	assert.True(t, post.Contents[0].Visible())
	assert.Contains(t, string(post.Raw), `"creator_name":"Artist"`)
}

func TestFetchPostWithoutCSRFToken(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head></head></html>`)
	}))

	_, err := c.FetchPost(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, errs.IsType(err, errs.ErrorTypeParsing))
}

func TestTimelinePage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/me/timelines/posts", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "24", r.URL.Query().Get("per"))
		fmt.Fprint(w, `{"posts":[{"id":5},{"id":4}],"has_next":true}`)
	}))

	ids, hasNext, err := c.TimelinePage(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 4}, ids)
	assert.True(t, hasNext)
}

func TestFetchFanclub(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/fanclubs/9", r.URL.Path)
		fmt.Fprint(w, `{"fanclub":{"id":9,"creator_name":"Artist","cover":{"original":"https://c.fantia.jp/cover.jpg"},"icon":null,"background":"https://c.fantia.jp/bg.png"}}`)
	}))

	fc, err := c.FetchFanclub(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, "Artist", fc.CreatorName)
	require.NotNil(t, fc.Cover)
	assert.Nil(t, fc.Icon)
	assert.Equal(t, "https://c.fantia.jp/bg.png", fc.BackgroundURL())
}

func TestCookieFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookieName)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "from-file", cookie.Value)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "cookies.txt")
	content := "# Netscape HTTP Cookie File\n" +
		"#HttpOnly_127.0.0.1\tFALSE\t/\tFALSE\t0\t_session_id\tfrom-file\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	c, err := NewClient(Options{
		BaseURL:    srv.URL,
		CookieFile: path,
		Retry:      fastRetry(),
		Logger:     logger.NewNopLogger(),
	})
	require.NoError(t, err)
	assert.NoError(t, c.VerifySession(context.Background()))
}

func TestMalformedCookieFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(path, []byte("fantia.jp\tTRUE\t/\n"), 0600))

	_, err := NewClient(Options{CookieFile: path, Logger: logger.NewNopLogger()})
	assert.Error(t, err)
}

func TestContextCancellation(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.VerifySession(ctx)
	require.Error(t, err)
	assert.True(t, errs.IsInterrupt(err))
}
