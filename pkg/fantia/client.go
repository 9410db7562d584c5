package fantia

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	errs "fantiadl/pkg/errors"
	"fantiadl/pkg/logger"
	"fantiadl/pkg/ratelimit"
	"fantiadl/pkg/retry"

	"github.com/PuerkitoBio/goquery"
)

// Version is reported in the User-Agent header
const Version = "1.8.0"

// DefaultUserAgent identifies the tool to the platform
var DefaultUserAgent = "fantiadl/" + Version

// Options configures a Client
type Options struct {
	// BaseURL overrides the site root, mainly for tests
	BaseURL string
	// SessionID is installed as the session cookie unless CookieFile is set
	SessionID  string
	CookieFile string
	UserAgent  string
	// Timeout bounds the wait for response headers. Bodies of large
	// transfers are not bounded.
	Timeout time.Duration
	Limiter ratelimit.Limiter
	Retry   *retry.Config
	Logger  logger.Logger
}

// Client talks to the platform over HTTP. Every request is paced by the
// limiter and retried on transient failures.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    *url.URL
	limiter    ratelimit.Limiter
	retry      *retry.Config
	logger     logger.Logger
}

// NewClient creates a platform client with a session-bearing cookie jar
func NewClient(opts Options) (*Client, error) {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	raw := opts.BaseURL
	if raw == "" {
		raw = BaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	jar, err := newJar()
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	switch {
	case opts.CookieFile != "":
		n, err := loadCookieFile(jar, opts.CookieFile)
		if err != nil {
			return nil, err
		}
		log.DebugWithFields("loaded cookie file", map[string]interface{}{
			"path":    opts.CookieFile,
			"cookies": n,
		})
	case opts.SessionID != "":
		setSessionCookie(jar, base, opts.SessionID)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Timeout > 0 {
		transport.ResponseHeaderTimeout = opts.Timeout
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}

	retryCfg := opts.Retry
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	if retryCfg.Logger == nil {
		retryCfg.Logger = log
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Jar:       jar,
		},
		headers: map[string]string{
			"User-Agent": userAgent,
		},
		baseURL: base,
		limiter: limiter,
		retry:   retryCfg,
		logger:  log,
	}, nil
}

// do performs one logical request. Transient failures (network errors and
// retryable statuses) are retried; any other response is returned as is.
func (c *Client) do(ctx context.Context, method, rawURL string, header http.Header) (*http.Response, error) {
	cfg := *c.retry
	cfg.Target = rawURL
	return retry.DoWithResult(ctx, &cfg, func(ctx context.Context) (*http.Response, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
		if err != nil {
			return nil, errs.Wrap(err, errs.ErrorTypeUnknown, "failed to create request")
		}
		for key, value := range c.headers {
			req.Header.Set(key, value)
		}
		for key, values := range header {
			for _, v := range values {
				req.Header.Add(key, v)
			}
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.WithError(err).DebugWithFields("HTTP request failed", map[string]interface{}{
				"method": method,
				"url":    rawURL,
			})
			return nil, errs.Wrap(err, errs.ErrorTypeNetwork, "%s %s", method, rawURL)
		}
		logger.LogRequest(c.logger, method, rawURL, resp.StatusCode, time.Since(start))

		if errs.IsRetryableStatusCode(resp.StatusCode) {
			drain(resp)
			statusErr := errs.FromStatus(resp.StatusCode, rawURL)
			statusErr.RetryAfter = retry.ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
			return nil, statusErr
		}
		return resp, nil
	})
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

func checkStatus(resp *http.Response, rawURL string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return errs.FromStatus(resp.StatusCode, rawURL)
}

// GetBody fetches rawURL and returns the body of a 2xx response
func (c *Client) GetBody(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, rawURL, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, rawURL); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrorTypeNetwork, "failed to read response body")
	}
	return body, nil
}

// GetJSON fetches rawURL and decodes the JSON response into target
func (c *Client) GetJSON(ctx context.Context, rawURL string, header http.Header, target interface{}) error {
	body, err := c.GetBody(ctx, rawURL, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          rawURL,
			"error":        err.Error(),
			"body_preview": preview,
		})
		return errs.Wrap(err, errs.ErrorTypeParsing, "failed to parse JSON from %s", rawURL)
	}
	return nil
}

// GetDocument fetches an HTML page
func (c *Client) GetDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	body, err := c.GetBody(ctx, rawURL, nil)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrorTypeParsing, "failed to parse HTML from %s", rawURL)
	}
	return doc, nil
}

// Stream starts a GET for a file transfer. A 404 is returned as a response
// so the caller can skip the asset; other failures are errors. The caller
// closes the body.
func (c *Client) Stream(ctx context.Context, rawURL string) (*http.Response, error) {
	resp, err := c.do(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return resp, nil
	}
	if err := checkStatus(resp, rawURL); err != nil {
		drain(resp)
		return nil, err
	}
	return resp, nil
}

// Head issues a HEAD request, following redirects. The returned response
// has no body.
func (c *Client) Head(ctx context.Context, rawURL string) (*http.Response, error) {
	resp, err := c.do(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	if err := checkStatus(resp, rawURL); err != nil {
		return nil, err
	}
	return resp, nil
}

// VerifySession checks that the session credential is accepted
func (c *Client) VerifySession(ctx context.Context) error {
	rawURL := c.MeURL()
	resp, err := c.do(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	drain(resp)

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300 || resp.StatusCode == http.StatusNotModified
	if !ok {
		c.logger.WarnWithFields("session rejected", map[string]interface{}{
			"status": resp.StatusCode,
		})
		return errs.New(errs.ErrorTypeAuth, resp.StatusCode, "invalid session, please verify your session cookie")
	}
	return nil
}
