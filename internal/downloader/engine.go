package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	errs "fantiadl/pkg/errors"
	"fantiadl/pkg/ledger"
	"fantiadl/pkg/logger"
	"fantiadl/pkg/pathutil"
	"fantiadl/pkg/storage"
)

// DefaultChunkSize is the read size of a transfer
const DefaultChunkSize = 5 * 1024 * 1024

// Outcome is the result of a single Fetch
type Outcome int

const (
	Downloaded Outcome = iota
	SkippedExisting
	SkippedRecorded
	SkippedExcluded
	SkippedNotFound
)

func (o Outcome) String() string {
	switch o {
	case Downloaded:
		return "downloaded"
	case SkippedExisting:
		return "skipped_existing"
	case SkippedRecorded:
		return "skipped_recorded"
	case SkippedExcluded:
		return "skipped_excluded"
	case SkippedNotFound:
		return "skipped_not_found"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Transport performs the HTTP side of a transfer
type Transport interface {
	// Stream returns the response of a GET; a 404 is a response, not an error
	Stream(ctx context.Context, rawURL string) (*http.Response, error)
	Head(ctx context.Context, rawURL string) (*http.Response, error)
}

// ProgressReporter receives transfer progress. total is -1 when unknown.
type ProgressReporter interface {
	Start(path string, total int64)
	Update(done, total int64)
	Finish()
}

// Output receives one human readable line per decision
type Output interface {
	Printf(format string, args ...interface{})
}

// Options configures an Engine
type Options struct {
	Transport  Transport
	Ledger     ledger.Ledger
	Exclusions storage.Exclusions
	Progress   ProgressReporter
	Output     Output
	ChunkSize  int
	Logger     logger.Logger
}

// Engine retrieves single files into the archive. It is not safe for
// concurrent use.
type Engine struct {
	transport  Transport
	ledger     ledger.Ledger
	exclusions storage.Exclusions
	progress   ProgressReporter
	out        Output
	chunkSize  int
	logger     logger.Logger
	now        func() time.Time
}

// NewEngine creates a download engine
func NewEngine(opts Options) *Engine {
	e := &Engine{
		transport:  opts.Transport,
		ledger:     opts.Ledger,
		exclusions: opts.Exclusions,
		progress:   opts.Progress,
		out:        opts.Output,
		chunkSize:  opts.ChunkSize,
		logger:     opts.Logger,
		now:        time.Now,
	}
	if e.ledger == nil {
		e.ledger = ledger.Nop{}
	}
	if e.progress == nil {
		e.progress = nopProgress{}
	}
	if e.out == nil {
		e.out = nopOutput{}
	}
	if e.chunkSize <= 0 {
		e.chunkSize = DefaultChunkSize
	}
	if e.logger == nil {
		e.logger = logger.GetLogger()
	}
	return e
}

// Fetch downloads rawURL to target and returns the outcome and the final
// path. With useServerName the file is named after the server side filename
// instead of target's basename.
func (e *Engine) Fetch(ctx context.Context, rawURL, target string, useServerName bool) (Outcome, string, error) {
	urlPath, serverName := pathutil.ServerFilename(rawURL)
	name := filepath.Base(target)
	if useServerName {
		target = withServerName(target, serverName)
	}

	if e.exclusions.Contains(serverName) {
		e.out.Printf("Server filename in exclusion list (skipping): %s\n", serverName)
		return e.done(rawURL, target, SkippedExcluded, 0)
	}
	if e.exclusions.Contains(name) {
		e.out.Printf("Filename in exclusion list (skipping): %s\n", name)
		return e.done(rawURL, target, SkippedExcluded, 0)
	}

	recorded, err := e.ledger.IsURLDownloaded(ctx, urlPath)
	if err != nil {
		return 0, target, err
	}
	if recorded {
		e.out.Printf("URL already downloaded. Skipping...\n")
		return e.done(rawURL, target, SkippedRecorded, 0)
	}

	resp, err := e.transport.Stream(ctx, rawURL)
	if err != nil {
		logger.LogTransfer(e.logger, rawURL, target, "", 0, err)
		return 0, target, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		e.out.Printf("Download URL returned 404. Skipping...\n")
		return e.done(rawURL, target, SkippedNotFound, 0)
	}

	// attachments redirect to their storage host, which carries the real name
	if finalURL := resp.Request.URL.String(); redirected(rawURL, finalURL) {
		urlPath, serverName = pathutil.ServerFilename(finalURL)
		if e.exclusions.Contains(serverName) {
			e.out.Printf("Server filename in exclusion list (skipping): %s\n", serverName)
			return e.done(rawURL, target, SkippedExcluded, 0)
		}
		if useServerName {
			target = withServerName(target, serverName)
		}
	}

	size := resp.ContentLength
	if size >= 0 {
		if info, err := os.Stat(target); err == nil && info.Mode().IsRegular() && info.Size() == size {
			e.out.Printf("File found (skipping): %s\n", target)
			if err := e.ledger.RecordURL(ctx, urlPath); err != nil {
				return 0, target, err
			}
			return e.done(rawURL, target, SkippedExisting, 0)
		}
	}

	e.out.Printf("File: %s\n", target)
	written, err := e.writePart(ctx, resp.Body, target, size)
	if err != nil {
		logger.LogTransfer(e.logger, rawURL, target, "", written, err)
		return 0, target, err
	}

	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		os.Remove(target + ".part")
		return 0, target, fmt.Errorf("failed to replace %s: %w", target, err)
	}
	if err := os.Rename(target+".part", target); err != nil {
		os.Remove(target + ".part")
		return 0, target, fmt.Errorf("failed to move download into place: %w", err)
	}

	if err := e.ledger.RecordURL(ctx, urlPath); err != nil {
		return 0, target, err
	}

	if modified, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		if err := os.Chtimes(target, e.now(), modified); err != nil {
			e.logger.WithError(err).Debug("failed to set modification time")
		}
	}

	return e.done(rawURL, target, Downloaded, written)
}

// writePart streams body into target.part and verifies the byte count when
// the length is known. On failure the part file is removed.
func (e *Engine) writePart(ctx context.Context, body io.Reader, target string, size int64) (int64, error) {
	part := target + ".part"
	f, err := os.Create(part)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", part, err)
	}

	e.progress.Start(target, size)
	var written int64
	buf := make([]byte, e.chunkSize)
	var readErr error
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				readErr = fmt.Errorf("failed to write %s: %w", part, werr)
				break
			}
			written += int64(n)
			e.progress.Update(written, size)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			if ctx.Err() != nil {
				readErr = ctx.Err()
			} else {
				readErr = errs.Wrap(rerr, errs.ErrorTypeNetwork, "transfer interrupted")
			}
			break
		}
	}
	e.progress.Finish()

	closeErr := f.Close()
	if readErr == nil && closeErr != nil {
		readErr = fmt.Errorf("failed to close %s: %w", part, closeErr)
	}
	if readErr == nil && size >= 0 && written != size {
		readErr = errs.New(errs.ErrorTypeIntegrity, 0,
			"downloaded file size mismatch (expected %d, got %d)", size, written)
	}
	if readErr != nil {
		os.Remove(part)
		return written, readErr
	}
	return written, nil
}

func (e *Engine) done(rawURL, target string, outcome Outcome, bytes int64) (Outcome, string, error) {
	logger.LogTransfer(e.logger, rawURL, target, outcome.String(), bytes, nil)
	return outcome, target, nil
}

// ProbeExtension asks the server for the content type of rawURL and turns it
// into a file extension. An error status falls back to the URL's own
// extension; the following Fetch decides what the status means.
func (e *Engine) ProbeExtension(ctx context.Context, rawURL string) (string, error) {
	resp, err := e.transport.Head(ctx, rawURL)
	if err != nil {
		var statusErr *errs.Error
		if !errors.As(err, &statusErr) || statusErr.Code == 0 {
			return "", err
		}
		e.logger.DebugWithFields("extension lookup failed", map[string]interface{}{
			"url":    rawURL,
			"status": statusErr.Code,
		})
		return pathutil.GuessExtension("", rawURL), nil
	}
	return pathutil.GuessExtension(resp.Header.Get("Content-Type"), rawURL), nil
}

// withServerName renames target after the server side filename, keeping
// target when the URL has no usable basename.
func withServerName(target, serverName string) string {
	switch serverName {
	case "", ".", "/", "..":
		return target
	}
	return filepath.Join(filepath.Dir(target), serverName)
}

func redirected(requested, final string) bool {
	u, err := url.Parse(requested)
	if err != nil {
		return requested != final
	}
	return u.String() != final
}

type nopProgress struct{}

func (nopProgress) Start(string, int64) {}
func (nopProgress) Update(int64, int64) {}
func (nopProgress) Finish()             {}

type nopOutput struct{}

func (nopOutput) Printf(string, ...interface{}) {}
