package archiver

import (
	"context"
	"path/filepath"
	"strconv"

	"fantiadl/internal/downloader"
	errs "fantiadl/pkg/errors"
	"fantiadl/pkg/fantia"
	"fantiadl/pkg/ledger"
	"fantiadl/pkg/logger"
	"fantiadl/pkg/pathutil"
	"fantiadl/pkg/storage"
)

// Deps are the collaborators of an Archiver
type Deps struct {
	Platform Platform
	Fetcher  Fetcher
	Ledger   ledger.Ledger
	Storage  *storage.Manager
	Output   Output
	Logger   logger.Logger
}

// Stats counts what a run did
type Stats struct {
	PostsCompleted  int
	PostsSkipped    int
	FilesDownloaded int
	Failures        int
}

// Archiver reconciles remote posts with the local archive. It is not safe
// for concurrent use.
type Archiver struct {
	platform  Platform
	fetcher   Fetcher
	ledger    ledger.Ledger
	storage   *storage.Manager
	paginator *Paginator
	resolver  *Resolver
	out       Output
	logger    logger.Logger
	opts      Options
	stats     Stats
}

// New creates an Archiver
func New(deps Deps, opts Options) *Archiver {
	a := &Archiver{
		platform: deps.Platform,
		fetcher:  deps.Fetcher,
		ledger:   deps.Ledger,
		storage:  deps.Storage,
		out:      deps.Output,
		logger:   deps.Logger,
		opts:     opts,
	}
	if a.ledger == nil {
		a.ledger = ledger.Nop{}
	}
	if a.out == nil {
		a.out = discard{}
	}
	if a.logger == nil {
		a.logger = logger.GetLogger()
	}
	a.logger = a.logger.WithField("component", "archiver")
	a.paginator = NewPaginator(a.platform, a.out, a.logger)
	a.resolver = NewResolver(a.platform)
	return a
}

// Stats returns the counters of the run so far
func (a *Archiver) Stats() Stats {
	return a.stats
}

// Run downloads every target URL in order
func (a *Archiver) Run(ctx context.Context, targets []string) error {
	for _, raw := range targets {
		target, err := fantia.ParseURL(raw)
		if err != nil {
			if err := a.skip(err, "Encountered an error parsing URL. Skipping...\n"); err != nil {
				return err
			}
			continue
		}

		switch target.Kind {
		case fantia.TargetFanclub:
			if err := a.DownloadFanclub(ctx, target.ID); err != nil {
				if err := a.skip(err, "Encountered an error downloading fanclub. Skipping...\n"); err != nil {
					return err
				}
			}
		case fantia.TargetPost:
			if err := a.DownloadPost(ctx, target.ID); err != nil {
				if err := a.skip(err, "Encountered an error downloading post. Skipping...\n"); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// DownloadPost reconciles one post with the archive
func (a *Archiver) DownloadPost(ctx context.Context, postID int64) error {
	log := a.logger.WithField("post_id", postID)

	record, err := a.ledger.FindPost(ctx, postID)
	if err != nil {
		return err
	}
	if a.opts.BypassPostCheck && record != nil && record.Complete {
		a.out.Printf("Post %d already downloaded. Skipping...\n", postID)
		logger.LogPostState(log, postID, "skipped")
		a.stats.PostsSkipped++
		return nil
	}

	a.out.Printf("Downloading post %d...\n", postID)
	post, err := a.resolver.ResolvePost(ctx, postID)
	if err != nil {
		return err
	}
	logger.LogPostState(log, post.ID, "hydrated")

	if record != nil && record.Complete {
		// the ledger keeps whole seconds
		if record.ConvertedAt.Unix() == post.ConvertedAt.Unix() {
			a.out.Printf("Post appears to have been downloaded completely. Skipping...\n")
			logger.LogPostState(log, post.ID, "skipped")
			a.stats.PostsSkipped++
			return nil
		}
		a.out.Printf("Post date does not match date in database. Checking for new contents...\n")
		if err := a.ledger.SetPostComplete(ctx, post.ID, false); err != nil {
			return err
		}
		if err := a.ledger.UpdatePostConvertedAt(ctx, post.ID, post.ConvertedAt); err != nil {
			return err
		}
		logger.LogPostState(log, post.ID, "reopened")
	}
	if record == nil {
		err := a.ledger.InsertPost(ctx, ledger.PostRecord{
			ID:          post.ID,
			Title:       post.Title,
			FanclubID:   post.Fanclub.ID,
			PostedAt:    post.PostedAt,
			ConvertedAt: post.ConvertedAt,
		})
		if err != nil {
			return err
		}
	}

	postDir, err := a.storage.PostDirectory(post.Fanclub.CreatorName, post.ID)
	if err != nil {
		return err
	}

	if a.opts.DumpMetadata {
		if err := a.storage.SaveMetadata(postDir, post.Raw); err != nil {
			return err
		}
	}
	if a.opts.MarkIncomplete {
		if err := a.storage.MarkIncomplete(postDir, hasRestricted(post)); err != nil {
			return err
		}
	}
	if a.opts.DownloadThumbnail && post.Thumb != nil && post.Thumb.Original != "" {
		if err := a.downloadNamed(ctx, post.Thumb.Original, postDir, "thumb"); err != nil {
			return err
		}
	}
	if a.opts.ParseExternalLinks {
		if err := a.saveExternalLinks(post.Comment, postDir); err != nil {
			return err
		}
	}

	titles := ContentTitles(post)
	handled := 0
	for i, content := range post.Contents {
		ok, err := a.downloadContent(ctx, post.ID, content, postDir, titles[i])
		if err != nil {
			return err
		}
		if ok {
			handled++
		}
	}

	if a.ledger.Persistent() && handled == len(post.Contents) {
		a.out.Printf("All post content appears to have been downloaded. Marking as complete in database...\n")
		if err := a.ledger.SetPostComplete(ctx, post.ID, true); err != nil {
			return err
		}
		logger.LogPostState(log, post.ID, "complete")
		a.stats.PostsCompleted++
	}

	removed, err := a.storage.RemoveIfEmpty(postDir)
	if err != nil {
		return err
	}
	if removed {
		a.out.Printf("No content downloaded for post %d. Deleting directory.\n", post.ID)
	}
	return nil
}

// downloadContent archives one content item and reports whether it is now
// fully handled.
func (a *Archiver) downloadContent(ctx context.Context, postID int64, content fantia.Content, postDir, title string) (bool, error) {
	a.out.Printf("> Content %d\n", content.ID)

	done, err := a.ledger.IsContentDownloaded(ctx, content.ID)
	if err != nil {
		return false, err
	}
	if done {
		a.out.Printf("Post content already downloaded. Skipping...\n")
		return true, nil
	}

	if !content.Visible() {
		a.out.Printf("Post content not available on current plan. Skipping...\n")
		a.logger.DebugWithFields("content skipped", map[string]interface{}{
			"content_id": content.ID,
			"reason":     string(errs.ErrorTypeRestricted),
		})
		return false, nil
	}

	payload, err := a.resolver.Classify(content)
	if err != nil {
		return false, err
	}

	switch p := payload.(type) {
	case fantia.PhotoGallery:
		err = a.downloadPhotos(ctx, p.URLs, postDir, title)
	case fantia.Blog:
		err = a.downloadPhotos(ctx, p.PhotoURLs, postDir, title)
	case fantia.FileAttachment:
		err = a.downloadFile(ctx, p, postDir)
	case fantia.Embed:
		if a.opts.ParseExternalLinks {
			a.out.Printf("Adding embedded link %s to %s.\n", p.URL, storage.CrawljobFilename)
			err = a.storage.AppendCrawljob([]string{p.URL}, postDir)
		}
	case fantia.Unsupported:
		a.out.Printf("Post content category \"%s\" is not supported. Skipping...\n", p.Name)
		a.logger.DebugWithFields("content skipped", map[string]interface{}{
			"content_id": content.ID,
			"reason":     string(errs.ErrorTypeUnsupported),
			"category":   p.Name,
		})
		return false, nil
	default:
		return false, errs.New(errs.ErrorTypeUnsupported, 0, "unhandled payload %T", payload)
	}
	if err != nil {
		return false, err
	}

	err = a.ledger.RecordContent(ctx, ledger.ContentRecord{
		ID:       content.ID,
		PostID:   postID,
		Title:    content.Title,
		Category: content.Category,
		Price:    int64(content.ForeignPlanPrice),
		Currency: content.CurrencyCode,
	})
	if err != nil {
		return false, err
	}

	if a.opts.ParseExternalLinks {
		if err := a.saveExternalLinks(content.Comment, postDir); err != nil {
			return false, err
		}
	}
	return true, nil
}

// downloadPhotos stores urls as 0<ext>, 1<ext>, ... in the gallery
// directory named after title.
func (a *Archiver) downloadPhotos(ctx context.Context, urls []string, postDir, title string) error {
	dir, err := a.storage.GalleryDirectory(postDir, title)
	if err != nil {
		return err
	}
	for n, u := range urls {
		if err := a.downloadNamed(ctx, u, dir, strconv.Itoa(n)); err != nil {
			a.storage.RemoveIfEmpty(dir)
			return err
		}
	}
	// an empty gallery would keep the post directory alive
	_, err = a.storage.RemoveIfEmpty(dir)
	return err
}

// downloadFile always keeps the server filename so that attachments of one
// post never collide.
func (a *Archiver) downloadFile(ctx context.Context, file fantia.FileAttachment, postDir string) error {
	name := pathutil.SanitizeForPath(file.Filename)
	if name == "" {
		name = "attachment"
	}
	return a.fetch(ctx, file.URL, filepath.Join(postDir, name), true)
}

// downloadNamed stores rawURL as <dir>/<base><ext>, the extension coming
// from the server's content type.
func (a *Archiver) downloadNamed(ctx context.Context, rawURL, dir, base string) error {
	ext, err := a.fetcher.ProbeExtension(ctx, rawURL)
	if err != nil {
		return err
	}
	return a.fetch(ctx, rawURL, filepath.Join(dir, base+ext), a.opts.UseServerFilenames)
}

func (a *Archiver) fetch(ctx context.Context, rawURL, target string, useServerName bool) error {
	outcome, _, err := a.fetcher.Fetch(ctx, rawURL, target, useServerName)
	if err != nil {
		return err
	}
	if outcome == downloader.Downloaded {
		a.stats.FilesDownloaded++
	}
	return nil
}

func (a *Archiver) saveExternalLinks(text, postDir string) error {
	links := fantia.ExternalLinks(text)
	if len(links) == 0 {
		return nil
	}
	a.out.Printf("Found %d external link(s) in post. Saving...\n", len(links))
	return a.storage.AppendCrawljob(links, postDir)
}

// tolerate reports whether a failed unit may be skipped. Interrupts and
// authentication failures always abort.
func (a *Archiver) tolerate(err error) bool {
	return a.opts.ContinueOnError && !errs.IsFatal(err)
}

// skip returns nil when err is tolerated, after reporting it
func (a *Archiver) skip(err error, message string) error {
	if !a.tolerate(err) {
		return err
	}
	a.out.Printf("%s", message)
	a.logger.WithError(err).WithField("kind", string(errs.TypeOf(err))).Error("unit failed")
	a.stats.Failures++
	return nil
}

func hasRestricted(post *fantia.Post) bool {
	for _, c := range post.Contents {
		if !c.Visible() {
			return true
		}
	}
	return false
}

type discard struct{}

func (discard) Printf(string, ...interface{}) {}
