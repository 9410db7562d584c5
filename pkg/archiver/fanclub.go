package archiver

import (
	"context"

	"fantiadl/pkg/fantia"
)

// DownloadFanclub downloads the posts of a fanclub, newest first. The month
// filter and the per fanclub limit of the options apply.
func (a *Archiver) DownloadFanclub(ctx context.Context, fanclubID int64) error {
	a.out.Printf("Downloading fanclub %d...\n", fanclubID)

	ids, err := a.paginator.FetchPosts(ctx, fanclubID, a.opts.Month)
	if err != nil {
		return err
	}

	if a.opts.DumpMetadata {
		if err := a.downloadFanclubMetadata(ctx, fanclubID); err != nil {
			return err
		}
	}

	if a.opts.Limit > 0 && len(ids) > a.opts.Limit {
		ids = ids[:a.opts.Limit]
	}
	return a.downloadPosts(ctx, ids)
}

// downloadFanclubMetadata stores the fanclub JSON and its header, icon and
// background images in the creator directory.
func (a *Archiver) downloadFanclubMetadata(ctx context.Context, fanclubID int64) error {
	fanclub, err := a.platform.FetchFanclub(ctx, fanclubID)
	if err != nil {
		return err
	}

	dir, err := a.storage.CreatorDirectory(fanclub.CreatorName)
	if err != nil {
		return err
	}
	if err := a.storage.SaveMetadata(dir, fanclub.Raw); err != nil {
		return err
	}

	images := []struct{ name, url string }{
		{"header", imageURL(fanclub.Cover)},
		{"icon", imageURL(fanclub.Icon)},
		{"background", fanclub.BackgroundURL()},
	}
	for _, img := range images {
		if img.url == "" {
			continue
		}
		a.out.Printf("Downloading fanclub %s...\n", img.name)
		if err := a.downloadNamed(ctx, img.url, dir, img.name); err != nil {
			return err
		}
	}
	return nil
}

// DownloadFollowedFanclubs downloads every fanclub the account follows
func (a *Archiver) DownloadFollowedFanclubs(ctx context.Context) error {
	ids, err := a.paginator.FollowedFanclubs(ctx)
	if err != nil {
		return err
	}
	return a.downloadFanclubs(ctx, ids)
}

// DownloadPaidFanclubs downloads every fanclub backed on a paid plan
func (a *Archiver) DownloadPaidFanclubs(ctx context.Context) error {
	ids, err := a.paginator.PaidFanclubs(ctx)
	if err != nil {
		return err
	}
	return a.downloadFanclubs(ctx, ids)
}

// DownloadNewPosts downloads the newest posts of the account's timeline.
// A limit of 0 means DefaultNewPostsLimit.
func (a *Archiver) DownloadNewPosts(ctx context.Context, limit int) error {
	if limit <= 0 {
		limit = DefaultNewPostsLimit
	}
	a.out.Printf("Downloading %d new posts...\n", limit)

	ids, err := a.paginator.TimelinePosts(ctx, limit)
	if err != nil {
		return err
	}
	return a.downloadPosts(ctx, ids)
}

func (a *Archiver) downloadPosts(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		if err := a.DownloadPost(ctx, id); err != nil {
			if err := a.skip(err, "Encountered an error downloading post. Skipping...\n"); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *Archiver) downloadFanclubs(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		if err := a.DownloadFanclub(ctx, id); err != nil {
			if err := a.skip(err, "Encountered an error downloading fanclub. Skipping...\n"); err != nil {
				return err
			}
		}
	}
	return nil
}

func imageURL(img *fantia.Image) string {
	if img == nil {
		return ""
	}
	return img.Original
}
