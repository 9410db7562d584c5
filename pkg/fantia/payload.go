package fantia

import (
	"encoding/json"

	errs "fantiadl/pkg/errors"
)

// Category is the closed set of content kinds the archiver understands
type Category string

const (
	CategoryPhotoGallery Category = "photo_gallery"
	CategoryFile         Category = "file"
	CategoryEmbed        Category = "embed"
	CategoryBlog         Category = "blog"
	CategoryUnsupported  Category = "unsupported"
)

// Payload is the category specific part of a content item. The concrete
// types below are the only implementations.
type Payload interface {
	Category() Category
	sealed()
}

// PhotoGallery is an ordered list of full size photo URLs
type PhotoGallery struct {
	URLs []string
}

// FileAttachment is a single downloadable file
type FileAttachment struct {
	URL      string
	Filename string
}

// Embed is an externally hosted link
type Embed struct {
	URL string
}

// Blog is a rich text document; PhotoURLs are its inline images in order
type Blog struct {
	PhotoURLs []string
}

// Unsupported carries the raw category tag of content the archiver skips
type Unsupported struct {
	Name string
}

func (PhotoGallery) Category() Category   { return CategoryPhotoGallery }
func (FileAttachment) Category() Category { return CategoryFile }
func (Embed) Category() Category          { return CategoryEmbed }
func (Blog) Category() Category           { return CategoryBlog }
func (Unsupported) Category() Category    { return CategoryUnsupported }

func (PhotoGallery) sealed()   {}
func (FileAttachment) sealed() {}
func (Embed) sealed()          {}
func (Blog) sealed()           {}
func (Unsupported) sealed()    {}

// Classify turns a content item into its typed payload. Relative URLs are
// resolved through the client.
func (c *Client) Classify(content Content) (Payload, error) {
	switch Category(content.Category) {
	case CategoryPhotoGallery:
		urls := make([]string, 0, len(content.Photos))
		for _, p := range content.Photos {
			urls = append(urls, p.URL.Original)
		}
		return PhotoGallery{URLs: urls}, nil

	case CategoryFile:
		u, err := c.ResolveDownloadURI(content.DownloadURI)
		if err != nil {
			return nil, errs.Wrap(err, errs.ErrorTypeParsing, "content %d has an invalid download_uri", content.ID)
		}
		return FileAttachment{URL: u, Filename: content.Filename}, nil

	case CategoryEmbed:
		return Embed{URL: content.EmbedURL}, nil

	case CategoryBlog:
		refs, err := BlogImageRefs(content.Comment)
		if err != nil {
			return nil, errs.Wrap(err, errs.ErrorTypeParsing, "content %d has a malformed blog document", content.ID)
		}
		urls := make([]string, 0, len(refs))
		for _, ref := range refs {
			u, err := c.ResolveReference(ref)
			if err != nil {
				return nil, errs.Wrap(err, errs.ErrorTypeParsing, "content %d has an invalid blog image", content.ID)
			}
			urls = append(urls, u)
		}
		return Blog{PhotoURLs: urls}, nil

	default:
		return Unsupported{Name: content.Category}, nil
	}
}

type blogDocument struct {
	Ops []struct {
		Insert json.RawMessage `json:"insert"`
	} `json:"ops"`
}

type blogImage struct {
	FantiaImage *struct {
		OriginalURL string `json:"original_url"`
	} `json:"fantiaImage"`
}

// BlogImageRefs returns the original_url of every inline image of a blog
// document, in document order. Text inserts are ignored.
func BlogImageRefs(document string) ([]string, error) {
	var doc blogDocument
	if err := json.Unmarshal([]byte(document), &doc); err != nil {
		return nil, err
	}

	var refs []string
	for _, op := range doc.Ops {
		if len(op.Insert) == 0 || op.Insert[0] != '{' {
			continue
		}
		var img blogImage
		if err := json.Unmarshal(op.Insert, &img); err != nil {
			return nil, err
		}
		if img.FantiaImage != nil {
			refs = append(refs, img.FantiaImage.OriginalURL)
		}
	}
	return refs, nil
}
