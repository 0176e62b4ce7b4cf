// Package resolver turns one submitted link into zero or more direct image
// URLs, expanding imgur albums and normalizing imgur direct links.
package resolver

import (
	"path"
	"strings"

	"github.com/EmmEff/RedditImageGrab/pkg/logger"
)

const (
	// imgurHost marks links hosted on the imgur image host
	imgurHost = "imgur.com"

	// imgurAlbumMarker marks album pages that must be expanded
	imgurAlbumMarker = "imgur.com/a/"
)

// AlbumLinkExtractor expands an album page into direct image URLs. The page
// scraping behind it is brittle, so callers depend on this interface and the
// extraction strategy can be swapped without touching them.
type AlbumLinkExtractor interface {
	Extract(albumURL string) ([]string, error)
}

// Resolver decides whether a URL is a direct image link, an album needing
// expansion, or an imgur link needing extension normalization.
type Resolver struct {
	albums AlbumLinkExtractor
	logger logger.Logger
}

// New creates a Resolver using the given album extractor.
func New(albums AlbumLinkExtractor, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Resolver{
		albums: albums,
		logger: log,
	}
}

// Resolve produces the concrete download URLs for one submitted link. No
// network I/O happens here except when an album page must be expanded; the
// returned error can only come from that expansion.
func (r *Resolver) Resolve(rawURL string) ([]string, error) {
	if strings.Contains(rawURL, imgurAlbumMarker) {
		urls, err := r.albums.Extract(rawURL)
		if err != nil {
			return nil, err
		}
		r.logger.DebugWithFields("album expanded", map[string]interface{}{
			"album_url": rawURL,
			"count":     len(urls),
		})
		return urls, nil
	}

	if strings.Contains(rawURL, imgurHost) {
		return []string{normalizeImgurURL(rawURL)}, nil
	}

	return []string{rawURL}, nil
}

// normalizeImgurURL rewrites imgur direct links into a fetchable form.
func normalizeImgurURL(rawURL string) string {
	// Imgur serves an equivalent JPEG at the .jpg path for most uploads.
	// Known heuristic, not guaranteed for every upload.
	if strings.HasSuffix(rawURL, ".png") {
		return strings.TrimSuffix(rawURL, ".png") + ".jpg"
	}

	// Extension-less imgur links serve JPEG content at the .jpg path.
	base := rawURL
	if idx := strings.LastIndex(rawURL, "/"); idx >= 0 {
		base = rawURL[idx+1:]
	}
	if path.Ext(base) == "" {
		return rawURL + ".jpg"
	}

	return rawURL
}
