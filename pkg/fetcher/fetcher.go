package fetcher

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	errs "github.com/EmmEff/RedditImageGrab/pkg/errors"
	"github.com/EmmEff/RedditImageGrab/pkg/logger"
	"github.com/EmmEff/RedditImageGrab/pkg/storage"
)

// FailureKind tags the locally recoverable download failures. Transport
// failures are not a Kind here; they surface as *errors.Error from the client.
type FailureKind string

const (
	// KindWrongContentType means the resolved MIME type is not an accepted image type
	KindWrongContentType FailureKind = "wrong_content_type"
	// KindAlreadyExists means the derived filename is already present on disk
	KindAlreadyExists FailureKind = "already_exists"
)

// Error is a tagged download failure, checked by callers with errors.As.
type Error struct {
	Kind        FailureKind
	URL         string
	ContentType string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindWrongContentType:
		return fmt.Sprintf("wrong content type for %s: %s", e.URL, e.ContentType)
	case KindAlreadyExists:
		return fmt.Sprintf("%s already downloaded", e.URL)
	default:
		return fmt.Sprintf("download failure (%s) for %s", e.Kind, e.URL)
	}
}

// acceptedTypes are the MIME types written to disk; everything else is rejected.
var acceptedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// Getter performs HTTP GET requests.
type Getter interface {
	Get(url string) (*http.Response, error)
}

// Fetcher downloads direct image URLs into a destination directory, rejecting
// unsupported content types and names already present on disk.
type Fetcher struct {
	client Getter
	store  *storage.Manager
	logger logger.Logger
}

// New creates a new Fetcher writing through the given storage manager.
func New(client Getter, store *storage.Manager, log logger.Logger) *Fetcher {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Fetcher{
		client: client,
		store:  store,
		logger: log,
	}
}

// Fetch downloads the resource at rawURL into the destination directory and
// returns the filename it was saved under. It fails with a tagged *Error of
// kind KindWrongContentType or KindAlreadyExists for locally recoverable
// rejections; transport failures (network error, HTTP error status, malformed
// URL) propagate as *errors.Error.
func (f *Fetcher) Fetch(rawURL string) (string, error) {
	name := baseName(rawURL)
	if name == "" {
		return "", &errs.Error{
			Type:    errs.ErrorTypeInvalidURL,
			Message: "no filename can be derived from URL",
			URL:     rawURL,
		}
	}

	resp, err := f.client.Get(rawURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, rawURL); err != nil {
		return "", err
	}

	contentType := resolveType(resp.Header.Get("Content-Type"), rawURL)
	if !acceptedTypes[contentType] {
		f.logger.DebugWithFields("rejecting unsupported content type", map[string]interface{}{
			"url":          rawURL,
			"content_type": contentType,
		})
		return "", &Error{
			Kind:        KindWrongContentType,
			URL:         rawURL,
			ContentType: contentType,
		}
	}

	// Don't download files multiple times. Plain filename existence is the
	// whole duplicate index; two hosts serving the same basename collide.
	if f.store.Exists(name) {
		return "", &Error{
			Kind: KindAlreadyExists,
			URL:  rawURL,
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
			URL:     rawURL,
		}
	}

	if _, err := f.store.Save(name, data); err != nil {
		return "", err
	}

	f.logger.DebugWithFields("file saved", map[string]interface{}{
		"url":      rawURL,
		"filename": name,
		"size":     len(data),
	})

	return name, nil
}

// resolveType works out the MIME type from the response header if present,
// otherwise inferred from the URL's extension. Unknown types are returned
// verbatim and rejected by the caller.
func resolveType(headerType, rawURL string) string {
	if headerType != "" {
		if mediaType, _, err := mime.ParseMediaType(headerType); err == nil {
			return mediaType
		}
		return headerType
	}

	switch {
	case strings.HasSuffix(rawURL, ".jpg"), strings.HasSuffix(rawURL, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(rawURL, ".png"):
		return "image/png"
	case strings.HasSuffix(rawURL, ".gif"):
		return "image/gif"
	default:
		return "unknown"
	}
}

// baseName is the final path segment of the raw URL, taken verbatim. Query
// string artifacts are kept on purpose: the derived name is the duplicate
// detection key and must stay stable across runs.
func baseName(rawURL string) string {
	if idx := strings.LastIndex(rawURL, "/"); idx >= 0 {
		return rawURL[idx+1:]
	}
	return rawURL
}

// checkStatus maps a non-200 response to a transport error.
func checkStatus(resp *http.Response, rawURL string) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode >= http.StatusInternalServerError:
		return &errs.Error{
			Type:    errs.ErrorTypeServerError,
			Message: "server error",
			Code:    resp.StatusCode,
			URL:     rawURL,
		}
	case resp.StatusCode == http.StatusNotFound:
		return &errs.Error{
			Type:    errs.ErrorTypeNotFound,
			Message: "resource not found",
			Code:    resp.StatusCode,
			URL:     rawURL,
		}
	default:
		return &errs.Error{
			Type:    errs.ErrorTypeHTTPStatus,
			Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			Code:    resp.StatusCode,
			URL:     rawURL,
		}
	}
}
