package resolver

import (
	"bufio"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/EmmEff/RedditImageGrab/pkg/logger"
)

const (
	// directImageTemplate synthesizes a direct image URL from an asset hash
	directImageTemplate = "http://i.imgur.com/%s.jpg"

	// htmlContentType is the declared type an album page must carry to be scanned
	htmlContentType = "text/html"
)

// hashPattern matches the asset-hash tokens embedded in the album page's
// inline data. A fixed lexical marker, not HTML structure; it breaks if the
// page format changes upstream.
var hashPattern = regexp.MustCompile(`"hash":"([^"]+)"`)

// Getter performs HTTP GET requests.
type Getter interface {
	Get(url string) (*http.Response, error)
}

// HashExtractor scans an album page line-by-line for embedded asset hashes and
// synthesizes direct image URLs from them. It is the default extraction
// strategy.
type HashExtractor struct {
	client Getter
	logger logger.Logger
}

// NewHashExtractor creates a HashExtractor fetching pages with client.
func NewHashExtractor(client Getter, log logger.Logger) *HashExtractor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &HashExtractor{
		client: client,
		logger: log,
	}
}

// Extract fetches the album page and returns the direct image URLs found in
// it, in document order, duplicates preserved. A response whose declared
// content type is not HTML yields an empty result, as does a malformed page;
// only transport failures return an error.
func (e *HashExtractor) Extract(albumURL string) ([]string, error) {
	resp, err := e.client.Get(albumURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isHTML(resp) {
		e.logger.DebugWithFields("album page is not HTML, skipping", map[string]interface{}{
			"album_url":    albumURL,
			"content_type": resp.Header.Get("Content-Type"),
		})
		return nil, nil
	}

	var urls []string
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		for _, match := range hashPattern.FindAllStringSubmatch(scanner.Text(), -1) {
			urls = append(urls, fmt.Sprintf(directImageTemplate, match[1]))
		}
	}
	// A truncated or otherwise unreadable page yields whatever was found
	// before the problem; the contract is empty-on-garbage, never an error.
	if err := scanner.Err(); err != nil {
		e.logger.WarnWithFields("error reading album page", map[string]interface{}{
			"album_url": albumURL,
			"error":     err.Error(),
		})
	}

	return urls, nil
}

// DOMExtractor is an alternate extraction strategy that parses the album page
// as HTML and collects image sources pointing at the imgur image host. Useful
// when the inline-data marker the HashExtractor depends on changes.
type DOMExtractor struct {
	client Getter
	logger logger.Logger
}

// NewDOMExtractor creates a DOMExtractor fetching pages with client.
func NewDOMExtractor(client Getter, log logger.Logger) *DOMExtractor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &DOMExtractor{
		client: client,
		logger: log,
	}
}

// Extract fetches the album page and returns the src of every image tag
// hosted on i.imgur.com, in document order. Same contract as HashExtractor:
// empty on non-HTML or malformed pages, error only on transport failure.
func (e *DOMExtractor) Extract(albumURL string) ([]string, error) {
	resp, err := e.client.Get(albumURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isHTML(resp) {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		e.logger.WarnWithFields("failed to parse album page", map[string]interface{}{
			"album_url": albumURL,
			"error":     err.Error(),
		})
		return nil, nil
	}

	var urls []string
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok || !strings.Contains(src, "i.imgur.com") {
			return
		}
		if strings.HasPrefix(src, "//") {
			src = "http:" + src
		}
		urls = append(urls, src)
	})

	return urls, nil
}

// isHTML reports whether the response declares an HTML content type. A
// missing header counts as HTML so extraction gets a chance to run.
func isHTML(resp *http.Response) bool {
	contentType := resp.Header.Get("Content-Type")
	return contentType == "" || strings.HasPrefix(contentType, htmlContentType)
}
