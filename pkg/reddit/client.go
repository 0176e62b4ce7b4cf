package reddit

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	errs "github.com/EmmEff/RedditImageGrab/pkg/errors"
	"github.com/EmmEff/RedditImageGrab/pkg/logger"
)

// Client fetches subreddit listing pages and arbitrary resources over HTTP.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	pageLimit  int
	logger     logger.Logger
}

// NewClient creates a new reddit client
func NewClient(baseURL, userAgent string, timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"User-Agent": userAgent,
			"Accept":     "*/*",
		},
		baseURL:   baseURL,
		pageLimit: DefaultPageLimit,
		logger:    log,
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetPageLimit overrides the number of items requested per listing page.
func (c *Client) SetPageLimit(limit int) {
	if limit > 0 && limit <= MaxPageLimit {
		c.pageLimit = limit
	}
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
			Code:    0,
			URL:     req.URL.String(),
		}
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// Get performs a GET request to the specified URL
func (c *Client) Get(url string) (*http.Response, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, &errs.Error{
			Type:    errs.ErrorTypeInvalidURL,
			Message: fmt.Sprintf("failed to create request: %v", err),
			Code:    0,
			URL:     url,
		}
	}

	return c.doRequest(req)
}

// GetJSON performs a GET request and decodes the JSON response
func (c *Client) GetJSON(url string, target interface{}) error {
	resp, err := c.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
			URL:     url,
		}
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
			Code:    resp.StatusCode,
			URL:     url,
		}
	}

	return nil
}

// checkResponseStatus checks the HTTP response status and returns appropriate errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		c.logger.WarnWithFields("resource not found", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeNotFound,
			Message: "resource not found",
			Code:    resp.StatusCode,
			URL:     resp.Request.URL.String(),
		}
	case resp.StatusCode >= http.StatusInternalServerError:
		c.logger.ErrorWithFields("server error", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeServerError,
			Message: "server error",
			Code:    resp.StatusCode,
			URL:     resp.Request.URL.String(),
		}
	case resp.StatusCode >= 400:
		c.logger.ErrorWithFields("unexpected HTTP status", map[string]interface{}{
			"status": resp.StatusCode,
			"url":    resp.Request.URL.String(),
		})
		return &errs.Error{
			Type:    errs.ErrorTypeHTTPStatus,
			Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			Code:    resp.StatusCode,
			URL:     resp.Request.URL.String(),
		}
	default:
		return nil
	}
}

// Items fetches one page of the subreddit's listing feed. afterID is the id of
// the last item already seen; an empty afterID starts from the newest posting.
// An empty slice means the feed is exhausted.
func (c *Client) Items(subreddit, afterID string) ([]Item, error) {
	url := ListingURL(c.baseURL, subreddit, afterID, c.pageLimit)

	c.logger.DebugWithFields("fetching listing page", map[string]interface{}{
		"subreddit": subreddit,
		"after":     afterID,
		"url":       url,
	})

	var listing Listing
	if err := c.GetJSON(url, &listing); err != nil {
		c.logger.ErrorWithFields("failed to fetch listing page", map[string]interface{}{
			"subreddit": subreddit,
			"after":     afterID,
			"error":     err.Error(),
		})
		return nil, err
	}

	items := make([]Item, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		items = append(items, child.Data)
	}

	c.logger.DebugWithFields("listing page fetched", map[string]interface{}{
		"subreddit":  subreddit,
		"item_count": len(items),
	})

	return items, nil
}
