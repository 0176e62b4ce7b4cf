package reddit

import (
	"fmt"
	"net/url"
)

const (
	// DefaultBaseURL is the base URL for the reddit listing API
	DefaultBaseURL = "https://www.reddit.com"

	// DefaultPageLimit is the default number of items to request per page
	DefaultPageLimit = 25

	// MaxPageLimit is the maximum number of items the listing API returns per page
	MaxPageLimit = 100

	// linkKindPrefix is the "thing" prefix for link postings, used to build
	// the pagination cursor from a bare item id.
	linkKindPrefix = "t3_"
)

// ListingURL constructs the URL for fetching a page of a subreddit's listing.
// afterID is the bare id of the last item seen; empty means start from newest.
func ListingURL(baseURL, subreddit, afterID string, limit int) string {
	if limit <= 0 {
		limit = DefaultPageLimit
	} else if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", limit))
	if afterID != "" {
		params.Set("after", linkKindPrefix+afterID)
	}

	return fmt.Sprintf("%s/r/%s/.json?%s", baseURL, subreddit, params.Encode())
}

// IsValidSubreddit checks if a subreddit name is plausible: letters, numbers,
// and underscores only.
func IsValidSubreddit(name string) bool {
	if name == "" || len(name) > 21 {
		return false
	}

	for _, char := range name {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '_') {
			return false
		}
	}

	return true
}

// SanitizeSubreddit strips a leading "r/" or "/r/" prefix and trailing slashes
// so users can paste the name straight from a URL.
func SanitizeSubreddit(name string) string {
	for len(name) > 0 && name[0] == '/' {
		name = name[1:]
	}
	if len(name) > 2 && name[0] == 'r' && name[1] == '/' {
		name = name[2:]
	}
	for len(name) > 0 && (name[len(name)-1] == '/' || name[len(name)-1] == ' ') {
		name = name[:len(name)-1]
	}
	return name
}
