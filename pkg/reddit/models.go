package reddit

// Listing is the top-level envelope of a subreddit listing response.
type Listing struct {
	Kind string      `json:"kind"`
	Data ListingData `json:"data"`
}

type ListingData struct {
	Children []Child `json:"children"`
	After    string  `json:"after"`
	Before   string  `json:"before"`
}

type Child struct {
	Kind string `json:"kind"`
	Data Item   `json:"data"`
}

// Item is one posting from the listing feed. Immutable once received.
type Item struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Score  int    `json:"score"`
	Over18 bool   `json:"over_18"`
}
