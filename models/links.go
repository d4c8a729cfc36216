package models

// StreamingProvider describes a registered "where to watch" destination.
type StreamingProvider struct {
	ProviderID int    `json:"providerId"`
	Name       string `json:"name"`
	Scheme     string `json:"scheme"` // native app deep link scheme, e.g. nflx://
	WebURL     string `json:"webUrl"`
	Icon       string `json:"icon"`
}

// LinkQuery holds the descriptive input used to build a provider URL.
type LinkQuery struct {
	Title  string `json:"title,omitempty"`
	ImdbID string `json:"imdbId,omitempty"`
	Year   int    `json:"year,omitempty"`
}

// OpenRequest is the input to a provider open attempt.
type OpenRequest struct {
	LinkQuery
	// ProviderPageURL is the aggregator page for this exact title as returned by the metadata service.
	ProviderPageURL string `json:"providerPageUrl,omitempty"`
}

// OpenResult reports how a provider open attempt ended.
type OpenResult struct {
	Success   bool   `json:"success"`
	OpenedApp bool   `json:"openedApp"`
	URL       string `json:"url,omitempty"`
}

// ProviderLink is a resolved destination for one provider of a title.
type ProviderLink struct {
	ProviderID int      `json:"providerId"`
	Name       string   `json:"name"`
	Icon       string   `json:"icon,omitempty"`
	LogoPath   string   `json:"logoPath,omitempty"`
	WebURL     string   `json:"webUrl,omitempty"`
	DeepLink   string   `json:"deepLink,omitempty"`
	Offers     []string `json:"offers"` // flatrate | rent | buy
}

// WhereToWatch groups the provider links for a title in one region.
type WhereToWatch struct {
	ID              int64          `json:"id"`
	MediaType       MediaType      `json:"mediaType"`
	Title           string         `json:"title"`
	Year            int            `json:"year,omitempty"`
	ImdbID          string         `json:"imdbId,omitempty"`
	Region          string         `json:"region"`
	ProviderPageURL string         `json:"providerPageUrl,omitempty"`
	Providers       []ProviderLink `json:"providers"`
}
