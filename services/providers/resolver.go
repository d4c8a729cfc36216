package providers

import (
	"context"
	"log"
	"strings"

	"twowatch/models"
)

// DefaultFallbackSearchURL is the aggregator search used when neither the provider nor the
// metadata service produced a usable link. The encoded title is appended.
const DefaultFallbackSearchURL = "https://www.justwatch.com/us/search?q="

//go:generate mockgen -source=resolver.go -destination=mock_opener_test.go -package=providers

// Opener navigates to a URL, failing when it cannot.
type Opener interface {
	Open(ctx context.Context, rawURL string) error
}

// Resolver picks the best link for a provider and opens it.
type Resolver struct {
	registry          *Registry
	opener            Opener
	fallbackSearchURL string
}

type ResolverOption func(*Resolver)

// WithFallbackSearchURL replaces the last-resort search URL prefix.
func WithFallbackSearchURL(prefix string) ResolverOption {
	return func(r *Resolver) {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			r.fallbackSearchURL = prefix
		}
	}
}

// NewResolver creates a resolver over the registry. A nil registry uses the built-in table.
func NewResolver(registry *Registry, opener Opener, opts ...ResolverOption) *Resolver {
	if registry == nil {
		registry = NewRegistry()
	}
	r := &Resolver{
		registry:          registry,
		opener:            opener,
		fallbackSearchURL: DefaultFallbackSearchURL,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithOpener returns a copy of r that opens URLs through opener.
func (r *Resolver) WithOpener(opener Opener) *Resolver {
	clone := *r
	clone.opener = opener
	return &clone
}

func (r *Resolver) Registry() *Registry {
	return r.registry
}

func (r *Resolver) ResolveWebURL(providerID int, q models.LinkQuery) (string, bool) {
	return r.registry.ResolveWebURL(providerID, q)
}

// FallbackSearchURL is the aggregator search link for a title.
func (r *Resolver) FallbackSearchURL(title string) string {
	return r.fallbackSearchURL + encodeComponent(strings.TrimSpace(title))
}

// Open tries, once each and in order: the provider's own web link, the provider page supplied by
// the metadata service, and the aggregator search. Only the first tier reports OpenedApp, since
// the OS routes universal links into an installed app.
func (r *Resolver) Open(ctx context.Context, providerID int, req models.OpenRequest) models.OpenResult {
	if r.opener == nil {
		log.Printf("[providers] open %d: no opener configured", providerID)
		return models.OpenResult{}
	}

	if target, ok := r.registry.ResolveWebURL(providerID, req.LinkQuery); ok {
		err := r.opener.Open(ctx, target)
		if err == nil {
			return models.OpenResult{Success: true, OpenedApp: true, URL: target}
		}
		log.Printf("[providers] open %s link failed, trying provider page: %v", r.registry.DisplayName(providerID), err)
	}

	if page := strings.TrimSpace(req.ProviderPageURL); page != "" {
		err := r.opener.Open(ctx, page)
		if err == nil {
			return models.OpenResult{Success: true, URL: page}
		}
		log.Printf("[providers] open provider page %s failed, falling back to search: %v", page, err)
	}

	search := r.FallbackSearchURL(req.Title)
	if err := r.opener.Open(ctx, search); err != nil {
		log.Printf("[providers] open fallback search failed for provider %d: %v", providerID, err)
		return models.OpenResult{}
	}
	return models.OpenResult{Success: true, URL: search}
}
