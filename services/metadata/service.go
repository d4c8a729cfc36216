package metadata

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sort"
	"strings"

	"github.com/sourcegraph/conc/pool"

	"twowatch/models"
	"twowatch/services/providers"
)

const DefaultRegion = "US"

var (
	ErrNotConfigured        = errors.New("tmdb api key not configured")
	ErrTitleNotFound        = errors.New("title not found")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
)

// offerKinds lists the TMDB availability buckets in display order.
var offerKinds = []string{"flatrate", "free", "ads", "rent", "buy"}

// Service answers "where can I watch this" questions from TMDB watch provider data.
type Service struct {
	tmdb     *tmdbClient
	registry *providers.Registry
	region   string
}

// NewService creates a metadata service. A nil registry uses the built-in provider table.
func NewService(tmdbAPIKey, language, region string, registry *providers.Registry, httpc *http.Client) *Service {
	if registry == nil {
		registry = providers.NewRegistry()
	}
	return &Service{
		tmdb:     newTMDBClient(tmdbAPIKey, language, httpc),
		registry: registry,
		region:   normalizeRegion(region, DefaultRegion),
	}
}

// Configured reports whether an API key is set.
func (s *Service) Configured() bool {
	return s.tmdb.isConfigured()
}

// Entry fetches what the watchlist stores about a title.
func (s *Service) Entry(ctx context.Context, mediaType models.MediaType, id int64) (models.WatchlistEntry, error) {
	if !mediaType.Valid() {
		return models.WatchlistEntry{}, ErrUnsupportedMediaType
	}
	details, err := s.tmdb.details(ctx, mediaType, id)
	if err != nil {
		return models.WatchlistEntry{}, err
	}
	entry := models.WatchlistEntry{
		ID:          id,
		MediaType:   mediaType,
		Title:       details.displayTitle(),
		VoteAverage: details.VoteAverage,
	}
	if poster := strings.TrimSpace(details.PosterPath); poster != "" {
		entry.PosterPath = &poster
	}
	return entry, nil
}

// WhereToWatch gathers title details, the IMDB id and regional watch providers concurrently and
// resolves a web URL and deep link for every provider offering the title.
func (s *Service) WhereToWatch(ctx context.Context, mediaType models.MediaType, id int64, region string) (models.WhereToWatch, error) {
	if !s.tmdb.isConfigured() {
		return models.WhereToWatch{}, ErrNotConfigured
	}
	if !mediaType.Valid() {
		return models.WhereToWatch{}, ErrUnsupportedMediaType
	}
	region = normalizeRegion(region, s.region)

	var (
		details   tmdbDetails
		imdbID    string
		available tmdbWatchProvidersResponse
	)

	p := pool.New().WithContext(ctx).WithFirstError().WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		var err error
		details, err = s.tmdb.details(ctx, mediaType, id)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		imdbID, err = s.tmdb.externalIMDBID(ctx, mediaType, id)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[metadata] external ids for %s/%d unavailable: %v", mediaType, id, err)
		}
		return nil
	})
	p.Go(func(ctx context.Context) error {
		var err error
		available, err = s.tmdb.watchProviders(ctx, mediaType, id)
		return err
	})
	if err := p.Wait(); err != nil {
		return models.WhereToWatch{}, err
	}

	if imdbID == "" {
		imdbID = strings.TrimSpace(details.IMDBID)
	}

	result := models.WhereToWatch{
		ID:        id,
		MediaType: mediaType,
		Title:     details.displayTitle(),
		Year:      details.year(),
		ImdbID:    imdbID,
		Region:    region,
		Providers: []models.ProviderLink{},
	}

	regional, ok := available.Results[region]
	if !ok {
		return result, nil
	}
	result.ProviderPageURL = strings.TrimSpace(regional.Link)
	result.Providers = s.providerLinks(regional, models.LinkQuery{Title: result.Title, ImdbID: imdbID, Year: result.Year})
	return result, nil
}

// providerLinks merges the offer buckets into one link per provider, ordered by TMDB display
// priority.
func (s *Service) providerLinks(regional tmdbRegionProviders, query models.LinkQuery) []models.ProviderLink {
	buckets := map[string][]tmdbWatchProvider{
		"flatrate": regional.Flatrate,
		"free":     regional.Free,
		"ads":      regional.Ads,
		"rent":     regional.Rent,
		"buy":      regional.Buy,
	}

	type ranked struct {
		link     models.ProviderLink
		priority int
	}
	byID := make(map[int]*ranked)
	order := make([]int, 0)

	for _, kind := range offerKinds {
		for _, offered := range buckets[kind] {
			if offered.ProviderID <= 0 {
				continue
			}
			if existing, ok := byID[offered.ProviderID]; ok {
				if !containsString(existing.link.Offers, kind) {
					existing.link.Offers = append(existing.link.Offers, kind)
				}
				if offered.DisplayPriority < existing.priority {
					existing.priority = offered.DisplayPriority
				}
				continue
			}
			byID[offered.ProviderID] = &ranked{
				link:     s.providerLink(offered, kind, query),
				priority: offered.DisplayPriority,
			}
			order = append(order, offered.ProviderID)
		}
	}

	links := make([]models.ProviderLink, 0, len(order))
	sort.SliceStable(order, func(i, j int) bool {
		a, b := byID[order[i]], byID[order[j]]
		if a.priority != b.priority {
			return a.priority < b.priority
		}
		return order[i] < order[j]
	})
	for _, id := range order {
		links = append(links, byID[id].link)
	}
	return links
}

func (s *Service) providerLink(offered tmdbWatchProvider, kind string, query models.LinkQuery) models.ProviderLink {
	link := models.ProviderLink{
		ProviderID: offered.ProviderID,
		Name:       strings.TrimSpace(offered.ProviderName),
		LogoPath:   buildTMDBImage(offered.LogoPath, tmdbLogoSize),
		Offers:     []string{kind},
	}
	if known, ok := s.registry.Lookup(offered.ProviderID); ok {
		link.Name = known.Name
		link.Icon = known.Icon
	}
	if webURL, ok := s.registry.ResolveWebURL(offered.ProviderID, query); ok {
		link.WebURL = webURL
	}
	if deepLink, ok := s.registry.DeepLink(offered.ProviderID, query.Title); ok {
		link.DeepLink = deepLink
	}
	if link.Name == "" {
		link.Name = s.registry.DisplayName(offered.ProviderID)
	}
	return link
}

func normalizeRegion(region, fallback string) string {
	region = strings.ToUpper(strings.TrimSpace(region))
	if len(region) != 2 {
		return fallback
	}
	return region
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
