package providers

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/unicode/norm"

	"twowatch/models"
	"twowatch/utils/similarity"
)

const (
	unknownProviderName = "Watch"
	suggestThreshold    = 0.75
)

// searchRule formats a provider's title search: prefix + encoded query + suffix.
type searchRule struct {
	prefix   string
	suffix   string
	withYear bool
}

type entry struct {
	provider models.StreamingProvider
	aliases  []string
	search   *searchRule
	// deepLink is the native search prefix; empty means scheme + "?q=".
	deepLink string
	// amazon entries link straight to the title page when an IMDB id is known.
	amazon bool
}

var defaultEntries = []entry{
	{
		provider: models.StreamingProvider{ProviderID: 350, Name: "Apple TV+", Scheme: "tvapp://", WebURL: "https://tv.apple.com", Icon: "logo-apple"},
		search:   &searchRule{prefix: "https://tv.apple.com/search?term="},
		deepLink: "tvapp://search?term=",
	},
	{
		provider: models.StreamingProvider{ProviderID: 8, Name: "Netflix", Scheme: "nflx://", WebURL: "https://netflix.com", Icon: "logo-netflix"},
		search:   &searchRule{prefix: "https://www.netflix.com/search?q=", withYear: true},
		deepLink: "nflx://search?query=",
	},
	{
		provider: models.StreamingProvider{ProviderID: 391, Name: "Disney+", Scheme: "disneyplus://", WebURL: "https://disneyplus.com", Icon: "logo-disney"},
		search:   &searchRule{prefix: "https://www.disneyplus.com/search/"},
		deepLink: "disneyplus://search?query=",
	},
	{
		provider: models.StreamingProvider{ProviderID: 384, Name: "Max", Scheme: "max://", WebURL: "https://max.com", Icon: "logo-hbo"},
		aliases:  []string{"HBO Max"},
		search:   &searchRule{prefix: "https://play.max.com/search?q=", withYear: true},
		deepLink: "max://search/",
	},
	{
		provider: models.StreamingProvider{ProviderID: 119, Name: "Prime Video", Scheme: "primevideo://", WebURL: "https://amazon.com/prime-video", Icon: "logo-amazon"},
		aliases:  []string{"Amazon Prime"},
		deepLink: "primevideo://search?keyword=",
		amazon:   true,
	},
	{
		provider: models.StreamingProvider{ProviderID: 9, Name: "Amazon Prime Video", Scheme: "primevideo://", WebURL: "https://amazon.com/prime-video", Icon: "logo-amazon"},
		deepLink: "primevideo://search?keyword=",
		amazon:   true,
	},
	{
		provider: models.StreamingProvider{ProviderID: 10, Name: "Amazon Video", Scheme: "primevideo://", WebURL: "https://amazon.com/prime-video", Icon: "logo-amazon"},
		deepLink: "primevideo://search?keyword=",
		amazon:   true,
	},
	{
		provider: models.StreamingProvider{ProviderID: 15, Name: "Hulu", Scheme: "hulu://", WebURL: "https://hulu.com", Icon: "logo-hulu"},
		search:   &searchRule{prefix: "https://www.hulu.com/search?query=", withYear: true},
		deepLink: "hulu://search/",
	},
	{
		provider: models.StreamingProvider{ProviderID: 531, Name: "Paramount+", Scheme: "paramountplus://", WebURL: "https://paramountplus.com", Icon: "logo-paramount"},
		search:   &searchRule{prefix: "https://www.paramountplus.com/search/", suffix: "/"},
		deepLink: "paramountplus://search/",
	},
	{
		provider: models.StreamingProvider{ProviderID: 498, Name: "Peacock", Scheme: "peacocktv://", WebURL: "https://peacocktv.com", Icon: "logo-peacock"},
		search:   &searchRule{prefix: "https://www.peacocktv.com/search?q=", withYear: true},
		deepLink: "peacocktv://search/",
	},
	{
		provider: models.StreamingProvider{ProviderID: 726, Name: "Crunchyroll", Scheme: "crunchyroll://", WebURL: "https://crunchyroll.com", Icon: "logo-crunchyroll"},
		search:   &searchRule{prefix: "https://www.crunchyroll.com/search?q="},
	},
	{
		provider: models.StreamingProvider{ProviderID: 247, Name: "YouTube", Scheme: "youtube://", WebURL: "https://youtube.com", Icon: "logo-youtube"},
		search:   &searchRule{prefix: "https://www.youtube.com/results?search_query=", withYear: true},
		deepLink: "youtube://results?search_query=",
	},
	{
		provider: models.StreamingProvider{ProviderID: 3, Name: "Google Play", Scheme: "market://", WebURL: "https://play.google.com/store/movies", Icon: "logo-google"},
		aliases:  []string{"Google Play Movies"},
	},
	{
		provider: models.StreamingProvider{ProviderID: 2, Name: "Apple TV", Scheme: "itms-apps://", WebURL: "https://tv.apple.com", Icon: "logo-apple"},
		aliases:  []string{"iTunes"},
		search:   &searchRule{prefix: "https://tv.apple.com/search?term="},
	},
	{
		provider: models.StreamingProvider{ProviderID: 359, Name: "Tubi", Scheme: "tubitv://", WebURL: "https://tubitv.com", Icon: "logo-tubi"},
		aliases:  []string{"Tubi TV"},
		search:   &searchRule{prefix: "https://tubitv.com/search/"},
	},
	{
		provider: models.StreamingProvider{ProviderID: 290, Name: "Pluto TV", Scheme: "plutotv://", WebURL: "https://plutotv.com", Icon: "logo-pluto"},
		search:   &searchRule{prefix: "https://pluto.tv/search/"},
	},
}

// Registry is the closed set of streaming providers the app knows how to link to.
type Registry struct {
	entries map[int]entry
	names   map[string]int
	// labels lists every name and alias in table order; ids[i] owns labels[i].
	labels []string
	ids    []int
}

// NewRegistry returns the built-in provider table.
func NewRegistry() *Registry {
	r := &Registry{
		entries: make(map[int]entry, len(defaultEntries)),
		names:   make(map[string]int, len(defaultEntries)*2),
	}
	for _, e := range defaultEntries {
		r.entries[e.provider.ProviderID] = e
		for _, name := range append([]string{e.provider.Name}, e.aliases...) {
			key := nameKey(name)
			if _, taken := r.names[key]; !taken && key != "" {
				r.names[key] = e.provider.ProviderID
			}
			r.labels = append(r.labels, name)
			r.ids = append(r.ids, e.provider.ProviderID)
		}
	}
	return r
}

func (r *Registry) Lookup(providerID int) (models.StreamingProvider, bool) {
	e, ok := r.entries[providerID]
	return e.provider, ok
}

// LookupByName matches provider names and aliases ignoring case, accents and punctuation.
// "+" counts as "plus", so "Apple TV+" and "Apple TV" stay distinct.
func (r *Registry) LookupByName(name string) (models.StreamingProvider, bool) {
	id, ok := r.names[nameKey(name)]
	if !ok {
		return models.StreamingProvider{}, false
	}
	return r.Lookup(id)
}

// Suggest returns the provider whose name or alias most resembles a name that did not match
// exactly.
func (r *Registry) Suggest(name string) (models.StreamingProvider, bool) {
	idx, _ := similarity.Closest(name, r.labels, suggestThreshold)
	if idx < 0 {
		return models.StreamingProvider{}, false
	}
	return r.Lookup(r.ids[idx])
}

// Find accepts either a numeric provider id or a provider name.
func (r *Registry) Find(ref string) (models.StreamingProvider, bool) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.Atoi(ref); err == nil {
		return r.Lookup(id)
	}
	return r.LookupByName(ref)
}

// Providers lists every registered provider ordered by name.
func (r *Registry) Providers() []models.StreamingProvider {
	out := make([]models.StreamingProvider, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.provider)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ProviderID < out[j].ProviderID
	})
	return out
}

func (r *Registry) DisplayName(providerID int) string {
	if e, ok := r.entries[providerID]; ok && e.provider.Name != "" {
		return e.provider.Name
	}
	return unknownProviderName
}

// ResolveWebURL builds the provider's web search URL for a title. Without a title it returns the
// provider's home page. Unknown providers never resolve.
func (r *Registry) ResolveWebURL(providerID int, q models.LinkQuery) (string, bool) {
	e, ok := r.entries[providerID]
	if !ok {
		return "", false
	}

	title := strings.TrimSpace(q.Title)
	if title == "" {
		return e.provider.WebURL, true
	}

	withYear := title
	if q.Year > 0 {
		withYear = title + " " + strconv.Itoa(q.Year)
	}

	if e.amazon {
		if imdbID := strings.TrimSpace(q.ImdbID); imdbID != "" {
			return "https://www.amazon.com/gp/video/detail/" + url.PathEscape(imdbID), true
		}
		return "https://www.amazon.com/gp/video/search?phrase=" + encodeComponent(withYear), true
	}

	if e.search == nil {
		return strings.TrimRight(e.provider.WebURL, "/") + "/search?q=" + encodeComponent(title), true
	}

	query := title
	if e.search.withYear {
		query = withYear
	}
	return e.search.prefix + encodeComponent(query) + e.search.suffix, true
}

// DeepLink builds the native-app search link for a provider.
func (r *Registry) DeepLink(providerID int, query string) (string, bool) {
	e, ok := r.entries[providerID]
	if !ok {
		return "", false
	}
	encoded := encodeComponent(strings.TrimSpace(query))
	if e.deepLink != "" {
		return e.deepLink + encoded, true
	}
	if encoded == "" {
		return e.provider.Scheme, true
	}
	return e.provider.Scheme + "?q=" + encoded, true
}

var componentReplacer = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// encodeComponent percent-encodes s the way browsers encode a URI component: spaces become %20
// and !'()* are left alone.
func encodeComponent(s string) string {
	return componentReplacer.Replace(url.QueryEscape(norm.NFC.String(s)))
}

func nameKey(name string) string {
	ascii := strings.ToLower(unidecode.Unidecode(norm.NFC.String(name)))
	ascii = strings.ReplaceAll(ascii, "+", "plus")
	var b strings.Builder
	b.Grow(len(ascii))
	for _, r := range ascii {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
