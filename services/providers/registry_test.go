package providers

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twowatch/models"
)

func TestResolveWebURL(t *testing.T) {
	registry := NewRegistry()

	cases := []struct {
		name       string
		providerID int
		query      models.LinkQuery
		want       string
	}{
		{"amazon by imdb id", 119, models.LinkQuery{Title: "The Batman", ImdbID: "tt1877830"}, "https://www.amazon.com/gp/video/detail/tt1877830"},
		{"amazon search with year", 119, models.LinkQuery{Title: "The Batman", Year: 2022}, "https://www.amazon.com/gp/video/search?phrase=The%20Batman%202022"},
		{"amazon search title only", 119, models.LinkQuery{Title: "The Batman"}, "https://www.amazon.com/gp/video/search?phrase=The%20Batman"},
		{"amazon blank imdb id", 119, models.LinkQuery{Title: "The Batman", ImdbID: "  "}, "https://www.amazon.com/gp/video/search?phrase=The%20Batman"},
		{"amazon video family", 10, models.LinkQuery{Title: "Dune", ImdbID: "tt1160419"}, "https://www.amazon.com/gp/video/detail/tt1160419"},
		{"amazon prime legacy id", 9, models.LinkQuery{Title: "Dune"}, "https://www.amazon.com/gp/video/search?phrase=Dune"},
		{"netflix with year", 8, models.LinkQuery{Title: "Stranger Things", Year: 2016}, "https://www.netflix.com/search?q=Stranger%20Things%202016"},
		{"netflix without year", 8, models.LinkQuery{Title: "Stranger Things"}, "https://www.netflix.com/search?q=Stranger%20Things"},
		{"disney drops year", 391, models.LinkQuery{Title: "Encanto", Year: 2021}, "https://www.disneyplus.com/search/Encanto"},
		{"max with year", 384, models.LinkQuery{Title: "Succession", Year: 2018}, "https://play.max.com/search?q=Succession%202018"},
		{"apple tv plus", 350, models.LinkQuery{Title: "Ted Lasso"}, "https://tv.apple.com/search?term=Ted%20Lasso"},
		{"apple tv store", 2, models.LinkQuery{Title: "Top Gun Maverick"}, "https://tv.apple.com/search?term=Top%20Gun%20Maverick"},
		{"hulu with year", 15, models.LinkQuery{Title: "Fargo", Year: 2014}, "https://www.hulu.com/search?query=Fargo%202014"},
		{"paramount trailing slash", 531, models.LinkQuery{Title: "Star Trek"}, "https://www.paramountplus.com/search/Star%20Trek/"},
		{"peacock with year", 498, models.LinkQuery{Title: "The Office", Year: 2005}, "https://www.peacocktv.com/search?q=The%20Office%202005"},
		{"youtube with year", 247, models.LinkQuery{Title: "documentary", Year: 2023}, "https://www.youtube.com/results?search_query=documentary%202023"},
		{"crunchyroll", 726, models.LinkQuery{Title: "Attack on Titan", Year: 2013}, "https://www.crunchyroll.com/search?q=Attack%20on%20Titan"},
		{"tubi", 359, models.LinkQuery{Title: "free movie"}, "https://tubitv.com/search/free%20movie"},
		{"pluto", 290, models.LinkQuery{Title: "news"}, "https://pluto.tv/search/news"},
		{"known provider without rule", 3, models.LinkQuery{Title: "Heat", Year: 1995}, "https://play.google.com/store/movies/search?q=Heat"},
		{"no title netflix", 8, models.LinkQuery{}, "https://netflix.com"},
		{"no title disney", 391, models.LinkQuery{Year: 2020}, "https://disneyplus.com"},
		{"no title amazon", 119, models.LinkQuery{ImdbID: "tt1877830"}, "https://amazon.com/prime-video"},
		{"apostrophe kept", 15, models.LinkQuery{Title: "The Handmaid's Tale"}, "https://www.hulu.com/search?query=The%20Handmaid's%20Tale"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := registry.ResolveWebURL(tc.providerID, tc.query)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolveWebURLUnknownProvider(t *testing.T) {
	registry := NewRegistry()

	_, ok := registry.ResolveWebURL(99999, models.LinkQuery{Title: "test movie"})
	assert.False(t, ok)
	_, ok = registry.ResolveWebURL(99999, models.LinkQuery{})
	assert.False(t, ok)
}

func TestResolveWebURLEncodesSpecialCharacters(t *testing.T) {
	got, ok := NewRegistry().ResolveWebURL(8, models.LinkQuery{Title: "What's Up & Where's It?"})
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(got, "https://www.netflix.com/search?q="))
	assert.NotContains(t, got, " ")
	assert.Equal(t, "https://www.netflix.com/search?q=What's%20Up%20%26%20Where's%20It%3F", got)

	parsed, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "What's Up & Where's It?", parsed.Query().Get("q"))
}

func TestEncodeComponent(t *testing.T) {
	cases := map[string]string{
		"":                   "",
		"The Dark Knight":    "The%20Dark%20Knight",
		"a+b":                "a%2Bb",
		"(500) Days":         "(500)%20Days",
		"Wall*E!":            "Wall*E!",
		"50/50":              "50%2F50",
		"~tilde_dash-dot.":   "~tilde_dash-dot.",
		"Am\u00e9lie":        "Am%C3%A9lie",
		"Ame\u0301lie":       "Am%C3%A9lie",
		"Crouching Tiger 卧虎": "Crouching%20Tiger%20%E5%8D%A7%E8%99%8E",
	}
	for in, want := range cases {
		assert.Equal(t, want, encodeComponent(in), "input %q", in)
	}
}

func TestDeepLink(t *testing.T) {
	registry := NewRegistry()

	cases := []struct {
		providerID int
		query      string
		want       string
	}{
		{8, "Inception", "nflx://search?query=Inception"},
		{8, "The Dark Knight", "nflx://search?query=The%20Dark%20Knight"},
		{8, "", "nflx://search?query="},
		{391, "Marvel", "disneyplus://search?query=Marvel"},
		{350, "Ted Lasso", "tvapp://search?term=Ted%20Lasso"},
		{384, "Game of Thrones", "max://search/Game%20of%20Thrones"},
		{119, "The Boys", "primevideo://search?keyword=The%20Boys"},
		{15, "The Handmaid's Tale", "hulu://search/The%20Handmaid's%20Tale"},
		{531, "Star Trek", "paramountplus://search/Star%20Trek"},
		{498, "The Office", "peacocktv://search/The%20Office"},
		{247, "movie trailer", "youtube://results?search_query=movie%20trailer"},
		{726, "Naruto", "crunchyroll://?q=Naruto"},
		{359, "", "tubitv://"},
	}
	for _, tc := range cases {
		got, ok := registry.DeepLink(tc.providerID, tc.query)
		require.True(t, ok, "provider %d", tc.providerID)
		assert.Equal(t, tc.want, got, "provider %d", tc.providerID)
	}

	_, ok := registry.DeepLink(99999, "test query")
	assert.False(t, ok)
}

func TestDisplayName(t *testing.T) {
	registry := NewRegistry()
	names := map[int]string{
		8:     "Netflix",
		391:   "Disney+",
		350:   "Apple TV+",
		119:   "Prime Video",
		384:   "Max",
		15:    "Hulu",
		531:   "Paramount+",
		498:   "Peacock",
		247:   "YouTube",
		99999: "Watch",
	}
	for id, want := range names {
		assert.Equal(t, want, registry.DisplayName(id), "provider %d", id)
	}
}

func TestProvidersTable(t *testing.T) {
	registry := NewRegistry()
	providers := registry.Providers()
	require.Len(t, providers, len(defaultEntries))

	for i, p := range providers {
		assert.NotZero(t, p.ProviderID)
		assert.NotEmpty(t, p.Name)
		assert.True(t, strings.HasSuffix(p.Scheme, "://"), "scheme of %s", p.Name)
		assert.True(t, strings.HasPrefix(p.WebURL, "https://"), "web url of %s", p.Name)
		assert.True(t, strings.HasPrefix(p.Icon, "logo-"), "icon of %s", p.Name)
		if i > 0 {
			assert.LessOrEqual(t, providers[i-1].Name, p.Name)
		}
	}

	netflix, ok := registry.Lookup(8)
	require.True(t, ok)
	assert.Equal(t, "nflx://", netflix.Scheme)
	pluto, ok := registry.Lookup(290)
	require.True(t, ok)
	assert.Equal(t, "plutotv://", pluto.Scheme)
}

func TestLookupByName(t *testing.T) {
	registry := NewRegistry()
	cases := map[string]int{
		"Netflix":      8,
		"  netflix ":   8,
		"Apple TV+":    350,
		"apple tv":     2,
		"APPLE-TV":     2,
		"disney plus":  391,
		"HBO Max":      384,
		"Pluto TV":     290,
		"plutotv":      290,
		"Crunchyróll":  726,
		"Amazon Video": 10,
		"iTunes":       2,
	}
	for name, want := range cases {
		p, ok := registry.LookupByName(name)
		require.True(t, ok, "name %q", name)
		assert.Equal(t, want, p.ProviderID, "name %q", name)
	}

	_, ok := registry.LookupByName("Blockbuster")
	assert.False(t, ok)
	_, ok = registry.LookupByName("+++")
	assert.False(t, ok)
}

func TestFind(t *testing.T) {
	registry := NewRegistry()

	p, ok := registry.Find("531")
	require.True(t, ok)
	assert.Equal(t, "Paramount+", p.Name)

	p, ok = registry.Find("paramount+")
	require.True(t, ok)
	assert.Equal(t, 531, p.ProviderID)

	_, ok = registry.Find("424242")
	assert.False(t, ok)
}

func TestSuggest(t *testing.T) {
	registry := NewRegistry()

	cases := map[string]int{
		"Netflx":     8,
		"paramount":  531,
		"Crunchyrol": 726,
		"hbo-max":    384,
		"Tubi T":     359,
	}
	for name, want := range cases {
		p, ok := registry.Suggest(name)
		require.True(t, ok, "name %q", name)
		assert.Equal(t, want, p.ProviderID, "name %q", name)
	}

	_, ok := registry.Suggest("Blockbuster")
	assert.False(t, ok)
}
