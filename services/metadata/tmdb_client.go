package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"twowatch/models"
)

const (
	tmdbBaseURL      = "https://api.themoviedb.org/3"
	tmdbImageBaseURL = "https://image.tmdb.org/t/p"
	tmdbLogoSize     = "w92"
	tmdbAttempts     = 3
	tmdbBaseDelay    = 300 * time.Millisecond
)

type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string { return e.msg }

type tmdbClient struct {
	apiKey   string
	language string
	baseURL  string
	httpc    *http.Client
	delay    time.Duration

	// Rate limiting
	throttleMu  sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

func newTMDBClient(apiKey, language string, httpc *http.Client) *tmdbClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &tmdbClient{
		apiKey:      strings.TrimSpace(apiKey),
		language:    language,
		baseURL:     tmdbBaseURL,
		httpc:       httpc,
		delay:       tmdbBaseDelay,
		minInterval: 20 * time.Millisecond, // TMDB has generous rate limits
	}
}

func (c *tmdbClient) isConfigured() bool {
	return c != nil && c.apiKey != ""
}

func (c *tmdbClient) wait() {
	c.throttleMu.Lock()
	defer c.throttleMu.Unlock()
	since := time.Since(c.lastRequest)
	if since < c.minInterval {
		time.Sleep(c.minInterval - since)
	}
	c.lastRequest = time.Now()
}

// doGET fetches endpoint into v, retrying rate limits, server errors and transport failures.
func (c *tmdbClient) doGET(ctx context.Context, endpoint string, params url.Values, v any) error {
	if !c.isConfigured() {
		return ErrNotConfigured
	}

	target, err := url.Parse(endpoint)
	if err != nil {
		return err
	}
	q := target.Query()
	for key, values := range params {
		for _, value := range values {
			q.Add(key, value)
		}
	}
	q.Set("api_key", c.apiKey)
	target.RawQuery = q.Encode()

	return retry.Do(
		func() error {
			c.wait()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}

			resp, err := c.httpc.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return &statusError{status: resp.StatusCode, msg: fmt.Sprintf("tmdb request failed: %s", resp.Status)}
			}
			if resp.StatusCode >= 400 {
				return retry.Unrecoverable(&statusError{status: resp.StatusCode, msg: fmt.Sprintf("tmdb request failed: %s", resp.Status)})
			}

			if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
				return retry.Unrecoverable(fmt.Errorf("decode tmdb response: %w", err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(tmdbAttempts),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			if n > 0 {
				n--
			}
			return c.delay << n
		}),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("[tmdb] request error (attempt %d/%d): %v", n+1, tmdbAttempts, err)
		}),
	)
}

func (c *tmdbClient) endpoint(mediaType models.MediaType, id int64, parts ...string) (string, error) {
	return url.JoinPath(c.baseURL, append([]string{string(mediaType), strconv.FormatInt(id, 10)}, parts...)...)
}

func (c *tmdbClient) languageParams() url.Values {
	lang := strings.TrimSpace(c.language)
	if lang == "" {
		lang = "en-US"
	}
	return url.Values{"language": {lang}}
}

type tmdbDetails struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	VoteAverage  float64 `json:"vote_average"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	IMDBID       string  `json:"imdb_id"`
}

func (d tmdbDetails) displayTitle() string {
	if strings.TrimSpace(d.Title) != "" {
		return strings.TrimSpace(d.Title)
	}
	return strings.TrimSpace(d.Name)
}

func (d tmdbDetails) year() int {
	return parseTMDBYear(d.ReleaseDate, d.FirstAirDate)
}

type tmdbExternalIDsResponse struct {
	IMDBID string `json:"imdb_id"`
}

type tmdbWatchProvider struct {
	ProviderID      int    `json:"provider_id"`
	ProviderName    string `json:"provider_name"`
	LogoPath        string `json:"logo_path"`
	DisplayPriority int    `json:"display_priority"`
}

type tmdbRegionProviders struct {
	Link     string              `json:"link"`
	Flatrate []tmdbWatchProvider `json:"flatrate"`
	Free     []tmdbWatchProvider `json:"free"`
	Ads      []tmdbWatchProvider `json:"ads"`
	Rent     []tmdbWatchProvider `json:"rent"`
	Buy      []tmdbWatchProvider `json:"buy"`
}

type tmdbWatchProvidersResponse struct {
	ID      int64                          `json:"id"`
	Results map[string]tmdbRegionProviders `json:"results"`
}

func (c *tmdbClient) details(ctx context.Context, mediaType models.MediaType, id int64) (tmdbDetails, error) {
	endpoint, err := c.endpoint(mediaType, id)
	if err != nil {
		return tmdbDetails{}, err
	}
	var out tmdbDetails
	if err := c.doGET(ctx, endpoint, c.languageParams(), &out); err != nil {
		return tmdbDetails{}, wrapNotFound(err, mediaType, id)
	}
	return out, nil
}

func (c *tmdbClient) externalIMDBID(ctx context.Context, mediaType models.MediaType, id int64) (string, error) {
	endpoint, err := c.endpoint(mediaType, id, "external_ids")
	if err != nil {
		return "", err
	}
	var out tmdbExternalIDsResponse
	if err := c.doGET(ctx, endpoint, nil, &out); err != nil {
		return "", wrapNotFound(err, mediaType, id)
	}
	return strings.TrimSpace(out.IMDBID), nil
}

func (c *tmdbClient) watchProviders(ctx context.Context, mediaType models.MediaType, id int64) (tmdbWatchProvidersResponse, error) {
	endpoint, err := c.endpoint(mediaType, id, "watch", "providers")
	if err != nil {
		return tmdbWatchProvidersResponse{}, err
	}
	var out tmdbWatchProvidersResponse
	if err := c.doGET(ctx, endpoint, nil, &out); err != nil {
		return tmdbWatchProvidersResponse{}, wrapNotFound(err, mediaType, id)
	}
	return out, nil
}

func wrapNotFound(err error, mediaType models.MediaType, id int64) error {
	var se *statusError
	if errors.As(err, &se) && se.status == http.StatusNotFound {
		return fmt.Errorf("%w: %s/%d", ErrTitleNotFound, mediaType, id)
	}
	return fmt.Errorf("tmdb %s/%d: %w", mediaType, id, err)
}

func parseTMDBYear(primary, fallback string) int {
	for _, value := range []string{primary, fallback} {
		value = strings.TrimSpace(value)
		if len(value) < 4 {
			continue
		}
		if year, err := strconv.Atoi(value[:4]); err == nil && year > 0 {
			return year
		}
	}
	return 0
}

func buildTMDBImage(path, size string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return tmdbImageBaseURL + "/" + size + "/" + strings.TrimPrefix(path, "/")
}
