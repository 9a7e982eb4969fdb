package web

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vinayprograms/refinery/errors"
	"github.com/vinayprograms/refinery/logging"
	"github.com/vinayprograms/refinery/ratelimit"
	"github.com/vinayprograms/refinery/security"
	"github.com/vinayprograms/refinery/telemetry"
)

// ErrNoContent is returned when no search result yields a readable page.
var ErrNoContent = errors.New(errors.ErrCodeNoContent, "no usable educational content found")

// DefaultBlocked lists domains whose pages are never scraped.
var DefaultBlocked = []string{"quora.com", "linkedin.com", "facebook.com"}

// Pages downloads and extracts a single page.
type Pages interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// Config configures a Fetcher.
type Config struct {
	// MaxResults is how many search hits are requested. Default 10.
	MaxResults int

	// Blocked domains are skipped. Nil means DefaultBlocked.
	Blocked []string

	// CacheSize is the number of extracted pages kept. Default 128.
	CacheSize int

	// Limiter paces ratelimit.ResourceSearch and ratelimit.ResourcePage.
	// Resources without a configured capacity are not paced.
	Limiter ratelimit.RateLimiter

	// Screen drops pages that security.Screen flags as prompt injection.
	Screen bool

	Logger *logging.Logger
}

// Fetcher turns a question into page content: search, skip blocked
// domains, return the first readable page.
type Fetcher struct {
	searcher Searcher
	pages    Pages
	cfg      Config
	cache    *lru.Cache[string, string]
	logger   *logging.Logger
}

// NewFetcher creates a Fetcher. A nil pages uses NewPageFetcher.
func NewFetcher(searcher Searcher, pages Pages, cfg Config) (*Fetcher, error) {
	if searcher == nil {
		return nil, errors.InvalidInput("searcher is required")
	}
	if pages == nil {
		pages = NewPageFetcher()
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}
	if cfg.Blocked == nil {
		cfg.Blocked = DefaultBlocked
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 128
	}
	cache, err := lru.New[string, string](cfg.CacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "page cache")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.New()
	}
	return &Fetcher{
		searcher: searcher,
		pages:    pages,
		cfg:      cfg,
		cache:    cache,
		logger:   logger.WithComponent("web"),
	}, nil
}

// Fetch searches for query and returns the first readable page formatted
// as "Source: <url>\n\n<text>". ErrNoContent when nothing qualifies.
func (f *Fetcher) Fetch(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", errors.InvalidInput("query is empty")
	}

	ctx, span := telemetry.GetTracer().StartFetchSpan(ctx, query)
	source, text, tried, err := f.fetch(ctx, query)
	telemetry.GetTracer().EndFetchSpan(span, source, tried, err)
	if err != nil {
		return "", err
	}
	return Format(source, text), nil
}

func (f *Fetcher) fetch(ctx context.Context, query string) (source, text string, tried int, err error) {
	if err := f.pace(ctx, ratelimit.ResourceSearch); err != nil {
		return "", "", 0, err
	}

	start := time.Now()
	results, err := f.searcher.Search(ctx, query, f.cfg.MaxResults)
	if err != nil {
		var se *StatusError
		if stderrors.As(err, &se) && se.Code == http.StatusTooManyRequests && f.cfg.Limiter != nil {
			f.cfg.Limiter.Reduce(ratelimit.ResourceSearch, se.Error())
		}
		return "", "", 0, errors.WrapWithCode(err, errors.ErrCodeUnavailable, "search failed")
	}
	f.logger.Debug("search", map[string]interface{}{
		"results":     len(results),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	for _, r := range results {
		if f.Blocked(r.URL) {
			continue
		}
		tried++
		var ok bool
		text, ok = f.cache.Get(r.URL)
		if !ok {
			if err := f.pace(ctx, ratelimit.ResourcePage); err != nil {
				return "", "", tried, err
			}
			var ferr error
			text, ferr = f.pages.Fetch(ctx, r.URL)
			if ferr != nil {
				if ctx.Err() != nil {
					return "", "", tried, errors.Wrap(ctx.Err(), "fetch interrupted")
				}
				f.logger.Warn("page fetch failed", map[string]interface{}{"url": r.URL, "error": ferr.Error()})
				continue
			}
			f.cache.Add(r.URL, text)
		}
		if !Readable(text) {
			continue
		}
		if f.cfg.Screen {
			if v := security.Screen(text); v.Suspicious {
				f.logger.Warn("page rejected", map[string]interface{}{"url": r.URL, "reasons": strings.Join(v.Reasons, ",")})
				continue
			}
		}
		return r.URL, text, tried, nil
	}
	return "", "", tried, ErrNoContent
}

// Blocked reports whether pageURL belongs to a blocked domain.
func (f *Fetcher) Blocked(pageURL string) bool {
	host := pageURL
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	host = strings.ToLower(host)
	for _, d := range f.cfg.Blocked {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func (f *Fetcher) pace(ctx context.Context, resource string) error {
	if f.cfg.Limiter == nil {
		return nil
	}
	err := f.cfg.Limiter.Acquire(ctx, resource)
	if err == nil || stderrors.Is(err, ratelimit.ErrResourceUnknown) {
		return nil
	}
	return errors.Wrap(err, "rate limit wait on "+resource)
}
