package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// SearchResult is a single search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher runs a web search.
type Searcher interface {
	Search(ctx context.Context, query string, count int) ([]SearchResult, error)
}

// StatusError is a non-2xx answer from a search service.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s search error (%d): %s", e.Service, e.Code, e.Body)
}

// Keys holds search API credentials. Empty keys are skipped.
type Keys struct {
	SerpAPI string
	Brave   string
	Tavily  string
}

// NewSearcher picks SerpAPI, then Brave, then Tavily, falling back to
// DuckDuckGo which needs no key.
func NewSearcher(keys Keys, client *http.Client) Searcher {
	if client == nil {
		client = http.DefaultClient
	}
	switch {
	case keys.SerpAPI != "":
		return &SerpAPI{APIKey: keys.SerpAPI, Client: client}
	case keys.Brave != "":
		return &Brave{APIKey: keys.Brave, Client: client}
	case keys.Tavily != "":
		return &Tavily{APIKey: keys.Tavily, Client: client}
	}
	return &DuckDuckGo{Client: client}
}

func getJSON(ctx context.Context, client *http.Client, service string, req *http.Request, out any) error {
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%s search failed: %w", service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Service: service, Code: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", service, err)
	}
	return nil
}

// SerpAPI searches Google through serpapi.com.
type SerpAPI struct {
	APIKey  string
	BaseURL string // default https://serpapi.com/search.json
	Client  *http.Client
}

// Search implements Searcher.
func (s *SerpAPI) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	base := s.BaseURL
	if base == "" {
		base = "https://serpapi.com/search.json"
	}
	q := url.Values{}
	q.Set("engine", "google")
	q.Set("q", query)
	q.Set("api_key", s.APIKey)
	q.Set("num", fmt.Sprint(count))

	req, err := http.NewRequest(http.MethodGet, base+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var serpResp struct {
		OrganicResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic_results"`
		Error string `json:"error"`
	}
	if err := getJSON(ctx, client(s.Client), "serpapi", req, &serpResp); err != nil {
		return nil, err
	}
	if serpResp.Error != "" && len(serpResp.OrganicResults) == 0 {
		return nil, fmt.Errorf("serpapi: %s", serpResp.Error)
	}

	results := make([]SearchResult, 0, len(serpResp.OrganicResults))
	for _, r := range serpResp.OrganicResults {
		if r.Link == "" {
			continue
		}
		results = append(results, SearchResult{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
	}
	return results, nil
}

// Brave searches using the Brave Search API.
type Brave struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

// Search implements Searcher.
func (b *Brave) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	base := b.BaseURL
	if base == "" {
		base = "https://api.search.brave.com/res/v1/web/search"
	}
	q := url.Values{}
	q.Set("q", query)
	q.Set("count", fmt.Sprint(count))

	req, err := http.NewRequest(http.MethodGet, base+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.APIKey)

	var braveResp struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := getJSON(ctx, client(b.Client), "brave", req, &braveResp); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(braveResp.Web.Results))
	for _, r := range braveResp.Web.Results {
		results = append(results, SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Description})
	}
	return results, nil
}

// Tavily searches using the Tavily API.
type Tavily struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

// Search implements Searcher.
func (t *Tavily) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	base := t.BaseURL
	if base == "" {
		base = "https://api.tavily.com/search"
	}
	body, _ := json.Marshal(map[string]interface{}{
		"api_key":     t.APIKey,
		"query":       query,
		"max_results": count,
	})
	req, err := http.NewRequest(http.MethodPost, base, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var tavilyResp struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := getJSON(ctx, client(t.Client), "tavily", req, &tavilyResp); err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(tavilyResp.Results))
	for _, r := range tavilyResp.Results {
		results = append(results, SearchResult{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return results, nil
}

// DuckDuckGo scrapes the DuckDuckGo HTML endpoint. No API key needed.
type DuckDuckGo struct {
	BaseURL string // default https://html.duckduckgo.com/html/
	Client  *http.Client
}

// Search implements Searcher.
func (d *DuckDuckGo) Search(ctx context.Context, query string, count int) ([]SearchResult, error) {
	base := d.BaseURL
	if base == "" {
		base = "https://html.duckduckgo.com/html/"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil, err
	}
	// Mimic a simple text browser
	req.Header.Set("User-Agent", "Lynx/2.8.9rel.1 libwww-FM/2.14")
	req.Header.Set("Accept", "text/html")

	resp, err := client(d.Client).Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Service: "duckduckgo", Code: resp.StatusCode}
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse duckduckgo response: %w", err)
	}
	return parseDuckDuckGo(doc, count), nil
}

// parseDuckDuckGo collects <a class="result__a"> links and the
// <a class="result__snippet"> that follows each.
func parseDuckDuckGo(doc *html.Node, count int) []SearchResult {
	var results []SearchResult
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(results) >= count && count > 0 {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			switch {
			case hasClass(n, "result__a"):
				href := resultURL(attr(n, "href"))
				if strings.HasPrefix(href, "http") {
					results = append(results, SearchResult{Title: nodeText(n), URL: href})
				}
				return
			case hasClass(n, "result__snippet"):
				if len(results) > 0 && results[len(results)-1].Snippet == "" {
					results[len(results)-1].Snippet = nodeText(n)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results
}

// resultURL unwraps DuckDuckGo's redirect links (//duckduckgo.com/l/?uddg=...).
func resultURL(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

func client(c *http.Client) *http.Client {
	if c == nil {
		return http.DefaultClient
	}
	return c
}
