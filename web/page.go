package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// maxPageBytes bounds how much of a page body is read.
	maxPageBytes = 1 << 20

	// MaxContentRunes is how much extracted text a page contributes.
	MaxContentRunes = 5000

	// MinReadableWords is the word count below which a page is skipped.
	MinReadableWords = 30

	browserUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

// dropped elements are removed with their whole subtree.
var dropped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Header:   true,
	atom.Noscript: true,
}

// blocks are the elements whose text is kept.
var blocks = map[atom.Atom]bool{
	atom.P:  true,
	atom.Li: true,
	atom.H2: true,
}

// PageFetcher downloads a page and extracts its readable text.
type PageFetcher struct {
	Client    *http.Client
	UserAgent string
}

// NewPageFetcher returns a fetcher with a 10s timeout and a browser user agent.
func NewPageFetcher() *PageFetcher {
	return &PageFetcher{
		Client:    &http.Client{Timeout: 10 * time.Second},
		UserAgent: browserUA,
	}
}

// Fetch downloads pageURL and returns the text of its p, li and h2 elements,
// one block per line.
func (f *PageFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	ua := f.UserAgent
	if ua == "" {
		ua = browserUA
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html")

	resp, err := client(f.Client).Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Service: "page", Code: resp.StatusCode}
	}
	return Extract(io.LimitReader(resp.Body, maxPageBytes))
}

// Extract parses an HTML document and returns the text of its content
// blocks. Scripts, styles and page chrome are skipped.
func Extract(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if dropped[n.DataAtom] {
				return
			}
			if blocks[n.DataAtom] {
				if text := nodeText(n); text != "" {
					lines = append(lines, text)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(lines, "\n"), nil
}

// Readable reports whether text has enough words to be worth critiquing.
func Readable(text string) bool {
	return len(strings.Fields(text)) >= MinReadableWords
}

// Format renders page text the way the scraper hands it on.
func Format(pageURL, text string) string {
	return fmt.Sprintf("Source: %s\n\n%s", pageURL, truncateRunes(text, MaxContentRunes))
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// nodeText returns the whitespace-normalised text under n, skipping
// dropped subtrees.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
		case html.ElementNode:
			if dropped[n.DataAtom] {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
