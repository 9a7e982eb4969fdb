// Package web is the fetch collaborator: it turns a question into the text
// of one readable web page.
//
// A Searcher finds candidate pages (SerpAPI, Brave, Tavily, or keyless
// DuckDuckGo). The Fetcher walks the hits in order, skips blocked domains,
// downloads each page with a PageFetcher and returns the first whose text
// has at least MinReadableWords words:
//
//	f, _ := web.NewFetcher(web.NewSearcher(keys, nil), nil, web.Config{Limiter: limiter})
//	content, err := f.Fetch(ctx, "What is recursion?")
//	// content == "Source: https://...\n\n<up to 5000 characters>"
//
// Extracted pages are kept in an LRU cache keyed by URL.
package web
