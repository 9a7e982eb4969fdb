package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewSearcher_Preference(t *testing.T) {
	tests := []struct {
		keys Keys
		want string
	}{
		{Keys{SerpAPI: "s", Brave: "b", Tavily: "t"}, "*web.SerpAPI"},
		{Keys{Brave: "b", Tavily: "t"}, "*web.Brave"},
		{Keys{Tavily: "t"}, "*web.Tavily"},
		{Keys{}, "*web.DuckDuckGo"},
	}
	for _, tt := range tests {
		got := typeName(NewSearcher(tt.keys, nil))
		if got != tt.want {
			t.Errorf("NewSearcher(%+v) = %s, want %s", tt.keys, got, tt.want)
		}
	}
}

func typeName(s Searcher) string {
	switch s.(type) {
	case *SerpAPI:
		return "*web.SerpAPI"
	case *Brave:
		return "*web.Brave"
	case *Tavily:
		return "*web.Tavily"
	case *DuckDuckGo:
		return "*web.DuckDuckGo"
	}
	return "?"
}

func TestSerpAPI_Search(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "what is recursion" || q.Get("api_key") != "key" || q.Get("num") != "10" {
			t.Errorf("query = %v", q)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"organic_results": []map[string]string{
				{"title": "Recursion", "link": "https://a.example/rec", "snippet": "s1"},
				{"title": "No link"},
				{"title": "More", "link": "https://b.example/more"},
			},
		})
	}))
	defer ts.Close()

	s := &SerpAPI{APIKey: "key", BaseURL: ts.URL}
	results, err := s.Search(context.Background(), "what is recursion", 10)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(results) != 2 || results[0].URL != "https://a.example/rec" || results[1].URL != "https://b.example/more" {
		t.Errorf("results = %+v", results)
	}
}

func TestSerpAPI_StatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	_, err := (&SerpAPI{APIKey: "k", BaseURL: ts.URL}).Search(context.Background(), "q", 10)
	se, ok := err.(*StatusError)
	if !ok || se.Code != http.StatusTooManyRequests {
		t.Errorf("err = %v, want StatusError 429", err)
	}
}

func TestBrave_Search(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Subscription-Token") != "bk" {
			t.Errorf("missing token header")
		}
		w.Write([]byte(`{"web":{"results":[{"title":"T","url":"https://x.example","description":"d"}]}}`))
	}))
	defer ts.Close()

	results, err := (&Brave{APIKey: "bk", BaseURL: ts.URL}).Search(context.Background(), "q", 5)
	if err != nil || len(results) != 1 || results[0].Snippet != "d" {
		t.Errorf("results = %+v, err = %v", results, err)
	}
}

func TestTavily_Search(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if body["api_key"] != "tk" || body["query"] != "q" {
			t.Errorf("body = %v", body)
		}
		w.Write([]byte(`{"results":[{"title":"T","url":"https://y.example","content":"c"}]}`))
	}))
	defer ts.Close()

	results, err := (&Tavily{APIKey: "tk", BaseURL: ts.URL}).Search(context.Background(), "q", 5)
	if err != nil || len(results) != 1 || results[0].URL != "https://y.example" {
		t.Errorf("results = %+v, err = %v", results, err)
	}
}

const ddgPage = `<html><body>
<div class="result">
  <a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fen.wikipedia.org%2Fwiki%2FRecursion&amp;rut=abc">Recursion - <b>Wikipedia</b></a>
  <a class="result__snippet" href="#">Recursion occurs when a thing is defined in terms of itself.</a>
</div>
<div class="result">
  <a class="result__a" href="https://direct.example/page">Direct link</a>
</div>
<div class="result">
  <a class="result__a" href="/relative">Internal</a>
</div>
</body></html>`

func TestDuckDuckGo_Search(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "recursion basics" {
			t.Errorf("q = %q", r.URL.Query().Get("q"))
		}
		w.Write([]byte(ddgPage))
	}))
	defer ts.Close()

	results, err := (&DuckDuckGo{BaseURL: ts.URL + "/"}).Search(context.Background(), "recursion basics", 10)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v, want 2", results)
	}
	if results[0].URL != "https://en.wikipedia.org/wiki/Recursion" {
		t.Errorf("unwrapped URL = %q", results[0].URL)
	}
	if results[0].Title != "Recursion - Wikipedia" {
		t.Errorf("title = %q", results[0].Title)
	}
	if results[0].Snippet == "" {
		t.Error("expected snippet on first result")
	}
	if results[1].URL != "https://direct.example/page" {
		t.Errorf("second URL = %q", results[1].URL)
	}
}
