package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

func docFromHTML(t *testing.T, raw string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("failed to parse HTML: %v", err)
	}
	return doc
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "Strips script and style",
			html: `<html><head><style>body{color:red}</style><script>var x = 1;</script></head>
				<body><p>Hello</p><script>alert("x")</script><p>world</p></body></html>`,
			want: "Hello world",
		},
		{
			name: "Keeps document order",
			html: `<p>a<b>b</b>c</p>`,
			want: "a b c",
		},
		{
			name: "Collapses whitespace",
			html: "<div>  lots \n\n of\t\tspace  </div>",
			want: "lots of space",
		},
		{
			name: "Empty body",
			html: `<html><body></body></html>`,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractText(docFromHTML(t, tt.html), DefaultMaxChars); got != tt.want {
				t.Errorf("ExtractText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractTextTruncates(t *testing.T) {
	page := "<p>" + strings.Repeat("é word ", 2000) + "</p>"
	got := ExtractText(docFromHTML(t, page), DefaultMaxChars)
	if n := utf8.RuneCountInString(got); n != DefaultMaxChars {
		t.Errorf("length = %d runes, want %d", n, DefaultMaxChars)
	}
	if !utf8.ValidString(got) {
		t.Error("truncation produced invalid UTF-8")
	}
}

func TestScrape(t *testing.T) {
	var userAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte(`<html><body><h1>Title</h1><p>Body text</p></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := NewScraper()

	if got := s.Scrape(context.Background(), srv.URL+"/ok"); got != "Title Body text" {
		t.Errorf("Scrape() = %q", got)
	}
	if userAgent != DefaultUserAgent {
		t.Errorf("user agent = %q, want %q", userAgent, DefaultUserAgent)
	}

	got := s.Scrape(context.Background(), srv.URL+"/missing")
	if !strings.HasPrefix(got, "Failed to scrape:") || !strings.Contains(got, "404") {
		t.Errorf("Scrape() on 404 = %q", got)
	}
}

func TestScrapeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	got := NewScraper().Scrape(context.Background(), url)
	if !strings.HasPrefix(got, "Failed to scrape:") {
		t.Errorf("Scrape() = %q, want failure marker", got)
	}
}

func TestScrapeInvalidURL(t *testing.T) {
	got := NewScraper().Scrape(context.Background(), "://bad")
	if !strings.HasPrefix(got, ScrapeErrorPrefix) {
		t.Errorf("Scrape() = %q, want failure marker", got)
	}
}
