package tools

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	DefaultScrapeTimeout = 20 * time.Second
	DefaultMaxChars      = 5000
	DefaultUserAgent     = "Mozilla/5.0"

	// ScrapeErrorPrefix marks content that could not be fetched.
	ScrapeErrorPrefix = "Failed to scrape: "
)

// PDFReader extracts the text of a PDF document by URL.
type PDFReader interface {
	ReadPDF(ctx context.Context, url string) (string, error)
}

// Scraper reduces a web page to bounded plain text. PDF documents are handed
// to PDF when one is configured.
type Scraper struct {
	MaxChars  int
	UserAgent string
	PDF       PDFReader

	client *http.Client
}

type ScraperOption func(*Scraper)

func WithScrapeTimeout(timeout time.Duration) ScraperOption {
	return func(s *Scraper) { s.client = &http.Client{Timeout: timeout} }
}

func WithMaxChars(n int) ScraperOption {
	return func(s *Scraper) { s.MaxChars = n }
}

func WithScraperClient(client *http.Client) ScraperOption {
	return func(s *Scraper) { s.client = client }
}

func WithPDFReader(r PDFReader) ScraperOption {
	return func(s *Scraper) { s.PDF = r }
}

func NewScraper(opts ...ScraperOption) *Scraper {
	s := &Scraper{
		MaxChars:  DefaultMaxChars,
		UserAgent: DefaultUserAgent,
		client:    &http.Client{Timeout: DefaultScrapeTimeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scrape fetches url and returns its visible text. Failures are returned as a
// "Failed to scrape: <reason>" marker instead of an error so callers can keep
// going on degraded input.
func (s *Scraper) Scrape(ctx context.Context, url string) string {
	text, err := s.scrape(ctx, url)
	if err != nil {
		return ScrapeErrorPrefix + err.Error()
	}
	return text
}

func (s *Scraper) scrape(ctx context.Context, url string) (string, error) {
	// The OCR service downloads the document itself.
	if s.PDF != nil && hasPDFExtension(url) {
		return s.readPDF(ctx, url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%d %s for url: %s", resp.StatusCode, http.StatusText(resp.StatusCode), url)
	}

	if isPDFContent(resp.Header.Get("Content-Type")) {
		if s.PDF == nil {
			return "", fmt.Errorf("unsupported content type application/pdf for url: %s", url)
		}
		return s.readPDF(ctx, url)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	return ExtractText(doc, s.MaxChars), nil
}

func (s *Scraper) readPDF(ctx context.Context, url string) (string, error) {
	text, err := s.PDF.ReadPDF(ctx, url)
	if err != nil {
		return "", err
	}
	return truncateRunes(strings.Join(strings.Fields(text), " "), s.MaxChars), nil
}

func hasPDFExtension(rawURL string) bool {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}

func isPDFContent(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/pdf"
}

// ExtractText drops script and style elements, joins the remaining text with
// single spaces and truncates it to maxChars runes.
func ExtractText(doc *goquery.Document, maxChars int) string {
	doc.Find("script, style").Remove()

	var parts []string
	var walk func(sel *goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) != "#text" {
				walk(c)
				return
			}
			if t := strings.TrimSpace(c.Text()); t != "" {
				parts = append(parts, t)
			}
		})
	}
	walk(doc.Selection)

	text := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
	return truncateRunes(text, maxChars)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
