package scraper

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/de5chat/internal/models"
	"golang.org/x/sync/errgroup"
)

const DefaultUserAgent = "Mozilla/5.0 (compatible; DE5ChatBot/1.0)"

type ScraperConfig struct {
	BaseURL          string
	IgnorePatterns   []string
	ContentSelectors []string
	Concurrency      int
	Timeout          time.Duration
	UserAgent        string
	OnProgress       func(url string)
}

type Scraper struct {
	config ScraperConfig
	client *http.Client
	origin *url.URL
}

func NewWithConfig(config ScraperConfig) (*Scraper, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if len(config.ContentSelectors) == 0 {
		config.ContentSelectors = DefaultContentSelectors()
	}

	origin, err := parseOrigin(config.BaseURL)
	if err != nil {
		return nil, err
	}

	return &Scraper{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		origin: origin,
	}, nil
}

func New(baseURL string) (*Scraper, error) {
	return NewWithConfig(ScraperConfig{
		BaseURL: baseURL,
	})
}

// Origin returns the scheme and host the scraper is restricted to.
func (s *Scraper) Origin() string {
	return s.origin.String()
}

// BaseURL returns the seed URL, with an empty path read as the root.
func (s *Scraper) BaseURL() string {
	u, err := url.Parse(s.config.BaseURL)
	if err != nil {
		return s.config.BaseURL
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// DiscoverLinks fetches the seed page and returns the same-origin links it
// references. Any failure is logged and yields an empty result.
func (s *Scraper) DiscoverLinks(ctx context.Context) []string {
	body, _, err := s.fetch(ctx, s.config.BaseURL)
	if err != nil {
		log.Printf("link discovery failed for %s: %v", s.config.BaseURL, err)
		return nil
	}
	defer body.Close()

	links, err := ExtractLinks(body, s.origin.String())
	if err != nil {
		log.Printf("link discovery failed for %s: %v", s.config.BaseURL, err)
		return nil
	}

	filtered := links[:0]
	for _, link := range links {
		if s.ignored(link) {
			continue
		}
		filtered = append(filtered, link)
	}
	return filtered
}

// Load fetches every URL and returns one document per page that produced
// text, in input order. Pages that fail are logged and skipped.
func (s *Scraper) Load(ctx context.Context, urls []string) []models.Document {
	results := make([]*models.Document, len(urls))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)

	for i, u := range urls {
		g.Go(func() error {
			doc, err := s.loadPage(ctx, u)
			if s.config.OnProgress != nil {
				s.config.OnProgress(u)
			}
			if err != nil {
				log.Printf("skipping %s: %v", u, err)
				return nil
			}
			results[i] = doc
			return nil
		})
	}
	_ = g.Wait()

	documents := make([]models.Document, 0, len(urls))
	for _, doc := range results {
		if doc != nil {
			documents = append(documents, *doc)
		}
	}
	return documents
}

func (s *Scraper) loadPage(ctx context.Context, urlStr string) (*models.Document, error) {
	body, resp, err := s.fetch(ctx, urlStr)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err == nil && mediaType != "text/html" && mediaType != "application/xhtml+xml" {
			return nil, &FetchError{URL: urlStr, Message: fmt.Sprintf("unsupported content type %s", mediaType)}
		}
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, &FetchError{URL: urlStr, Message: "failed to parse HTML", Cause: err}
	}

	content := extractMainContent(doc, s.config.ContentSelectors)
	if content == "" {
		return nil, &FetchError{URL: urlStr, Message: "no text content"}
	}

	return &models.Document{
		URL:     urlStr,
		Title:   strings.TrimSpace(doc.Find("title").First().Text()),
		Content: content,
		Metadata: map[string]interface{}{
			"time":         time.Now(),
			"contentType":  resp.Header.Get("Content-Type"),
			"lastModified": resp.Header.Get("Last-Modified"),
		},
	}, nil
}

func (s *Scraper) fetch(ctx context.Context, urlStr string) (io.ReadCloser, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, nil, &FetchError{URL: urlStr, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, &FetchError{URL: urlStr, Message: "HTTP request failed", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, nil, &FetchError{URL: urlStr, Message: fmt.Sprintf("received status code %d", resp.StatusCode)}
	}

	return resp.Body, resp, nil
}

func (s *Scraper) ignored(urlStr string) bool {
	for _, pattern := range s.config.IgnorePatterns {
		if pattern != "" && strings.Contains(urlStr, pattern) {
			return true
		}
	}
	return false
}

func parseOrigin(baseURL string) (*url.URL, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: must have scheme and host", baseURL)
	}
	return &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}, nil
}
