package feeds

import (
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/doyensec/safeurl"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"github.com/matthewjhunter/veille/internal/storage"
)

// maxBodyBytes caps how much of a response is read.
const maxBodyBytes = 5 << 20

// Article is one piece of content found at a source, with its body reduced
// to plain text.
type Article struct {
	Title     string
	URL       string
	Content   string
	Published time.Time
}

// FetchResult holds the outcome of fetching one source.
type FetchResult struct {
	Title       string     // feed or page title, empty if absent
	Articles    []Article  // nil when NotModified is true
	NotModified bool       // true when server returned 304
	Validators  Validators // cache headers of a 200 feed response, not yet committed
}

// Validators are the cache headers sent back on conditional GETs.
type Validators struct {
	ETag         string
	LastModified string
}

// IsZero reports whether neither header was present.
func (v Validators) IsZero() bool {
	return v.ETag == "" && v.LastModified == ""
}

// Fetcher retrieves articles from sources. RSS sources are parsed as feeds;
// every other kind is fetched as a single HTML page that yields one article.
// Requests are paced by a shared rate limiter.
type Fetcher struct {
	parser      *gofeed.Parser
	client      *http.Client
	limiter     *rate.Limiter
	userAgent   string
	maxArticles int
	policy      *bluemonday.Policy
	logger      *slog.Logger

	mu    sync.Mutex
	cache map[string]Validators
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client, including its SSRF protection.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// NewFetcher creates a fetcher from the fetch section of cfg. Unless private
// networks are allowed, the HTTP client refuses to connect to loopback,
// private and link-local addresses.
func NewFetcher(cfg *storage.Config, opts ...Option) *Fetcher {
	timeout := time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second

	var client *http.Client
	if cfg.Fetch.AllowPrivateNetworks {
		client = &http.Client{Timeout: timeout}
	} else {
		safeConfig := safeurl.GetConfigBuilder().
			SetTimeout(timeout).
			SetAllowedSchemes("http", "https").
			SetAllowedPorts(80, 443).
			Build()
		client = safeurl.Client(safeConfig).Client
	}

	limit := rate.Inf
	if cfg.Fetch.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.Fetch.RequestsPerSecond)
	}
	burst := max(cfg.Fetch.Burst, 1)

	policy := bluemonday.StrictPolicy()
	policy.AddSpaceWhenStrippingTag(true)

	parser := gofeed.NewParser()
	parser.UserAgent = cfg.Fetch.UserAgent

	f := &Fetcher{
		parser:      parser,
		client:      client,
		limiter:     rate.NewLimiter(limit, burst),
		userAgent:   cfg.Fetch.UserAgent,
		maxArticles: cfg.Fetch.MaxArticlesPerSource,
		policy:      policy,
		logger:      slog.Default(),
		cache:       make(map[string]Validators),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves the current articles of src.
func (f *Fetcher) Fetch(ctx context.Context, src storage.Source) (*FetchResult, error) {
	if _, err := url.ParseRequestURI(src.URL); err != nil {
		return nil, fmt.Errorf("invalid source URL %q: %w", src.URL, err)
	}
	if src.Kind == storage.SourceRSS {
		return f.FetchFeed(ctx, src.URL)
	}
	return f.FetchPage(ctx, src.URL)
}

// get performs a paced GET. When conditional is true the remembered ETag and
// Last-Modified values for rawURL are sent.
func (f *Fetcher) get(ctx context.Context, rawURL string, conditional bool) (*http.Response, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", rawURL, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	if conditional {
		f.mu.Lock()
		v := f.cache[rawURL]
		f.mu.Unlock()
		if v.ETag != "" {
			req.Header.Set("If-None-Match", v.ETag)
		}
		if v.LastModified != "" {
			req.Header.Set("If-Modified-Since", v.LastModified)
		}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	return resp, nil
}

// Commit remembers v as the cache headers for feedURL, making later fetches
// conditional. Call it once every article of the response has been handled;
// a feed whose articles still need work must not be committed.
func (f *Fetcher) Commit(feedURL string, v Validators) {
	if v.IsZero() {
		return
	}
	f.mu.Lock()
	f.cache[feedURL] = v
	f.mu.Unlock()
}

// FetchFeed fetches and parses an RSS or Atom feed using conditional HTTP
// requests. A 304 response skips parsing and returns NotModified=true. The
// response's cache headers are returned in Validators and only take effect
// after Commit.
func (f *Fetcher) FetchFeed(ctx context.Context, feedURL string) (*FetchResult, error) {
	resp, err := f.get(ctx, feedURL, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &FetchResult{NotModified: true}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned status %d", feedURL, resp.StatusCode)
	}

	parsed, err := f.parser.Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", feedURL, err)
	}

	base, _ := url.Parse(feedURL)
	result := &FetchResult{
		Title:    strings.TrimSpace(parsed.Title),
		Articles: []Article{},
		Validators: Validators{
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		},
	}
	for _, item := range parsed.Items {
		if f.maxArticles > 0 && len(result.Articles) >= f.maxArticles {
			break
		}
		link := resolveURL(base, item.Link)
		if link == "" {
			f.logger.Debug("skipping feed item without link", "feed", feedURL, "title", item.Title)
			continue
		}

		// Use content if available, otherwise use description
		body := item.Content
		if body == "" {
			body = item.Description
		}

		article := Article{
			Title:   f.ToText(item.Title),
			URL:     link,
			Content: f.ToText(body),
		}
		if item.PublishedParsed != nil {
			article.Published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			article.Published = *item.UpdatedParsed
		}
		result.Articles = append(result.Articles, article)
	}
	return result, nil
}

// FetchPage fetches an HTML page and extracts its title and main text as a
// single article whose URL is the page URL.
func (f *Fetcher) FetchPage(ctx context.Context, pageURL string) (*FetchResult, error) {
	resp, err := f.get(ctx, pageURL, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page %s returned status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page %s: %w", pageURL, err)
	}

	title := pageTitle(doc)
	content, err := f.pageText(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text from %s: %w", pageURL, err)
	}
	if title == "" && content == "" {
		return nil, fmt.Errorf("page %s has no title or text", pageURL)
	}
	if title == "" {
		title = pageURL
	}

	return &FetchResult{
		Title: title,
		Articles: []Article{{
			Title:   title,
			URL:     pageURL,
			Content: content,
		}},
	}, nil
}

func pageTitle(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

// pageText picks the most specific content container and reduces it to text.
func (f *Fetcher) pageText(doc *goquery.Document) (string, error) {
	doc.Find("script, style, noscript, nav, header, footer, aside, form").Remove()

	sel := doc.Find("article").First()
	if sel.Length() == 0 {
		sel = doc.Find("main").First()
	}
	if sel.Length() == 0 {
		sel = doc.Find("body")
	}
	raw, err := sel.Html()
	if err != nil {
		return "", err
	}
	return f.ToText(raw), nil
}

// ToText strips all markup from s and collapses whitespace.
func (f *Fetcher) ToText(s string) string {
	if s == "" {
		return ""
	}
	text := html.UnescapeString(f.policy.Sanitize(s))
	return strings.Join(strings.Fields(text), " ")
}

func resolveURL(base *url.URL, link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	ref, err := url.Parse(link)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}
