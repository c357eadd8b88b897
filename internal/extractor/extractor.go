// Package extractor fetches web pages and reduces them to their main
// readable text.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/roasbeef/pagesum/internal/content"
)

const (
	// DefaultUserAgent is sent with every page fetch.
	DefaultUserAgent = "pagesum/1.0"

	// DefaultMaxBodyBytes caps how much of a page is read.
	DefaultMaxBodyBytes = 5 << 20

	// DefaultCacheSize is the number of pages remembered per extractor.
	DefaultCacheSize = 32

	// MinContentLength is the shortest readability result accepted before
	// falling back to the whole page text.
	MinContentLength = 100

	// RawFallbackLength bounds the text returned when cleanup fails.
	RawFallbackLength = 5000

	// UntitledPage is the title of pages without one.
	UntitledPage = "Untitled"
)

// noiseSelectors are removed before the readability pass.
var noiseSelectors = strings.Join([]string{
	"script", "style", "nav", "header", "footer",
	".advertisement", ".ads", ".sidebar", ".menu", ".popup", ".modal",
	".overlay", "[role='banner']", "[role='navigation']",
	"[role='complementary']",
}, ", ")

var (
	// ErrInvalidURL is returned for URLs that are not absolute http(s).
	ErrInvalidURL = errors.New("invalid url")

	// ErrBadStatus is returned when the page answers with an error status.
	ErrBadStatus = errors.New("unexpected http status")
)

// Result is the extracted main content of a page.
type Result struct {
	Content string
	Title   string
}

// Config tunes an Extractor.
type Config struct {
	UserAgent    string
	MaxBodyBytes int64
	CacheSize    int
}

// DefaultConfig returns the default extractor settings.
func DefaultConfig() Config {
	return Config{
		UserAgent:    DefaultUserAgent,
		MaxBodyBytes: DefaultMaxBodyBytes,
		CacheSize:    DefaultCacheSize,
	}
}

// Extractor fetches pages and extracts their main text. Results are cached
// per URL, including fallback results, so a page is processed once.
type Extractor struct {
	cfg    Config
	client *http.Client
	log    *slog.Logger

	mu    sync.Mutex
	cache map[string]Result
	order []string
}

// New creates an extractor. A nil client uses a client with a 15 second
// timeout.
func New(cfg Config, client *http.Client, log *slog.Logger) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}

	return &Extractor{
		cfg:    cfg,
		client: client,
		log:    log.With("component", "extractor"),
		cache:  make(map[string]Result),
	}
}

// Extract returns the main content of the page at rawURL.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (Result, error) {
	pageURL, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || pageURL.Host == "" ||
		(pageURL.Scheme != "http" && pageURL.Scheme != "https") {

		return Result{}, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	key := pageURL.String()

	if res, ok := e.cached(key); ok {
		e.log.DebugContext(ctx, "Using cached content", "url", key)
		return res, nil
	}

	body, err := e.fetch(ctx, pageURL)
	if err != nil {
		return Result{}, err
	}

	res, err := extractMain(body, pageURL)
	if err != nil {
		e.log.WarnContext(ctx, "Content cleanup failed, using raw text",
			"url", key, "error", err)

		res = rawFallback(body)
	}

	e.store(key, res)

	e.log.DebugContext(ctx, "Content extracted", "url", key,
		"chars", len([]rune(res.Content)))

	return res, nil
}

func (e *Extractor) fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", e.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.cfg.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}

// extractMain strips page chrome and runs readability over what is left.
// Short readability output is replaced by the full visible text when that
// is longer.
func extractMain(body []byte, u *url.URL) (Result, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("parse html: %w", err)
	}

	docTitle := strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find(noiseSelectors).Remove()
	bodyText := content.NormalizeSpace(doc.Find("body").Text())

	article, err := readability.FromDocument(doc.Nodes[0], u)
	if err != nil {
		return Result{}, fmt.Errorf("readability: %w", err)
	}

	res := Result{
		Content: content.NormalizeSpace(article.TextContent),
		Title:   firstNonEmpty(article.Title, docTitle, UntitledPage),
	}

	if len([]rune(res.Content)) < MinContentLength &&
		len(bodyText) > len(res.Content) {

		res.Content = bodyText
	}

	return res, nil
}

// rawFallback returns the first RawFallbackLength characters of the page
// text without any cleanup.
func rawFallback(body []byte) Result {
	var text, title string

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		text = doc.Find("body").Text()
		title = strings.TrimSpace(doc.Find("title").First().Text())
	} else {
		text = string(body)
	}

	runes := []rune(content.NormalizeSpace(text))
	if len(runes) > RawFallbackLength {
		runes = runes[:RawFallbackLength]
	}

	return Result{
		Content: string(runes),
		Title:   firstNonEmpty(title, UntitledPage),
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}

	return ""
}

func (e *Extractor) cached(key string) (Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, ok := e.cache[key]
	return res, ok
}

func (e *Extractor) store(key string, res Result) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.cache[key]; !ok {
		e.order = append(e.order, key)
	}
	e.cache[key] = res

	for len(e.order) > e.cfg.CacheSize {
		delete(e.cache, e.order[0])
		e.order = e.order[1:]
	}
}

// Forget drops the cached result of rawURL so the next Extract refetches.
func (e *Extractor) Forget(rawURL string) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	key := u.String()
	if _, ok := e.cache[key]; !ok {
		return
	}
	delete(e.cache, key)

	for i, k := range e.order {
		if k == key {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}
