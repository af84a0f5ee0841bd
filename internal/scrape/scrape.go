// Package scrape fetches competitor pages and reduces them to plain text
// for prompting.
package scrape

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMaxBytes = 2 << 20
	defaultMaxChars = 4000
	maxDepth        = 64
	concurrency     = 4
	userAgent       = "brandflow-competitor-watch/1.0"
)

var (
	multiSpace   = regexp.MustCompile(`[ \t]+`)
	multiNewline = regexp.MustCompile(`\n{3,}`)
)

// Target is a page to fetch.
type Target struct {
	Name string
	URL  string
}

// Page is the extracted text of one target. Err is set when the fetch
// failed; Text is then empty.
type Page struct {
	Name      string
	URL       string
	Text      string
	Truncated bool
	Err       error
}

// Fetcher downloads pages with a bounded body size.
type Fetcher struct {
	client   *http.Client
	logger   *zap.Logger
	maxBytes int64
	maxChars int
}

// New creates a Fetcher. A nil client gets a 20s timeout client.
func New(client *http.Client, logger *zap.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client:   client,
		logger:   logger.Named("scrape"),
		maxBytes: defaultMaxBytes,
		maxChars: defaultMaxChars,
	}
}

// FetchAll fetches every target, at most four at a time. Failures are
// reported per page; FetchAll itself only fails if ctx is cancelled.
func (f *Fetcher) FetchAll(ctx context.Context, targets []Target) ([]Page, error) {
	pages := make([]Page, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, t := range targets {
		g.Go(func() error {
			text, truncated, err := f.Fetch(gctx, t.URL)
			if err != nil {
				f.logger.Warn("fetch failed", zap.String("competitor", t.Name), zap.String("url", t.URL), zap.Error(err))
			}
			pages[i] = Page{Name: t.Name, URL: t.URL, Text: text, Truncated: truncated, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return pages, nil
}

// Fetch downloads url and returns its text, truncated to the configured
// character limit.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,text/plain;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", url, err)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	var text string
	switch mediaType {
	case "application/pdf":
		text, err = PDFText(body)
	case "text/plain", "text/markdown":
		text = string(body)
	default:
		text, err = HTMLText(bytes.NewReader(body))
	}
	if err != nil {
		return "", false, fmt.Errorf("extracting %s: %w", url, err)
	}

	text, truncated := truncate(normalize(text), f.maxChars)
	return text, truncated, nil
}

// HTMLText returns the visible text of an HTML document.
func HTMLText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	walk(doc, &b, 0)
	return b.String(), nil
}

func walk(n *html.Node, b *strings.Builder, depth int) {
	if depth > maxDepth {
		return
	}
	switch n.Type {
	case html.TextNode:
		if t := strings.TrimSpace(n.Data); t != "" {
			b.WriteString(t)
			b.WriteString(" ")
		}
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "iframe", "svg", "template":
			return
		case "p", "div", "section", "article", "h1", "h2", "h3", "h4", "li", "tr", "br":
			b.WriteString("\n")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, b, depth+1)
	}
}

// PDFText returns the plain text of a PDF document. The pdf package panics
// on broken object tables; those panics come back as errors.
func PDFText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("reading pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return buf.String(), nil
}

func normalize(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(multiSpace.ReplaceAllString(l, " "))
	}
	s = strings.Join(lines, "\n")
	s = multiNewline.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) (string, bool) {
	if utf8.RuneCountInString(s) <= n {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:n]), true
}
