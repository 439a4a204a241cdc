// Package ingest turns a file, PDF, or web page into plain text that the AI
// gateway can extract a perk from.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

const (
	// DefaultMaxRunes caps the text handed to the model.
	DefaultMaxRunes = 20000

	fetchTimeout = 30 * time.Second
	maxBodyBytes = 2 << 20
	userAgent    = "techperks/1.0 (+https://github.com/kalambet/techperks)"
)

var (
	// ErrUnsupportedURL is returned for URLs that are not http or https.
	ErrUnsupportedURL = errors.New("only http and https URLs are supported")

	// ErrNoText is returned when a source yields no readable text.
	ErrNoText = errors.New("no readable text found")
)

// Source names one input. Exactly one field should be set; Text wins over
// Path, and Path over URL.
type Source struct {
	Text string
	Path string
	URL  string
}

// Reader extracts text from sources.
type Reader struct {
	httpClient *http.Client
	maxRunes   int
}

// NewReader creates a Reader. A nil client gets a default with a timeout;
// maxRunes <= 0 means DefaultMaxRunes.
func NewReader(httpClient *http.Client, maxRunes int) *Reader {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: fetchTimeout}
	}
	if maxRunes <= 0 {
		maxRunes = DefaultMaxRunes
	}
	return &Reader{httpClient: httpClient, maxRunes: maxRunes}
}

// Text returns the plain text of src, whitespace-collapsed and truncated.
func (r *Reader) Text(ctx context.Context, src Source) (string, error) {
	var (
		text string
		err  error
	)
	switch {
	case strings.TrimSpace(src.Text) != "":
		text = src.Text
	case src.Path != "":
		text, err = r.FromFile(src.Path)
	case src.URL != "":
		text, err = r.FromURL(ctx, src.URL)
	default:
		return "", ErrNoText
	}
	if err != nil {
		return "", err
	}
	text = collapseSpace(text)
	if text == "" {
		return "", ErrNoText
	}
	return truncate(text, r.maxRunes), nil
}

// FromFile reads a local file. PDFs are converted to their plain text.
func (r *Reader) FromFile(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return pdfText(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

func pdfText(path string) (string, error) {
	f, doc, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	plain, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	var b strings.Builder
	if _, err := io.Copy(&b, plain); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return b.String(), nil
}

// FromURL fetches a web page and returns its title and visible body text.
func (r *Reader) FromURL(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrUnsupportedURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", u.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: status %d", u.Host, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") {
		data, err := io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("reading body: %w", err)
		}
		return string(data), nil
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}
	return pageText(doc), nil
}

func pageText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, svg, iframe").Remove()

	title := strings.TrimSpace(doc.Find("title").First().Text())
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	text := collapseSpace(body.Text())
	if title == "" {
		return text
	}
	return "Title: " + title + "\n\n" + text
}

// collapseSpace trims s and squeezes every whitespace run to one space,
// keeping paragraph breaks as a single newline.
func collapseSpace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
