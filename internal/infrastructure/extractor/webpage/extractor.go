package webpage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/markhub/classifier/internal/core/domain"
)

const (
	primaryTimeout  = 20 * time.Second
	fallbackTimeout = 30 * time.Second
	maxBodyBytes    = 4 << 20

	primaryUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36 MarkHubBookmarkProcessor/1.0"
	fallbackUserAgent = "MarkHubBookmarkProcessor/1.0"
)

// Extractor fetches a page and produces its visible text plus metadata.
// A direct GET is tried first; pages that refuse the direct fetch or
// render empty go through a reader API that returns pre-extracted text
// without metadata. Both failing is an error.
type Extractor struct {
	fallbackBaseURL string
	primaryClient   *http.Client
	fallbackClient  *http.Client
}

func New(fallbackBaseURL string) *Extractor {
	return &Extractor{
		fallbackBaseURL: strings.TrimRight(fallbackBaseURL, "/"),
		primaryClient:   &http.Client{Timeout: primaryTimeout},
		fallbackClient:  &http.Client{Timeout: fallbackTimeout},
	}
}

func (e *Extractor) Extract(ctx context.Context, pageURL string) (domain.PageContent, error) {
	content, primaryErr := e.extractDirect(ctx, pageURL)
	if primaryErr == nil && content.Content != "" {
		return content, nil
	}
	if primaryErr != nil {
		slog.Warn("page_extract_primary_failed", "url", pageURL, "error", primaryErr)
	} else {
		slog.Warn("page_extract_primary_empty", "url", pageURL)
	}

	fallback, fallbackErr := e.extractViaReader(ctx, pageURL)
	if fallbackErr == nil {
		slog.Info("page_extract_fallback_used", "url", pageURL)
		return fallback, nil
	}

	return domain.PageContent{}, domain.WrapError(domain.ErrTransport, "extract page content",
		fmt.Errorf("all methods failed for %s: primary: %v, fallback: %w", pageURL, primaryErr, fallbackErr))
}

func (e *Extractor) extractDirect(ctx context.Context, pageURL string) (domain.PageContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return domain.PageContent{}, fmt.Errorf("create page request: %w", err)
	}
	req.Header.Set("User-Agent", primaryUserAgent)

	resp, err := e.primaryClient.Do(req)
	if err != nil {
		return domain.PageContent{}, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.PageContent{}, fmt.Errorf("fetch page status: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.PageContent{}, fmt.Errorf("read page body: %w", err)
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return domain.PageContent{}, fmt.Errorf("parse page html: %w", err)
	}

	var content domain.PageContent
	content.Content = visibleText(doc)
	collectMetadata(doc, &content)
	return content, nil
}

type readerResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data string `json:"data"`
}

func (e *Extractor) extractViaReader(ctx context.Context, pageURL string) (domain.PageContent, error) {
	if e.fallbackBaseURL == "" {
		return domain.PageContent{}, fmt.Errorf("reader api is not configured")
	}

	endpoint := fmt.Sprintf("%s/?url=%s&type=json", e.fallbackBaseURL, url.QueryEscape(pageURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.PageContent{}, fmt.Errorf("create reader request: %w", err)
	}
	req.Header.Set("User-Agent", fallbackUserAgent)

	resp, err := e.fallbackClient.Do(req)
	if err != nil {
		return domain.PageContent{}, fmt.Errorf("reader api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.PageContent{}, fmt.Errorf("reader api status: %s", resp.Status)
	}

	var result readerResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.PageContent{}, fmt.Errorf("decode reader response: %w", err)
	}
	if result.Code != 200 || result.Data == "" {
		return domain.PageContent{}, fmt.Errorf("reader api code %d: %s", result.Code, result.Msg)
	}

	// The reader hands back plain text, so metadata stays empty.
	return domain.PageContent{Content: result.Data}, nil
}

func visibleText(root *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			parent := n.Parent
			if parent != nil && parent.Type == html.ElementNode {
				switch parent.Data {
				case "script", "style", "noscript":
					return
				}
			}
			if text := strings.TrimSpace(n.Data); text != "" {
				buf.WriteString(text)
				buf.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return strings.TrimSpace(buf.String())
}

func collectMetadata(n *html.Node, out *domain.PageContent) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "title":
			if n.FirstChild != nil && out.MetaTitle == "" {
				out.MetaTitle = strings.TrimSpace(n.FirstChild.Data)
			}
		case "meta":
			var name, property, content string
			for _, attr := range n.Attr {
				switch attr.Key {
				case "name":
					name = attr.Val
				case "property":
					property = attr.Val
				case "content":
					content = attr.Val
				}
			}
			switch {
			case name == "description":
				out.MetaDescription = content
			case property == "og:title":
				out.OGTitle = content
			case property == "og:description":
				out.OGDescription = content
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectMetadata(c, out)
	}
}
