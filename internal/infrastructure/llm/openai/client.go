package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/markhub/classifier/internal/core/domain"
)

// Options tune request shaping and the fallback strategy. Zero values
// are replaced with the defaults observed to work against OpenAI and
// Gemini OpenAI-compat endpoints.
type Options struct {
	Temperature         float64
	FolderMaxTokens     int
	TagMaxTokens        int
	RequestTimeout      time.Duration
	FallbackConfidence  float64
	FirstPickConfidence float64
}

func (o Options) normalize() Options {
	if o.Temperature <= 0 {
		o.Temperature = 0.3
	}
	if o.FolderMaxTokens <= 0 {
		o.FolderMaxTokens = 500
	}
	if o.TagMaxTokens <= 0 {
		o.TagMaxTokens = 200
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.FallbackConfidence <= 0 {
		o.FallbackConfidence = 0.3
	}
	if o.FirstPickConfidence <= 0 {
		o.FirstPickConfidence = 0.2
	}
	return o
}

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	opts       Options
	httpClient *http.Client
}

func New(baseURL, apiKey, model string, opts Options) *Client {
	opts = opts.normalize()
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.RequestTimeout},
	}
}

func (c *Client) validateConfig() error {
	switch {
	case c.apiKey == "":
		return domain.WrapError(domain.ErrConfiguration, "ai service", errors.New("api key is not set"))
	case c.baseURL == "":
		return domain.WrapError(domain.ErrConfiguration, "ai service", errors.New("api base url is not set"))
	case c.model == "":
		return domain.WrapError(domain.ErrConfiguration, "ai service", errors.New("model name is not set"))
	}
	return nil
}

// GetFolderRecommendation asks the model to pick one of candidates for
// the bookmark. Unparseable or invalid answers degrade to the fallback
// strategy rather than failing the call.
func (c *Client) GetFolderRecommendation(ctx context.Context, bookmark domain.Bookmark, candidates []domain.Folder) (*domain.FolderRecommendation, error) {
	if err := c.validateConfig(); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	content, err := c.chatCompletion(ctx, "folder recommendation", buildFolderMessages(bookmark, candidates), c.opts.FolderMaxTokens, true)
	if err != nil {
		return nil, err
	}
	return c.parseFolderRecommendation(content, candidates), nil
}

func (c *Client) parseFolderRecommendation(content string, candidates []domain.Folder) *domain.FolderRecommendation {
	var parsed struct {
		FolderID        string  `json:"folderId"`
		FolderName      string  `json:"folderName"`
		SuggestedFolder string  `json:"suggested_folder"`
		Confidence      float64 `json:"confidence"`
		Reason          string  `json:"reason"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(stripMarkdownFence(content))), &parsed); err != nil {
		return c.fallbackRecommendation(candidates)
	}

	folder := findCandidate(candidates, parsed.FolderID, firstNonEmpty(parsed.FolderName, parsed.SuggestedFolder))
	if folder == nil {
		// The model referenced a folder outside the candidate list.
		return c.fallbackRecommendation(candidates)
	}

	confidence := parsed.Confidence
	if confidence == 0 {
		confidence = 0.5
	}
	return &domain.FolderRecommendation{
		FolderID:   folder.ID,
		FolderName: folder.Title,
		Confidence: clamp01(confidence),
		Reason:     parsed.Reason,
	}
}

// fallbackRecommendation is the named failure-path strategy: prefer a
// generic bucket, else the first candidate at lower confidence.
func (c *Client) fallbackRecommendation(candidates []domain.Folder) *domain.FolderRecommendation {
	if len(candidates) == 0 {
		return nil
	}

	genericNames := []string{"其他", "未分类", "Other", "Uncategorized", "书签栏"}
	for _, name := range genericNames {
		for i := range candidates {
			if strings.Contains(strings.ToLower(candidates[i].Title), strings.ToLower(name)) {
				return &domain.FolderRecommendation{
					FolderID:   candidates[i].ID,
					FolderName: candidates[i].Title,
					Confidence: c.opts.FallbackConfidence,
					Reason:     "AI service unavailable, generic folder selected",
					Fallback:   true,
				}
			}
		}
	}

	return &domain.FolderRecommendation{
		FolderID:   candidates[0].ID,
		FolderName: candidates[0].Title,
		Confidence: c.opts.FirstPickConfidence,
		Reason:     "AI service unavailable, first folder selected",
		Fallback:   true,
	}
}

// GenerateTags asks the model to suggest tags for the page. When
// existingTags is non-empty the prompt steers the model toward that
// vocabulary, but the model's answer is returned as-is. Unlike folder
// suggestion there is no fallback: a response that cannot be parsed is
// an error for the caller.
func (c *Client) GenerateTags(ctx context.Context, title, pageContent string, existingTags []string) ([]string, error) {
	if err := c.validateConfig(); err != nil {
		return nil, err
	}

	content, err := c.chatCompletion(ctx, "tag generation", buildTagMessages(title, pageContent, existingTags), c.opts.TagMaxTokens, true)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Tags []string `json:"tags"`
	}
	cleaned := extractJSONObject(stripMarkdownFence(content))
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, &ParseError{
			Raw: content,
			Err: domain.WrapError(domain.ErrParse, "parse tag suggestion", err),
		}
	}

	tags := make([]string, 0, len(parsed.Tags))
	for _, tag := range parsed.Tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags, nil
}

// TestConnection performs a cheap round trip to verify credentials and
// endpoint reachability.
func (c *Client) TestConnection(ctx context.Context) error {
	if err := c.validateConfig(); err != nil {
		return err
	}
	_, err := c.chatCompletion(ctx, "connection test", []message{
		{Role: "user", Content: "Reply with the single word: ok"},
	}, 10, false)
	return err
}

func findCandidate(candidates []domain.Folder, id, name string) *domain.Folder {
	for i := range candidates {
		if id != "" && candidates[i].ID == id {
			return &candidates[i]
		}
	}
	for i := range candidates {
		if name != "" && strings.EqualFold(strings.TrimSpace(candidates[i].Title), strings.TrimSpace(name)) {
			return &candidates[i]
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// stripMarkdownFence removes a ```json ... ``` (or bare ```) wrapper
// some models insist on producing.
func stripMarkdownFence(raw string) string {
	s := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(s, "```json"):
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimSuffix(s, "```")
	case strings.HasPrefix(s, "```"):
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
