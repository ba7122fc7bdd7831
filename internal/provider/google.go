package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MimeLyc/live-sub-translator/pkg/log"
)

const (
	DefaultEndpoint = "https://translate.googleapis.com/translate_a/single"
	DefaultClientID = "gtx"
)

// GoogleClient calls the public gtx translation endpoint. It is safe for
// concurrent use.
type GoogleClient struct {
	endpoint   string
	clientID   string
	httpClient *http.Client
}

type GoogleOption func(*GoogleClient)

func WithEndpoint(endpoint string) GoogleOption {
	return func(c *GoogleClient) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

func WithClientID(id string) GoogleOption {
	return func(c *GoogleClient) {
		if id != "" {
			c.clientID = id
		}
	}
}

func WithHTTPClient(hc *http.Client) GoogleOption {
	return func(c *GoogleClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func NewGoogleClient(timeout time.Duration, opts ...GoogleOption) *GoogleClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &GoogleClient{
		endpoint: DefaultEndpoint,
		clientID: DefaultClientID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *GoogleClient) Translate(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.TargetLang) == "" {
		return Result{}, NewError(ErrValidation, "target language is required")
	}
	if strings.TrimSpace(req.Text) == "" {
		return Result{Text: req.Text}, nil
	}
	sourceLang := req.SourceLang
	if sourceLang == "" {
		sourceLang = AutoDetect
	}

	query := url.Values{}
	query.Set("client", c.clientID)
	query.Set("sl", sourceLang)
	query.Set("tl", req.TargetLang)
	query.Set("dt", "t")
	query.Set("q", req.Text)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return Result{}, WrapError(err, ErrValidation, "failed to create request")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, WrapError(err, ErrNetwork, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, WrapError(err, ErrNetwork, "failed to read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, NewError(ErrStatus, fmt.Sprintf("translation request failed: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))).
			WithContext("status", resp.StatusCode).
			WithContext("target", req.TargetLang)
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Result{}, WrapError(err, ErrParse, "failed to parse response")
	}

	// Any well-formed body that is not the expected array degrades to the
	// untranslated text.
	data, _ := decoded.([]any)
	result := ParseResponse(data, req.Text)
	if result.SourceLang == "" {
		result.SourceLang = DetectLanguage(req.Text)
	}
	log.Debug("gtx %s -> %s: %q -> %q", result.SourceLang, req.TargetLang, req.Text, result.Text)
	return result, nil
}

// ParseResponse reassembles the ordered translated fragments in data[0]. When
// no fragment is usable the original text is returned unchanged.
func ParseResponse(data []any, original string) Result {
	result := Result{Text: original}
	if len(data) == 0 {
		return result
	}

	if segments, ok := data[0].([]any); ok {
		parts := make([]string, 0, len(segments))
		for _, item := range segments {
			tuple, ok := item.([]any)
			if !ok || len(tuple) == 0 {
				continue
			}
			if fragment, ok := tuple[0].(string); ok {
				parts = append(parts, fragment)
			}
		}
		if len(parts) > 0 {
			result.Text = strings.Join(parts, "")
		}
	}

	if len(data) > 2 {
		if detected, ok := data[2].(string); ok {
			result.SourceLang = detected
		}
	}
	return result
}
