// Package fal implements the vendor adapters for the fal.run HTTP API:
// chat completion via openrouter/router, the image model families
// (Imagen 4, FLUX Pro Ultra, Kling, Gemini 3 Pro Image, Nano Banana Pro)
// and MiniMax speech synthesis.
package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"genstudio-backend/internal/domain"
)

const defaultBaseURL = "https://fal.run"

// Client issues authenticated JSON POSTs against fal endpoints. One client is
// shared by every fal-backed adapter.
type Client struct {
	base  string
	key   string
	http  *http.Client
	debug bool
	log   *zerolog.Logger
}

func NewClient(key, baseURL string, debug bool, log *zerolog.Logger) (*Client, error) {
	if key == "" {
		return nil, &domain.ConfigurationError{Reason: "fal credential not set"}
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		base:  strings.TrimRight(baseURL, "/"),
		key:   key,
		http:  &http.Client{},
		debug: debug,
		log:   log,
	}, nil
}

// Post sends payload to the endpoint and decodes the JSON response into out.
// Non-2xx responses become a VendorError carrying status code and body.
func (c *Client) Post(ctx context.Context, endpoint string, payload any, timeout time.Duration, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", endpoint, err)
	}
	if c.debug {
		c.log.Info().Str("endpoint", endpoint).RawJSON("payload", sanitizePayload(body)).Msg("fal request")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/"+endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+c.key)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fal %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("fal %s read response: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if c.debug {
			c.log.Error().Str("endpoint", endpoint).Int("status", resp.StatusCode).Bytes("body", respBody).Msg("fal error")
		}
		return &domain.VendorError{Vendor: "fal", StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("fal %s decode response: %w", endpoint, err)
		}
	}
	return nil
}

// sanitizePayload shortens long prompts and strips query strings from image
// URLs so debug logs stay readable and leak no presigned tokens.
func sanitizePayload(raw []byte) []byte {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return raw
	}
	if prompt, ok := m["prompt"].(string); ok && len(prompt) > 300 {
		m["prompt"] = fmt.Sprintf("%s... (len=%d)", prompt[:300], len(prompt))
	}
	if urls, ok := m["image_urls"].([]any); ok {
		masked := make([]any, 0, len(urls))
		for _, u := range urls {
			if s, ok := u.(string); ok {
				masked = append(masked, maskURL(s))
			}
		}
		m["image_urls"] = masked
	}
	out, err := json.Marshal(m)
	if err != nil {
		return raw
	}
	return out
}

func maskURL(raw string) string {
	if strings.HasPrefix(raw, "data:") {
		return "data:...(embedded)"
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String()
}
