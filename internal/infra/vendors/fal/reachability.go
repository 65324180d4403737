package fal

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"genstudio-backend/internal/domain"
)

// internalAliases are hostnames only reachable inside our own network.
var internalAliases = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"0.0.0.0":   true,
	"minio":     true,
	"api":       true,
}

// Normalizer decides whether a reference/attachment URL is reachable from
// the vendor network, and inlines unreachable content as a base64 data URI.
// Degradation is best-effort: a failed fetch passes the original URL through
// with a warning instead of failing the job at this layer.
type Normalizer struct {
	http    *http.Client
	timeout time.Duration
	log     *zerolog.Logger
}

func NewNormalizer(timeout time.Duration, log *zerolog.Logger) *Normalizer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Normalizer{http: &http.Client{}, timeout: timeout, log: log}
}

// Normalize returns the URL unchanged when it is empty, already embedded, or
// vendor-reachable; otherwise it fetches the bytes and re-encodes them as a
// data URI.
func (n *Normalizer) Normalize(ctx context.Context, rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return rawURL
	}
	if strings.HasPrefix(strings.ToLower(trimmed), "data:") {
		return rawURL
	}
	if !isPrivateOrLocalURL(trimmed) && !isTunnelURL(trimmed) {
		return rawURL
	}
	dataURI, err := n.fetchAsDataURI(ctx, trimmed)
	if err != nil {
		n.log.Warn().Err(err).Str("url", maskURL(trimmed)).Msg("failed to fetch image for embedding, passing URL as-is")
		return rawURL
	}
	return dataURI
}

// NormalizeAll maps Normalize over a URL list.
func (n *Normalizer) NormalizeAll(ctx context.Context, urls []string) []string {
	out := make([]string, len(urls))
	for i, u := range urls {
		out[i] = n.Normalize(ctx, u)
	}
	return out
}

// RequirePublic is the stricter contract for vendors that cannot accept
// embedded payloads: any private or unreachable URL is rejected with an
// error naming the offending URL.
func RequirePublic(urls []string, label string) error {
	for _, u := range urls {
		if u == "" {
			continue
		}
		if isPrivateOrLocalURL(u) {
			return &domain.UnreachableResourceError{URL: u, Label: label}
		}
	}
	return nil
}

func (n *Normalizer) fetchAsDataURI(ctx context.Context, rawURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	if isTunnelURL(rawURL) {
		req.Header.Set("Ngrok-Skip-Browser-Warning", "1")
	}
	resp, err := n.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch %s: status %d", maskURL(rawURL), resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return "", err
	}
	contentType := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])
	switch contentType {
	case "image/png", "image/jpeg", "image/jpg", "image/webp":
	default:
		contentType = "image/png"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func isPrivateOrLocalURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return true
	}
	if internalAliases[host] {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
	}
	return false
}

// isTunnelURL matches tunneling-service hostnames the vendor network cannot
// resolve back to us.
func isTunnelURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(parsed.Hostname()), "ngrok")
}
