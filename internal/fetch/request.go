package fetch

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/reactor/internal/value"
)

// CacheMode controls whether Fetch reuses a completed instance.
type CacheMode string

const (
	// CacheDefault refreshes only instances that never completed, or whose
	// cache period elapsed.
	CacheDefault CacheMode = ""

	// CacheReload always refreshes.
	CacheReload CacheMode = "reload"
)

// Request holds the options of a request.
//
// Method, Header and Body are part of the instance key. Cache, CachePeriod
// and Shallow only affect how the instance is used.
type Request struct {
	Method string
	Header map[string]string
	Body   string

	Cache       CacheMode
	CachePeriod time.Duration

	// Shallow disables recursive conversion of nested values.
	Shallow bool
}

func (r Request) method() string {
	if r.Method == "" {
		return "GET"
	}
	return strings.ToUpper(r.Method)
}

// options returns the keyed part of the request as plain data.
func (r Request) options() map[string]any {
	opts := map[string]any{}
	if r.Method != "" {
		opts["method"] = strings.ToUpper(r.Method)
	}
	if len(r.Header) > 0 {
		headers := make(map[string]any, len(r.Header))
		for k, v := range r.Header {
			headers[k] = v
		}
		opts["headers"] = headers
	}
	if r.Body != "" {
		opts["body"] = r.Body
	}
	return opts
}

// requestKey identifies a request by URL and keyed options.
func requestKey(target string, req Request) (string, error) {
	data, err := value.Marshal(map[string]any{
		"url":     target,
		"options": req.options(),
	})
	if err != nil {
		return "", fmt.Errorf("request key: %w", err)
	}
	return string(data), nil
}

// resolveURL resolves target against base. An empty target addresses base
// itself.
func resolveURL(base, target string) (string, error) {
	target = strings.TrimSpace(target)
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if target == "" {
		if base == "" {
			return "", fmt.Errorf("empty url and no base url")
		}
		return base, nil
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", target, err)
	}
	if u.IsAbs() || base == "" {
		return u.String(), nil
	}

	b, err := url.Parse(base + "/")
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", base, err)
	}
	return b.ResolveReference(&url.URL{
		Path:     strings.TrimLeft(u.Path, "/"),
		RawQuery: u.RawQuery,
		Fragment: u.Fragment,
	}).String(), nil
}
