// Package navigation classifies raw address-bar input and normalizes
// navigable URLs.
package navigation

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/MrSnakeDoc/orbit/internal/domain"
)

// ErrInvalidURL is returned when URL-like input cannot be parsed.
var ErrInvalidURL = errors.New("navigation: invalid url")

// Kind is the classification of a raw input.
type Kind int

const (
	// KindQuery is a query:// pseudo-scheme input, sent to the model as-is.
	KindQuery Kind = iota
	// KindSearch is free text that is not URL-like.
	KindSearch
	// KindNavigate is a URL-like input.
	KindNavigate
)

func (k Kind) String() string {
	switch k {
	case KindQuery:
		return "query"
	case KindSearch:
		return "search"
	case KindNavigate:
		return "navigate"
	}
	return "unknown"
}

// Destination is the outcome of resolving one input.
type Destination struct {
	Kind Kind

	// Query is the model query text for KindQuery and KindSearch.
	Query string

	// DisplayURL is the trimmed raw input for KindNavigate.
	DisplayURL string

	// URL is the final rewritten address for KindNavigate.
	URL string

	// ForceRedirect means the page forbids embedding and must open
	// in a new top-level context.
	ForceRedirect bool
}

var urlLike = regexp.MustCompile(
	`^(?i:https?://\S+|www\.\S+|[a-z0-9-]+(\.[a-z0-9-]+)*\.(` + tlds + `)(:\d+)?([/?#]\S*)?)$`,
)

const tlds = "com|org|net|io|dev|ai|app|co|edu|gov|mil|int|info|biz|xyz|me|tv|be|uk|de|fr|es|it|nl|ch|se|no|fi|pl|ru|jp|cn|in|br|au|ca|us|eu|rip|sh|gg|so|ly"

// Resolver turns input strings into destinations.
// It is stateless and safe for concurrent use.
type Resolver struct {
	rules []Rule
}

// New returns a resolver with the default rewrite rules.
func New() *Resolver {
	return &Resolver{rules: DefaultRules()}
}

// NewWithRules returns a resolver with a custom rule chain.
func NewWithRules(rules ...Rule) *Resolver {
	return &Resolver{rules: rules}
}

// Resolve classifies input. query:// takes precedence over everything.
// Only KindNavigate inputs can fail, with ErrInvalidURL.
func (r *Resolver) Resolve(input string) (Destination, error) {
	input = strings.TrimSpace(input)

	if q, ok := strings.CutPrefix(input, domain.QueryScheme); ok {
		return Destination{Kind: KindQuery, Query: strings.TrimSpace(q)}, nil
	}
	if !IsURLLike(input) {
		return Destination{Kind: KindSearch, Query: input}, nil
	}

	final, force, err := r.Normalize(input)
	if err != nil {
		return Destination{}, err
	}
	return Destination{
		Kind:          KindNavigate,
		DisplayURL:    input,
		URL:           final,
		ForceRedirect: force,
	}, nil
}

// IsURLLike reports whether s looks like an address rather than a search.
func IsURLLike(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	return urlLike.MatchString(s)
}

// Normalize adds a scheme when missing and applies the rewrite rules in
// order. The first matching rule wins. Normalizing an already normalized
// URL returns it unchanged.
func (r *Resolver) Normalize(raw string) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if !hasScheme(raw) {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", false, fmt.Errorf("%w: missing host in %q", ErrInvalidURL, raw)
	}

	for _, rule := range r.rules {
		out, force, ok := rule.Apply(u)
		if !ok {
			continue
		}
		return out.String(), force, nil
	}
	return u.String(), false, nil
}

func hasScheme(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// MatchHost reports whether host is domain or one of its subdomains.
// "notgithub.com" does not match "github.com".
func MatchHost(host, domain string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	domain = strings.ToLower(domain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}
