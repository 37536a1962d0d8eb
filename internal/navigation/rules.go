package navigation

import (
	"net/url"
	"regexp"
)

// Rule rewrites a parsed URL. ok is false when the rule does not apply.
// Rules must not mutate u.
type Rule interface {
	Apply(u *url.URL) (out *url.URL, forceRedirect bool, ok bool)
}

// RuleFunc adapts a function to Rule.
type RuleFunc func(u *url.URL) (*url.URL, bool, bool)

func (f RuleFunc) Apply(u *url.URL) (*url.URL, bool, bool) { return f(u) }

// Unembeddable lists hosts that refuse to render inside an iframe.
var Unembeddable = []string{
	"openai.com",
	"chatgpt.com",
	"github.com",
	"gitlab.com",
	"bitbucket.org",
	"stackoverflow.com",
	"twitter.com",
	"x.com",
	"facebook.com",
	"instagram.com",
	"linkedin.com",
	"reddit.com",
	"tiktok.com",
	"discord.com",
	"netflix.com",
	"spotify.com",
	"twitch.tv",
	"amazon.com",
}

// DefaultRules is the rewrite chain in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		BlockHosts(Unembeddable...),
		RuleFunc(youtubeEmbed),
		MirrorHost("medium.com", "scribe.rip"),
		RuleFunc(googleEmbeddable),
	}
}

// BlockHosts forces a top-level redirect for the given hosts and their subdomains.
func BlockHosts(hosts ...string) Rule {
	return RuleFunc(func(u *url.URL) (*url.URL, bool, bool) {
		for _, h := range hosts {
			if MatchHost(u.Hostname(), h) {
				return u, true, true
			}
		}
		return nil, false, false
	})
}

// MirrorHost swaps from (and subdomains) for the embed-friendly mirror host.
func MirrorHost(from, to string) Rule {
	return RuleFunc(func(u *url.URL) (*url.URL, bool, bool) {
		if !MatchHost(u.Hostname(), from) {
			return nil, false, false
		}
		out := *u
		out.Host = to
		out.Scheme = "https"
		return &out, false, true
	})
}

var youtubeID = regexp.MustCompile(`(?:[?&]v=|/v/|/embed/|/shorts/|youtu\.be/)([A-Za-z0-9_-]{11})`)

func youtubeEmbed(u *url.URL) (*url.URL, bool, bool) {
	host := u.Hostname()
	if !MatchHost(host, "youtube.com") && !MatchHost(host, "youtu.be") {
		return nil, false, false
	}
	target := host + u.EscapedPath()
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	m := youtubeID.FindStringSubmatch(target)
	if m == nil {
		return nil, false, false
	}
	return &url.URL{
		Scheme:   "https",
		Host:     "www.youtube.com",
		Path:     "/embed/" + m[1],
		RawQuery: "autoplay=1",
	}, false, true
}

func googleEmbeddable(u *url.URL) (*url.URL, bool, bool) {
	if u.Hostname() != "www.google.com" && u.Hostname() != "google.com" {
		return nil, false, false
	}
	if u.Path != "/search" {
		return nil, false, false
	}
	q := u.Query()
	if q.Get("igu") == "1" {
		return u, false, true
	}
	out := *u
	if out.RawQuery == "" {
		out.RawQuery = "igu=1"
	} else {
		out.RawQuery += "&igu=1"
	}
	return &out, false, true
}
