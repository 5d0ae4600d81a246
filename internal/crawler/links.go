package crawler

import (
	"net/url"
	"strings"
)

// ResolveLinks resolves the page's raw hrefs against its base and keeps
// absolute http(s) URLs in NormalizeURL form. Fragment-only hrefs are
// dropped and duplicates collapse to their first occurrence.
func ResolveLinks(page Page) []string {
	base, err := url.Parse(page.URL)
	if err != nil {
		return nil
	}
	if page.BaseURL != "" {
		if ref, err := url.Parse(strings.TrimSpace(page.BaseURL)); err == nil {
			base = base.ResolveReference(ref)
		}
	}

	seen := make(map[string]struct{}, len(page.Links))
	out := make([]string, 0, len(page.Links))
	for _, href := range page.Links {
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			continue
		}
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			continue
		}
		if abs.Host == "" {
			continue
		}
		resolved := canonical(abs)
		if _, dup := seen[resolved]; dup {
			continue
		}
		seen[resolved] = struct{}{}
		out = append(out, resolved)
	}
	return out
}

// NormalizeURL returns the form the frontier tracks for an absolute http(s)
// URL: lowercase host, "/" for an empty path and no fragment. Anything else
// is returned trimmed but otherwise unchanged.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return raw
	}
	return canonical(u)
}

func canonical(u *url.URL) string {
	c := *u
	c.Host = strings.ToLower(c.Host)
	if c.Path == "" && c.Opaque == "" {
		c.Path = "/"
		c.RawPath = ""
	}
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}
