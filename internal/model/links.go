package model

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// LinkLabel returns a short display label for a URL: its registrable domain
// (eTLD+1) when one can be derived, otherwise the bare host.
func LinkLabel(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	candidate := raw
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}
	parsed, err := url.Parse(candidate)
	if err != nil {
		return raw
	}
	host := parsed.Hostname()
	if host == "" {
		return raw
	}
	if etld, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return strings.TrimPrefix(etld, "www.")
	}
	return strings.TrimPrefix(host, "www.")
}

// Href returns raw as an absolute URL suitable for an anchor.
func Href(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.Contains(raw, "://") || strings.HasPrefix(raw, "mailto:") {
		return raw
	}
	return "https://" + raw
}
