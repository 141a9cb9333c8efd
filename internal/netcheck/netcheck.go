// Package netcheck predicts browser-side network failures from the camera URL
// and the page's own transport.
package netcheck

import (
	"net/netip"
	"net/url"
	"strings"
)

// Detection selects how local camera addresses are recognised.
type Detection string

const (
	// DetectCIDR parses the host as an IP literal and checks private,
	// loopback, link-local and unique-local ranges.
	DetectCIDR Detection = "cidr"

	// DetectHeuristic matches the substrings "192.168.", "10." and "172."
	// anywhere in the URL. It misclassifies hosts like "10.example.com".
	DetectHeuristic Detection = "heuristic"
)

// ParseDetection maps a config string to a [Detection]. Empty means cidr.
func ParseDetection(s string) (Detection, bool) {
	switch Detection(strings.ToLower(strings.TrimSpace(s))) {
	case "", DetectCIDR:
		return DetectCIDR, true
	case DetectHeuristic:
		return DetectHeuristic, true
	default:
		return "", false
	}
}

// IsLocal reports whether rawURL points at a local network address using
// the given detection mode.
func IsLocal(d Detection, rawURL string) bool {
	if d == DetectHeuristic {
		return LooksLocal(rawURL)
	}
	return IsLocalIP(rawURL)
}

// LooksLocal is the substring heuristic used by the browser viewer.
func LooksLocal(rawURL string) bool {
	return strings.Contains(rawURL, "192.168.") ||
		strings.Contains(rawURL, "10.") ||
		strings.Contains(rawURL, "172.")
}

// IsLocalIP reports whether the URL's host is "localhost" or an IP literal in
// a private, loopback, link-local or unique-local range. Hostnames other than
// localhost are never treated as local.
func IsLocalIP(rawURL string) bool {
	host := hostOf(rawURL)
	if host == "" {
		return false
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	return addr.IsPrivate() ||
		addr.IsLoopback() ||
		addr.IsLinkLocalUnicast()
}

// ShowMixedContentWarning reports whether a browser on a secure page will
// block the camera URL before any request is made: the page is served over
// https and the URL's scheme is plain http (case-insensitive).
func ShowMixedContentWarning(pageSecure bool, rawURL string) bool {
	return pageSecure && IsInsecureURL(rawURL)
}

// IsInsecureURL reports whether rawURL starts with "http://", ignoring case.
func IsInsecureURL(rawURL string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(rawURL)), "http://")
}

// hostOf extracts the bare host (no port, no IPv6 brackets) from rawURL.
// URLs without a scheme are parsed as if they had one.
func hostOf(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
