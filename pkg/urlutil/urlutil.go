package urlutil

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var (
	ErrNotAbsolute       = errors.New("url is not absolute")
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
)

// Normalize parses raw as an absolute URL and returns its canonical form.
//
// The normalization follows these rules:
//   - Scheme must be http or https
//   - Scheme and host are lowercased
//   - Default ports are omitted (e.g., :80 for http, :443 for https)
//   - Empty path becomes "/", other paths are kept as-is (trailing slash preserved)
//   - Fragments are removed
//   - Query is kept verbatim
//
// Normalize(Normalize(u).String()) == Normalize(u) for every accepted u.
func Normalize(raw string) (url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return url.URL{}, fmt.Errorf("parse %q: %w", raw, err)
	}
	return NormalizeURL(*parsed)
}

// NormalizeURL applies the same rules as Normalize to an already parsed URL.
func NormalizeURL(sourceUrl url.URL) (url.URL, error) {
	canonical := sourceUrl
	canonical.Scheme = lowerASCII(canonical.Scheme)

	if canonical.Scheme == "" || canonical.Opaque != "" || canonical.Host == "" {
		return url.URL{}, fmt.Errorf("%w: %s", ErrNotAbsolute, sourceUrl.String())
	}
	if canonical.Scheme != "http" && canonical.Scheme != "https" {
		return url.URL{}, fmt.Errorf("%w: %s", ErrUnsupportedScheme, canonical.Scheme)
	}

	canonical.Host = lowerASCII(canonical.Host)
	if host, port := canonical.Hostname(), canonical.Port(); port != "" {
		if (canonical.Scheme == "http" && port == "80") ||
			(canonical.Scheme == "https" && port == "443") {
			if strings.Contains(host, ":") {
				host = "[" + host + "]"
			}
			canonical.Host = host
		}
	}
	// "host:" with an empty port
	canonical.Host = strings.TrimSuffix(canonical.Host, ":")

	if canonical.Path == "" {
		canonical.Path = "/"
		canonical.RawPath = ""
	}

	canonical.Fragment = ""
	canonical.RawFragment = ""

	return canonical, nil
}

// Resolve resolves href against base and normalizes the result.
// A nil base requires href to be absolute.
func Resolve(base *url.URL, href string) (url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return url.URL{}, fmt.Errorf("parse %q: %w", href, err)
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	return NormalizeURL(*ref)
}

// Origin returns "scheme://host/" of a normalized URL.
func Origin(u url.URL) string {
	return u.Scheme + "://" + u.Host + "/"
}

// ParentPrefix returns the URL up to and including the last "/" of its path,
// without query. For "https://example.com/docs/intro?x=1" it returns
// "https://example.com/docs/".
func ParentPrefix(u url.URL) string {
	p := u
	p.RawQuery = ""
	p.ForceQuery = false
	p.Fragment = ""
	p.RawFragment = ""
	s := p.String()
	origin := Origin(u)
	idx := strings.LastIndex(s, "/")
	if idx < len(origin)-1 {
		return origin
	}
	return s[:idx+1]
}

// lowerASCII converts ASCII characters to lowercase without allocating
// when the input is already lowercase.
func lowerASCII(s string) string {
	var needsLower bool
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			needsLower = true
			break
		}
	}
	if !needsLower {
		return s
	}
	b := make([]byte, len(s))
	copy(b, s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}
