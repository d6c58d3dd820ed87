package fingerprint

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/YuldShah/uptovipnew/internal/domain"
)

// trackingParams are dropped from every URL before hashing.
var trackingParams = map[string]bool{
	"fbclid":   true,
	"gclid":    true,
	"dclid":    true,
	"gbraid":   true,
	"wbraid":   true,
	"msclkid":  true,
	"yclid":    true,
	"igshid":   true,
	"igsh":     true,
	"si":       true,
	"feature":  true,
	"ref":      true,
	"ref_src":  true,
	"ref_url":  true,
	"mc_cid":   true,
	"mc_eid":   true,
	"_ga":      true,
	"spm":      true,
	"share_id": true,
}

var (
	youtubeIDPattern    = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	instagramPathRe     = regexp.MustCompile(`^/(?:[A-Za-z0-9_.]+/)?(?:p|reel|reels|tv)/([A-Za-z0-9_-]+)`)
	pixeldrainPathRe    = regexp.MustCompile(`^/(?:u|api/file|file)/([A-Za-z0-9]+)`)
	youtubePathPrefixes = []string{"/shorts/", "/embed/", "/live/", "/v/", "/e/"}
)

// Normalize returns the canonical form of a raw URL.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty url", domain.ErrInvalidRequest)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", domain.ErrInvalidRequest)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (u.Scheme == "https" && port == "443") || (u.Scheme == "http" && port == "80") {
		port = ""
	}
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")

	if canonical, ok := canonicalize(host, u); ok {
		return canonical, nil
	}

	if port != "" {
		u.Host = host + ":" + port
	} else {
		u.Host = host
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil

	path := u.EscapedPath()
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	if path == "/" {
		path = ""
	}

	query := cleanQuery(host, u.Query())

	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	b.WriteString(u.Host)
	b.WriteString(path)
	if query != "" {
		b.WriteByte('?')
		b.WriteString(query)
	}
	return b.String(), nil
}

// canonicalize collapses known per-platform URL aliases.
func canonicalize(host string, u *url.URL) (string, bool) {
	switch {
	case IsYouTubeHost(host):
		if id := youtubeVideoID(host, u); id != "" {
			return "https://www.youtube.com/watch?v=" + id, true
		}
	case host == "instagram.com":
		if m := instagramPathRe.FindStringSubmatch(u.Path); m != nil {
			return "https://instagram.com/p/" + m[1], true
		}
	case host == "pixeldrain.com":
		if id := PixeldrainID(u); id != "" {
			return "https://pixeldrain.com/u/" + id, true
		}
	}
	return "", false
}

// IsYouTubeHost reports whether host belongs to YouTube. The host must be
// lower case with any www. or m. prefix removed.
func IsYouTubeHost(host string) bool {
	switch host {
	case "youtube.com", "music.youtube.com", "youtu.be", "youtube-nocookie.com":
		return true
	}
	return false
}

func youtubeVideoID(host string, u *url.URL) string {
	var id string
	switch {
	case host == "youtu.be":
		id = strings.Trim(u.Path, "/")
	case u.Path == "/watch":
		id = u.Query().Get("v")
	default:
		for _, prefix := range youtubePathPrefixes {
			if strings.HasPrefix(u.Path, prefix) {
				id = strings.TrimPrefix(u.Path, prefix)
				break
			}
		}
	}
	if i := strings.Index(id, "/"); i >= 0 {
		id = id[:i]
	}
	if !youtubeIDPattern.MatchString(id) {
		return ""
	}
	return id
}

// PixeldrainID extracts the file id from a pixeldrain URL path.
func PixeldrainID(u *url.URL) string {
	m := pixeldrainPathRe.FindStringSubmatch(u.Path)
	if m == nil {
		return ""
	}
	return m[1]
}

func cleanQuery(host string, values url.Values) string {
	type pair struct{ k, v string }
	var pairs []pair
	for k, vs := range values {
		lk := strings.ToLower(k)
		if trackingParams[lk] || strings.HasPrefix(lk, "utm_") {
			continue
		}
		if lk == "s" && (host == "x.com" || host == "twitter.com") {
			continue
		}
		// A YouTube start offset selects the same media.
		if lk == "t" && IsYouTubeHost(host) {
			continue
		}
		for _, v := range vs {
			pairs = append(pairs, pair{k, strings.TrimSpace(v)})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p.v == "" {
			parts = append(parts, url.QueryEscape(p.k))
			continue
		}
		parts = append(parts, url.QueryEscape(p.k)+"="+url.QueryEscape(p.v))
	}
	return strings.Join(parts, "&")
}
