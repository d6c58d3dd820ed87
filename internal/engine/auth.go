package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/YuldShah/uptovipnew/internal/domain"
	"github.com/YuldShah/uptovipnew/pkg/crypto"
)

// AuthKind is the type of credential an AuthSource provides.
type AuthKind string

const (
	AuthCookieFile AuthKind = "cookie_file"
	AuthBrowser    AuthKind = "browser"
	AuthAnonymous  AuthKind = "anonymous"
)

// Cookie files at or below this size are empty exports and are ignored.
const minCookieFileSize = 100

// AuthSource is one entry of an engine's credential chain.
type AuthSource struct {
	Kind       AuthKind
	Name       string
	CookieFile string
	Browser    string

	passphrase string
}

// String returns a log-safe description of the source.
func (s AuthSource) String() string {
	return string(s.Kind) + ":" + s.Name
}

// CookiePath returns a cookie file yt-dlp can read. Encrypted files are
// decrypted into workDir as a hidden file so the download scan skips it.
func (s AuthSource) CookiePath(workDir string) (string, error) {
	if s.Kind != AuthCookieFile {
		return "", nil
	}
	if !crypto.IsEncryptedFile(s.CookieFile) {
		return s.CookieFile, nil
	}
	if s.passphrase == "" {
		return "", fmt.Errorf("cookie file %s is encrypted and no passphrase is configured", s.Name)
	}

	dst := filepath.Join(workDir, ".cookies-"+s.Name+".txt")
	if err := crypto.DecryptFileTo(s.CookieFile, dst, s.passphrase); err != nil {
		return "", fmt.Errorf("decrypt cookie file %s: %w", s.Name, err)
	}
	return dst, nil
}

// AuthConfig lists the credentials available to engines.
type AuthConfig struct {
	// CookieFile is shared by every platform.
	CookieFile string

	// PlatformCookieFiles take precedence over CookieFile.
	PlatformCookieFiles map[domain.PlatformID]string

	// Browsers to read cookies from, in order.
	Browsers []string

	// Passphrase unlocks cookie files written by pkg/crypto.
	Passphrase string
}

// BuildChain returns the ordered credential chain for platform: platform
// cookie file, shared cookie file, each browser, then anonymous unless the
// platform requires authentication.
func (c AuthConfig) BuildChain(platform domain.PlatformID, requiresAuth bool) []AuthSource {
	var chain []AuthSource

	if path := c.PlatformCookieFiles[platform]; usableCookieFile(path) {
		chain = append(chain, AuthSource{
			Kind:       AuthCookieFile,
			Name:       platform.String(),
			CookieFile: path,
			passphrase: c.Passphrase,
		})
	}
	if usableCookieFile(c.CookieFile) && c.CookieFile != c.PlatformCookieFiles[platform] {
		chain = append(chain, AuthSource{
			Kind:       AuthCookieFile,
			Name:       "shared",
			CookieFile: c.CookieFile,
			passphrase: c.Passphrase,
		})
	}
	for _, b := range c.Browsers {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		chain = append(chain, AuthSource{Kind: AuthBrowser, Name: b, Browser: b})
	}
	if !requiresAuth {
		chain = append(chain, AuthSource{Kind: AuthAnonymous, Name: "anonymous"})
	}
	return chain
}

func usableCookieFile(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Size() > minCookieFileSize
}

// probeChain calls probe with each source until one succeeds. Transient
// failures stop the walk since another credential will not help.
func probeChain[T any](ctx context.Context, platform domain.PlatformID, chain []AuthSource, probe func(AuthSource) (T, error)) (T, AuthSource, error) {
	var zero T
	if len(chain) == 0 {
		return zero, AuthSource{}, domain.NewEngineError(platform, "probe", domain.FailureAuthenticationRequired,
			fmt.Errorf("no credentials configured"))
	}

	var lastErr error
	for _, src := range chain {
		if err := ctx.Err(); err != nil {
			return zero, AuthSource{}, err
		}
		v, err := probe(src)
		if err == nil {
			return v, src, nil
		}
		lastErr = err
		if domain.IsTransient(err) {
			break
		}
	}
	return zero, AuthSource{}, lastErr
}
