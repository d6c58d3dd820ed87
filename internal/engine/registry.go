package engine

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/YuldShah/uptovipnew/internal/domain"
)

// Registry holds the engine set ordered by descending priority.
type Registry struct {
	mu      sync.RWMutex
	engines []Engine
}

// NewRegistry creates a registry with the given engines.
func NewRegistry(engines ...Engine) *Registry {
	r := &Registry{}
	for _, e := range engines {
		r.Register(e)
	}
	return r
}

// Register adds an engine, replacing any engine with the same platform ID.
func (r *Registry) Register(e Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := e.Descriptor().PlatformID
	for i, existing := range r.engines {
		if existing.Descriptor().PlatformID == id {
			r.engines = append(r.engines[:i], r.engines[i+1:]...)
			break
		}
	}

	r.engines = append(r.engines, e)
	sort.SliceStable(r.engines, func(i, j int) bool {
		return r.engines[i].Descriptor().Priority > r.engines[j].Descriptor().Priority
	})
}

// Get returns the engine registered for platform.
func (r *Registry) Get(platform domain.PlatformID) (Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.engines {
		if e.Descriptor().PlatformID == platform {
			return e, true
		}
	}
	return nil, false
}

// Descriptors returns the registered descriptors in dispatch order.
func (r *Registry) Descriptors() []domain.EngineDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.EngineDescriptor, 0, len(r.engines))
	for _, e := range r.engines {
		out = append(out, e.Descriptor())
	}
	return out
}

// Select picks the engine for req. A platform hint naming a registered
// engine wins; otherwise the first matcher in priority order does.
func (r *Registry) Select(req domain.DownloadRequest) (Engine, error) {
	u, err := ParseHTTPURL(req.SourceURL)
	if err != nil {
		return nil, err
	}

	if req.PlatformHint != "" {
		if e, ok := r.Get(req.PlatformHint); ok {
			return e, nil
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.engines {
		if e.Descriptor().Matches(u) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrNoEngineAvailable, u.Host)
}

// ParseHTTPURL parses raw and requires an http(s) scheme and a host.
func ParseHTTPURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw != "" && !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoEngineAvailable, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: unsupported url %q", domain.ErrNoEngineAvailable, raw)
	}
	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	return u, nil
}

// hostIs reports whether host equals domain or is a subdomain of it.
func hostIs(host string, domains ...string) bool {
	host = strings.ToLower(host)
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
