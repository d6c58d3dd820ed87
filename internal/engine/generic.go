package engine

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/YuldShah/uptovipnew/internal/domain"
)

// GenericEngine hands any http(s) URL to yt-dlp's extractors.
type GenericEngine struct {
	ytdlpEngine
}

// NewGenericEngine creates the catch-all engine.
func NewGenericEngine(runner Runner, cfg YtdlpConfig, logger *slog.Logger) *GenericEngine {
	return &GenericEngine{ytdlpEngine{
		desc: domain.EngineDescriptor{
			PlatformID: domain.PlatformGeneric,
			Matcher:    func(*url.URL) bool { return true },
			Priority:   PriorityGeneric,
			Capabilities: domain.Capabilities{
				SupportsQualitySelection: true,
				SupportsAudioOnly:        true,
			},
		},
		runner:      runner,
		cfg:         cfg,
		formatChain: genericFormatChain,
		logger:      logger,
	}}
}

// InstagramEngine downloads Instagram and Threads posts. Both platforms
// refuse most anonymous requests, so the anonymous source is never tried.
type InstagramEngine struct {
	ytdlpEngine
}

// NewInstagramEngine creates the Instagram engine.
func NewInstagramEngine(runner Runner, cfg YtdlpConfig, logger *slog.Logger) *InstagramEngine {
	return &InstagramEngine{ytdlpEngine{
		desc: domain.EngineDescriptor{
			PlatformID: domain.PlatformInstagram,
			Matcher: func(u *url.URL) bool {
				return hostIs(u.Host, "instagram.com", "instagr.am", "threads.net", "threads.com")
			},
			Priority: PriorityHostSpecific,
			Capabilities: domain.Capabilities{
				SupportsAudioOnly:      true,
				RequiresAuthentication: true,
			},
		},
		runner:      runner,
		cfg:         cfg,
		formatChain: genericFormatChain,
		logger:      logger,
	}}
}

// genericFormatChain maps a quality tier onto yt-dlp selectors. The last
// entry is always yt-dlp's own default.
func genericFormatChain(req domain.DownloadRequest) []string {
	var chain []string
	if strings.HasPrefix(req.SourceURL, "https://drive.google.com") {
		chain = append(chain, "source")
	}

	switch {
	case req.Quality == domain.QualityCustom && req.FormatID != "":
		chain = append(chain, req.FormatID)
	case req.WantsAudio():
		chain = append(chain, "bestaudio/best")
	case req.Quality.MaxHeight() > 0:
		h := req.Quality.MaxHeight()
		chain = append(chain, fmt.Sprintf("bv*[height<=%d]+ba/b[height<=%d]/b", h, h))
	}
	return append(chain, "")
}
