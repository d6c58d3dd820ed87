package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github.com/YuldShah/uptovipnew/internal/domain"
)

// Telegram cannot stream vp9/av01, so mp4/avc is preferred.
var youtubeDefaultFormats = []string{
	"bestvideo[ext=mp4][vcodec!*=av01][vcodec!*=vp09]+bestaudio[ext=m4a]/bestvideo+bestaudio",
	"bestvideo[vcodec^=avc]+bestaudio[acodec^=mp4a]/best[vcodec^=avc]/best",
	"",
}

// YouTubeEngine downloads from YouTube and lists its formats.
type YouTubeEngine struct {
	ytdlpEngine
}

// NewYouTubeEngine creates the YouTube engine.
func NewYouTubeEngine(runner Runner, cfg YtdlpConfig, logger *slog.Logger) *YouTubeEngine {
	e := &YouTubeEngine{ytdlpEngine{
		desc: domain.EngineDescriptor{
			PlatformID: domain.PlatformYouTube,
			Matcher:    isYouTubeURL,
			Priority:   PriorityYouTube,
			Capabilities: domain.Capabilities{
				SupportsQualitySelection: true,
				SupportsAudioOnly:        true,
				SupportsFormatListing:    true,
			},
		},
		runner:        runner,
		cfg:           cfg,
		extractorArgs: youtubeExtractorArgs(cfg.POToken),
		logger:        logger,
	}}
	e.formatChain = e.chainFor
	return e
}

func isYouTubeURL(u *url.URL) bool {
	return hostIs(u.Host, "youtube.com", "youtu.be", "youtube-nocookie.com")
}

func youtubeExtractorArgs(poToken string) string {
	args := []string{"player-client=web,default"}
	if poToken != "" {
		args = append(args, "po_token=web+"+poToken)
	}
	args = append(args, "player-skip=webpage,configs", "comment-sort=top", "max-comments=0")
	return "youtube:" + strings.Join(args, ";")
}

// chainFor returns the ordered -f selectors to try for req.
func (e *YouTubeEngine) chainFor(req domain.DownloadRequest) []string {
	var chain []string
	switch {
	case req.Quality == domain.QualityCustom && req.FormatID != "":
		chain = append(chain, req.FormatID+"+bestaudio/"+req.FormatID)
	case req.WantsAudio():
		return []string{"bestaudio[ext=" + e.cfg.audioFormat() + "]", "bestaudio/best"}
	case req.Quality.MaxHeight() > 0:
		h := req.Quality.MaxHeight()
		chain = append(chain,
			fmt.Sprintf("bestvideo[ext=mp4][height=%d]+bestaudio[ext=m4a]", h),
			fmt.Sprintf("bestvideo[vcodec^=avc][height=%d]+bestaudio[acodec^=mp4a]/best[vcodec^=avc]/best", h),
		)
	}
	return append(chain, youtubeDefaultFormats...)
}

// ListFormats probes rawURL and returns video formats by height then
// bitrate, followed by audio-only formats by bitrate.
func (e *YouTubeEngine) ListFormats(ctx context.Context, rawURL string, auth []AuthSource) ([]domain.FormatDescriptor, error) {
	return withTempDir(func(dir string) ([]domain.FormatDescriptor, error) {
		info, _, err := e.probe(ctx, rawURL, dir, auth)
		if err != nil {
			return nil, err
		}
		return describeFormats(info.Formats), nil
	})
}

func describeFormats(formats []mediaFormat) []domain.FormatDescriptor {
	var video, audio []mediaFormat
	for _, f := range formats {
		switch {
		case f.hasVideo() && f.Height > 0:
			video = append(video, f)
		case !f.hasVideo() && f.hasAudio():
			audio = append(audio, f)
		}
	}

	sort.SliceStable(video, func(i, j int) bool {
		if video[i].Height != video[j].Height {
			return video[i].Height > video[j].Height
		}
		return video[i].TBR > video[j].TBR
	})
	sort.SliceStable(audio, func(i, j int) bool {
		return audio[i].ABR > audio[j].ABR
	})

	out := make([]domain.FormatDescriptor, 0, len(video)+len(audio))
	for _, f := range video {
		label := fmt.Sprintf("%dp %s", f.Height, f.Ext)
		if f.FormatNote != "" {
			label += " (" + f.FormatNote + ")"
		}
		out = append(out, domain.FormatDescriptor{
			ID:                 f.FormatID,
			Label:              label,
			EstimatedSizeBytes: f.size(),
			QualityRank:        len(out) + 1,
			Kind:               domain.FormatKindVideo,
			Height:             f.Height,
			Ext:                f.Ext,
			Codec:              f.VCodec,
		})
	}
	for _, f := range audio {
		out = append(out, domain.FormatDescriptor{
			ID:                 f.FormatID,
			Label:              fmt.Sprintf("audio %.0fk %s", f.ABR, f.Ext),
			EstimatedSizeBytes: f.size(),
			QualityRank:        len(out) + 1,
			Kind:               domain.FormatKindAudio,
			Ext:                f.Ext,
			Codec:              f.ACodec,
		})
	}
	return out
}
