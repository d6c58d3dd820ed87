package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/lrstanley/go-ytdlp"
)

// Invocation is one yt-dlp run.
type Invocation struct {
	URL string

	// Format is the -f selector; empty leaves yt-dlp's default.
	Format string

	// OutputTemplate is the -o template, absolute.
	OutputTemplate string

	CookieFile string
	Browser    string

	// ExtractorArgs is passed verbatim to --extractor-args.
	ExtractorArgs string

	// DumpJSON probes metadata without downloading.
	DumpJSON bool

	// AudioFormat, when set, extracts audio into this container.
	AudioFormat string

	MergeFormat string
	MaxFileSize int64

	// ExternalDownloader names a yt-dlp external downloader such as aria2c.
	ExternalDownloader string
}

// RunOutput is the captured output of a run.
type RunOutput struct {
	Stdout string
	Stderr string
}

// Runner executes yt-dlp.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (*RunOutput, error)
}

// YtdlpRunner runs the yt-dlp binary through go-ytdlp.
type YtdlpRunner struct {
	executable string
}

// NewYtdlpRunner creates a runner. An empty executable uses yt-dlp from PATH.
func NewYtdlpRunner(executable string) *YtdlpRunner {
	return &YtdlpRunner{executable: executable}
}

// Run builds the command line for inv and executes it.
func (r *YtdlpRunner) Run(ctx context.Context, inv Invocation) (*RunOutput, error) {
	cmd := ytdlp.New().NoPlaylist().NoProgress()
	if r.executable != "" {
		cmd = cmd.SetExecutable(r.executable)
	}
	if inv.Format != "" {
		cmd = cmd.Format(inv.Format)
	}
	if inv.OutputTemplate != "" {
		cmd = cmd.Output(inv.OutputTemplate)
	}
	if inv.CookieFile != "" {
		cmd = cmd.Cookies(inv.CookieFile)
	}
	if inv.Browser != "" {
		cmd = cmd.CookiesFromBrowser(inv.Browser)
	}
	if inv.ExtractorArgs != "" {
		cmd = cmd.ExtractorArgs(inv.ExtractorArgs)
	}
	if inv.DumpJSON {
		cmd = cmd.DumpSingleJSON().SkipDownload()
	}
	if inv.AudioFormat != "" {
		cmd = cmd.ExtractAudio().AudioFormat(inv.AudioFormat)
	}
	if inv.MergeFormat != "" {
		cmd = cmd.MergeOutputFormat(inv.MergeFormat)
	}
	if inv.MaxFileSize > 0 {
		cmd = cmd.MaxFileSize(strconv.FormatInt(inv.MaxFileSize, 10))
	}
	if inv.ExternalDownloader != "" {
		cmd = cmd.Downloader(inv.ExternalDownloader)
	}

	res, err := cmd.Run(ctx, inv.URL)
	out := &RunOutput{}
	if res != nil {
		out.Stdout = res.Stdout
		out.Stderr = res.Stderr
	}
	return out, err
}

// mediaInfo is the subset of yt-dlp's info JSON the engines use.
type mediaInfo struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	Ext            string        `json:"ext"`
	IsLive         bool          `json:"is_live"`
	Filesize       int64         `json:"filesize"`
	FilesizeApprox int64         `json:"filesize_approx"`
	Formats        []mediaFormat `json:"formats"`
}

type mediaFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	Height         int     `json:"height"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
	TBR            float64 `json:"tbr"`
	ABR            float64 `json:"abr"`
	FormatNote     string  `json:"format_note"`
}

// Size returns the exact or approximate size, or 0 when unknown.
func (i *mediaInfo) Size() int64 {
	if i.Filesize > 0 {
		return i.Filesize
	}
	return i.FilesizeApprox
}

func (f mediaFormat) size() int64 {
	if f.Filesize > 0 {
		return f.Filesize
	}
	return f.FilesizeApprox
}

func (f mediaFormat) hasVideo() bool {
	return f.VCodec != "" && f.VCodec != "none"
}

func (f mediaFormat) hasAudio() bool {
	return f.ACodec != "" && f.ACodec != "none"
}

func parseMediaInfo(stdout string) (*mediaInfo, error) {
	var info mediaInfo
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		return nil, fmt.Errorf("parse yt-dlp json: %w", err)
	}
	return &info, nil
}
