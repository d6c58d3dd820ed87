// Package engine implements the download engines and their registry.
package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/YuldShah/uptovipnew/internal/domain"
)

// Engine fetches media for one platform.
type Engine interface {
	// Descriptor returns the static registration data.
	Descriptor() domain.EngineDescriptor

	// Fetch downloads the requested media into in.WorkDir.
	Fetch(ctx context.Context, in FetchInput) (*Download, error)
}

// FormatLister is implemented by engines that can enumerate upstream formats.
type FormatLister interface {
	ListFormats(ctx context.Context, rawURL string, auth []AuthSource) ([]domain.FormatDescriptor, error)
}

// FetchInput carries everything an engine needs for one fetch.
type FetchInput struct {
	Request domain.DownloadRequest

	// WorkDir is an empty directory owned by this fetch.
	WorkDir string

	// Auth is the ordered credential chain to try.
	Auth []AuthSource
}

// Download is a file produced by an engine.
type Download struct {
	Path  string
	Size  int64
	Kind  domain.ArtifactKind
	Title string
	Ext   string
}

// FileName returns the base name of the downloaded file.
func (d *Download) FileName() string {
	return filepath.Base(d.Path)
}

var (
	videoExts = map[string]bool{
		".mp4": true, ".mkv": true, ".webm": true, ".mov": true, ".avi": true,
		".flv": true, ".m4v": true, ".3gp": true, ".ts": true,
	}
	audioExts = map[string]bool{
		".mp3": true, ".m4a": true, ".aac": true, ".opus": true, ".ogg": true,
		".flac": true, ".wav": true, ".oga": true,
	}
)

// KindFromExt guesses the delivery kind from a file extension.
func KindFromExt(ext string) domain.ArtifactKind {
	ext = strings.ToLower(ext)
	switch {
	case videoExts[ext]:
		return domain.ArtifactVideo
	case audioExts[ext]:
		return domain.ArtifactAudio
	}
	return domain.ArtifactDocument
}

// largestFile returns the biggest regular file in dir, skipping partial
// downloads and sidecar files.
func largestFile(dir string) (string, int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", 0, err
	}

	var best string
	var bestSize int64 = -1
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".part") || strings.HasSuffix(name, ".ytdl") ||
			strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Size() > bestSize {
			best = filepath.Join(dir, name)
			bestSize = info.Size()
		}
	}
	if best == "" {
		return "", 0, os.ErrNotExist
	}
	return best, bestSize, nil
}
