package images

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Downloader fetches an absolute URL
type Downloader interface {
	Download(ctx context.Context, rawURL string) ([]byte, string, error)
}

// Fetcher retrieves product images from the static asset tree
type Fetcher struct {
	assetBase string
	client    Downloader
	fs        afero.Fs
}

// NewFetcher creates a fetcher that resolves image references against assetBase
func NewFetcher(assetBase string, client Downloader, fs afero.Fs) *Fetcher {
	return &Fetcher{assetBase: assetBase, client: client, fs: fs}
}

// Resolve turns a server image reference such as /uploads/x.png into an
// absolute URL. Absolute references are returned as is.
func Resolve(assetBase, ref string) string {
	if ref == "" {
		return ""
	}
	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		return ref
	}
	return strings.TrimRight(assetBase, "/") + "/" + strings.TrimLeft(ref, "/")
}

// Download saves the image behind ref to dest. When dest is a directory the
// file keeps its server-side name.
func (f *Fetcher) Download(ctx context.Context, ref, dest string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("product has no image")
	}
	src := Resolve(f.assetBase, ref)

	data, contentType, err := f.client.Download(ctx, src)
	if err != nil {
		return "", fmt.Errorf("failed to download image: %w", err)
	}

	if isDir, _ := afero.IsDir(f.fs, dest); isDir {
		dest = filepath.Join(dest, filepath.Base(ref))
	}
	if err := f.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := afero.WriteFile(f.fs, dest, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image file: %w", err)
	}

	slog.Info("Image saved", "path", dest, "type", contentType, "bytes", len(data))
	return dest, nil
}
