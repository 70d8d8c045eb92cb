package scene

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"

	"github.com/Carmen-Shannon/oxy-glass/common"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var (
	// ErrResourceNotFound is returned when an image path does not exist in the source.
	ErrResourceNotFound = errors.New("scene: resource not found")

	// ErrDecodeFailed is returned when image bytes cannot be decoded.
	ErrDecodeFailed = errors.New("scene: decode failed")
)

// ImageSource resolves an asset path to decoded RGBA pixels. Implementations must be safe for
// concurrent use; the loader decodes images in parallel.
type ImageSource interface {
	// Decode reads and decodes one image.
	//
	// Parameters:
	//   - ctx: cancels the decode before it starts
	//   - path: the asset path
	//
	// Returns:
	//   - common.TextureStagingData: the RGBA pixels
	//   - error: an error wrapping ErrResourceNotFound or ErrDecodeFailed
	Decode(ctx context.Context, path string) (common.TextureStagingData, error)
}

type fsImageSource struct {
	fsys fs.FS
}

var _ ImageSource = &fsImageSource{}

// NewFSImageSource creates an ImageSource reading from fsys. PNG, JPEG, BMP and WebP are supported.
func NewFSImageSource(fsys fs.FS) ImageSource {
	return &fsImageSource{fsys: fsys}
}

// NewDirImageSource creates an ImageSource reading from a directory on disk.
func NewDirImageSource(dir string) ImageSource {
	return NewFSImageSource(os.DirFS(dir))
}

func (s *fsImageSource) Decode(ctx context.Context, path string) (common.TextureStagingData, error) {
	if err := ctx.Err(); err != nil {
		return common.TextureStagingData{}, err
	}

	data, err := fs.ReadFile(s.fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return common.TextureStagingData{}, fmt.Errorf("%w: %s", ErrResourceNotFound, path)
		}
		return common.TextureStagingData{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return common.TextureStagingData{}, fmt.Errorf("%w: %s: %v", ErrDecodeFailed, path, err)
	}
	if img.Bounds().Empty() {
		return common.TextureStagingData{}, fmt.Errorf("%w: %s: empty %s image", ErrDecodeFailed, path, format)
	}

	if err := ctx.Err(); err != nil {
		return common.TextureStagingData{}, err
	}
	return common.NewTextureStagingData(img), nil
}
