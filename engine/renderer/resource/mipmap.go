package resource

import (
	"image"

	"github.com/Carmen-Shannon/oxy-glass/common"
	xdraw "golang.org/x/image/draw"
)

// MipLevels returns the number of levels in a full mip chain for the given base size.
func MipLevels(width, height int) int {
	levels := 1
	for width > 1 || height > 1 {
		width = max(1, width/2)
		height = max(1, height/2)
		levels++
	}
	return levels
}

// MipChain builds every mip level of an RGBA image on the CPU. Each level halves the previous
// one (never below 1 pixel) with bilinear filtering.
//
// Parameters:
//   - img: tightly packed RGBA pixel data
//
// Returns:
//   - []*image.RGBA: the levels, base level first; the base level shares img's pixels
func MipChain(img common.TextureStagingData) []*image.RGBA {
	width, height := int(img.Width), int(img.Height)
	base := &image.RGBA{
		Pix:    img.Pixels,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}

	levels := make([]*image.RGBA, 0, MipLevels(width, height))
	levels = append(levels, base)
	for prev := base; width > 1 || height > 1; {
		width = max(1, width/2)
		height = max(1, height/2)
		next := image.NewRGBA(image.Rect(0, 0, width, height))
		xdraw.BiLinear.Scale(next, next.Bounds(), prev, prev.Bounds(), xdraw.Src, nil)
		levels = append(levels, next)
		prev = next
	}
	return levels
}
