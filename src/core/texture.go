// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // texture decoding
	_ "image/png"  // texture decoding

	"golang.org/x/image/draw"
)

// MipLevels returns the length of a full mip chain for an image
// of the given size, down to 1x1.
func MipLevels(width, height int) int {
	levels := 1
	for width > 1 || height > 1 {
		width, height = halve(width), halve(height)
		levels++
	}
	return levels
}

func halve(n int) int {
	if n <= 1 {
		return 1
	}
	return n / 2
}

// GenerateMipChain converts img to RGBA and scales it down by half
// per level until 1x1. Every level starts at the origin and is
// tightly packed, so Pix can be copied straight into a buffer.
func GenerateMipChain(img image.Image) []*image.RGBA {
	b := img.Bounds()
	if b.Empty() {
		return nil
	}

	base := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(base, base.Bounds(), img, b.Min, draw.Src)

	chain := make([]*image.RGBA, 0, MipLevels(b.Dx(), b.Dy()))
	chain = append(chain, base)
	for prev := base; prev.Bounds().Dx() > 1 || prev.Bounds().Dy() > 1; {
		next := image.NewRGBA(image.Rect(0, 0, halve(prev.Bounds().Dx()), halve(prev.Bounds().Dy())))
		draw.BiLinear.Scale(next, next.Bounds(), prev, prev.Bounds(), draw.Src, nil)
		chain = append(chain, next)
		prev = next
	}
	return chain
}

// DecodeTexture decodes a PNG or JPEG image.
func DecodeTexture(data []byte) (image.Image, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("texture decode failed: %w", err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("texture %s image is empty", format)
	}
	return img, nil
}

// Checkerboard returns a size by size texture of cells by cells squares.
func Checkerboard(size, cells int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	light := color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}
	dark := color.RGBA{R: 0x40, G: 0x40, B: 0x50, A: 0xff}
	cell := size / cells
	if cell == 0 {
		cell = 1
	}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetRGBA(x, y, light)
			} else {
				img.SetRGBA(x, y, dark)
			}
		}
	}
	return img
}
