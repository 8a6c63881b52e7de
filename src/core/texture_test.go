// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/korumesh/src/core"
)

func TestMipLevels(t *testing.T) {
	c := qt.New(t)
	tests := []struct {
		width, height, levels int
	}{
		{1, 1, 1},
		{2, 2, 2},
		{256, 256, 9},
		{256, 64, 9},
		{300, 200, 9},
		{1, 16, 5},
	}
	for _, test := range tests {
		c.Assert(core.MipLevels(test.width, test.height), qt.Equals, test.levels, qt.Commentf("%dx%d", test.width, test.height))
	}
}

func TestGenerateMipChain(t *testing.T) {
	c := qt.New(t)
	src := image.NewNRGBA(image.Rect(10, 10, 74, 42))
	fill := color.NRGBA{R: 200, G: 100, B: 50, A: 255}
	for y := src.Rect.Min.Y; y < src.Rect.Max.Y; y++ {
		for x := src.Rect.Min.X; x < src.Rect.Max.X; x++ {
			src.SetNRGBA(x, y, fill)
		}
	}

	chain := core.GenerateMipChain(src)
	c.Assert(chain, qt.HasLen, core.MipLevels(64, 32))

	expected := []image.Point{{64, 32}, {32, 16}, {16, 8}, {8, 4}, {4, 2}, {2, 1}, {1, 1}}
	for idx, level := range chain {
		c.Assert(level.Bounds(), qt.Equals, image.Rectangle{Max: expected[idx]})
		c.Assert(level.Pix, qt.HasLen, expected[idx].X*expected[idx].Y*4)
		got := level.RGBAAt(0, 0)
		c.Assert(got.A, qt.Equals, uint8(255))
		for _, ch := range []struct{ got, want uint8 }{{got.R, 200}, {got.G, 100}, {got.B, 50}} {
			diff := int(ch.got) - int(ch.want)
			c.Assert(diff >= -1 && diff <= 1, qt.IsTrue, qt.Commentf("level %d: %v", idx, got))
		}
	}
}

func TestGenerateMipChainEmpty(t *testing.T) {
	c := qt.New(t)
	c.Assert(core.GenerateMipChain(image.NewRGBA(image.Rectangle{})), qt.IsNil)
}

func TestDecodeTexture(t *testing.T) {
	c := qt.New(t)
	var buf bytes.Buffer
	c.Assert(png.Encode(&buf, core.Checkerboard(16, 4)), qt.IsNil)

	img, err := core.DecodeTexture(buf.Bytes())
	c.Assert(err, qt.IsNil)
	c.Assert(img.Bounds(), qt.Equals, image.Rect(0, 0, 16, 16))

	_, err = core.DecodeTexture([]byte("not an image"))
	c.Assert(err, qt.ErrorMatches, "texture decode failed: .*")
}

func TestCheckerboard(t *testing.T) {
	c := qt.New(t)
	img := core.Checkerboard(8, 2)
	c.Assert(img.Bounds(), qt.Equals, image.Rect(0, 0, 8, 8))
	c.Assert(img.At(0, 0), qt.Equals, img.At(7, 7))
	c.Assert(img.At(0, 0), qt.Not(qt.Equals), img.At(4, 0))
}

func BenchmarkGenerateMipChain(b *testing.B) {
	img := core.Checkerboard(512, 16)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		core.GenerateMipChain(img)
	}
}
