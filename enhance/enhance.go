// Package enhance implements image preprocessing for OCR input. Each mode
// targets a specific scan defect: faded ink, speckle noise, or colored
// highlighter marks over the text.
package enhance

import (
	"fmt"
	"image"
	"image/color"
	"sort"

	_ "golang.org/x/image/tiff" // scanner output is often TIFF
)

// Mode selects a preprocessing recipe.
type Mode string

const (
	ModeNone       Mode = "none"
	ModeGrayscale  Mode = "grayscale"
	ModeBinarize   Mode = "binarize"
	ModeContrast   Mode = "contrast"
	ModeSharpen    Mode = "sharpen"
	ModeDenoise    Mode = "denoise"
	ModeRemoveRed  Mode = "remove-red"
	ModeRemoveBlue Mode = "remove-blue"
	// ModeSoft is remove-red + contrast + sharpen, without binarize/denoise.
	ModeSoft Mode = "soft"
	// ModeClean is remove-red + contrast + sharpen + denoise + binarize.
	ModeClean Mode = "clean"
	// ModeAll applies every enhancement but no channel removal.
	ModeAll Mode = "all"
)

// Modes lists every recognized mode in a stable order.
func Modes() []Mode {
	return []Mode{
		ModeNone, ModeGrayscale, ModeBinarize, ModeContrast, ModeSharpen,
		ModeDenoise, ModeRemoveRed, ModeRemoveBlue, ModeSoft, ModeClean, ModeAll,
	}
}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown preprocessing mode %q", s)
}

// DefaultThreshold is the binarization cutoff on the 0-255 scale.
const DefaultThreshold = 140

// Enhancer applies preprocessing modes to page images. The zero value uses
// DefaultThreshold. Enhancer carries no mutable state and is safe for
// concurrent use on independent images.
type Enhancer struct {
	// Threshold is the binarization cutoff; pixels above it become white.
	Threshold uint8
}

// New returns an Enhancer with the given binarization threshold, or
// DefaultThreshold when threshold is zero.
func New(threshold int) Enhancer {
	if threshold <= 0 || threshold > 255 {
		return Enhancer{Threshold: DefaultThreshold}
	}
	return Enhancer{Threshold: uint8(threshold)}
}

func (e Enhancer) threshold() uint8 {
	if e.Threshold == 0 {
		return DefaultThreshold
	}
	return e.Threshold
}

// Apply runs the preprocessing recipe for mode. The input is never modified;
// ModeNone returns it unchanged. Output for all other modes is a single
// channel *image.Gray, which downstream OCR engines accept directly.
func (e Enhancer) Apply(img image.Image, mode Mode) image.Image {
	if mode == ModeNone {
		return img
	}

	// Channel extraction must run before any grayscale conversion: a colored
	// highlight saturates to white in its own channel while ink stays dark in
	// every channel.
	gray := extractChannel(img, mode)

	switch mode {
	case ModeGrayscale, ModeRemoveRed, ModeRemoveBlue:
		return gray
	}

	if mode == ModeContrast || mode == ModeAll || mode == ModeClean || mode == ModeSoft {
		gray = Contrast(gray, 2.0)
	}
	if mode == ModeSharpen || mode == ModeAll || mode == ModeClean || mode == ModeSoft {
		gray = Sharpen(gray)
	}
	if mode == ModeDenoise || mode == ModeAll || mode == ModeClean {
		gray = Denoise(gray)
	}
	if mode == ModeBinarize || mode == ModeAll || mode == ModeClean {
		gray = Binarize(gray, e.threshold())
	}
	return gray
}

// extractChannel reduces img to one channel according to mode: the red
// channel for red-mark removal, the blue channel for blue-mark removal, and
// luminance otherwise.
func extractChannel(img image.Image, mode Mode) *image.Gray {
	switch mode {
	case ModeRemoveRed, ModeClean, ModeSoft:
		return channel(img, 0)
	case ModeRemoveBlue:
		return channel(img, 2)
	}
	return Grayscale(img)
}

func channel(img image.Image, idx int) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			var v uint32
			switch idx {
			case 0:
				v = r
			case 1:
				v = g
			default:
				v = bl
			}
			out.SetGray(x, y, color.Gray{Y: uint8(v >> 8)})
		}
	}
	return out
}

// Grayscale converts img to 8-bit luminance.
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return out
}

// Contrast scales pixel values away from the image mean by factor. A factor
// of 1.0 is the identity.
func Contrast(img *image.Gray, factor float64) *image.Gray {
	b := img.Bounds()
	var sum, n int64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			sum += int64(img.GrayAt(x, y).Y)
			n++
		}
	}
	if n == 0 {
		return img
	}
	mean := float64(sum) / float64(n)

	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := mean + factor*(float64(img.GrayAt(x, y).Y)-mean)
			out.SetGray(x, y, color.Gray{Y: clamp8(v)})
		}
	}
	return out
}

// sharpenKernel is a 3x3 edge-enhancement kernel with divisor 16.
var sharpenKernel = [9]int{
	-2, -2, -2,
	-2, 32, -2,
	-2, -2, -2,
}

// Sharpen applies an edge-enhancement convolution. Border pixels are copied
// unchanged.
func Sharpen(img *image.Gray) *image.Gray {
	return convolve3x3(img, sharpenKernel, 16)
}

func convolve3x3(img *image.Gray, k [9]int, div int) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	copyPixels(out, img)
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			var acc int
			i := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					acc += k[i] * int(img.GrayAt(x+dx, y+dy).Y)
					i++
				}
			}
			out.SetGray(x, y, color.Gray{Y: clamp8(float64(acc) / float64(div))})
		}
	}
	return out
}

// Denoise removes salt-and-pepper speckle with a 3x3 median filter. Border
// pixels are copied unchanged.
func Denoise(img *image.Gray) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	copyPixels(out, img)
	var window [9]int
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			i := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					window[i] = int(img.GrayAt(x+dx, y+dy).Y)
					i++
				}
			}
			w := window
			sort.Ints(w[:])
			out.SetGray(x, y, color.Gray{Y: uint8(w[4])})
		}
	}
	return out
}

// Binarize thresholds every pixel: above the cutoff becomes white, the rest
// black. The result stays an 8-bit grayscale image for OCR compatibility.
func Binarize(img *image.Gray, threshold uint8) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.GrayAt(x, y).Y > threshold {
				out.SetGray(x, y, color.Gray{Y: 255})
			} else {
				out.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return out
}

// copyPixels duplicates src into dst row by row. Both share src's bounds;
// strides may differ when src is a sub-image.
func copyPixels(dst, src *image.Gray) {
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		srcRow := src.Pix[src.PixOffset(b.Min.X, y) : src.PixOffset(b.Min.X, y)+b.Dx()]
		dstRow := dst.Pix[dst.PixOffset(b.Min.X, y) : dst.PixOffset(b.Min.X, y)+b.Dx()]
		copy(dstRow, srcRow)
	}
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
