package enhance

import (
	"bytes"
	"image"
	"image/color"
	"testing"
)

func rgb(r, g, b uint8) color.RGBA { return color.RGBA{R: r, G: g, B: b, A: 255} }

// testImage builds a 4x4 RGBA image: dark ink on the left half, a red
// highlight band on the right.
func testImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if x < 2 {
				img.SetRGBA(x, y, rgb(20, 20, 20))
			} else {
				img.SetRGBA(x, y, rgb(230, 40, 40))
			}
		}
	}
	return img
}

func grayPix(t *testing.T, img image.Image) *image.Gray {
	t.Helper()
	g, ok := img.(*image.Gray)
	if !ok {
		t.Fatalf("expected *image.Gray, got %T", img)
	}
	return g
}

func TestApplyNoneIsIdentity(t *testing.T) {
	img := testImage()
	var e Enhancer
	if got := e.Apply(img, ModeNone); got != image.Image(img) {
		t.Fatalf("ModeNone must return the input image untouched")
	}
}

func TestApplyDeterministic(t *testing.T) {
	img := testImage()
	var e Enhancer
	for _, mode := range Modes() {
		a := e.Apply(img, mode)
		b := e.Apply(img, mode)
		ga, ok := a.(*image.Gray)
		if !ok {
			continue // ModeNone
		}
		gb := b.(*image.Gray)
		if !bytes.Equal(ga.Pix, gb.Pix) {
			t.Fatalf("mode %s not deterministic", mode)
		}
	}
}

func TestRemoveRedSaturatesMarks(t *testing.T) {
	var e Enhancer
	g := grayPix(t, e.Apply(testImage(), ModeRemoveRed))
	// Red highlight becomes near-white in the red channel.
	if v := g.GrayAt(3, 1).Y; v != 230 {
		t.Fatalf("red mark should read its red channel value, got %d", v)
	}
	// Ink stays dark.
	if v := g.GrayAt(0, 1).Y; v != 20 {
		t.Fatalf("ink should stay dark, got %d", v)
	}
}

func TestRemoveBlueUsesBlueChannel(t *testing.T) {
	var e Enhancer
	g := grayPix(t, e.Apply(testImage(), ModeRemoveBlue))
	if v := g.GrayAt(3, 1).Y; v != 40 {
		t.Fatalf("expected blue channel value 40, got %d", v)
	}
}

func TestBinarizeThreshold(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 1))
	img.SetGray(0, 0, color.Gray{Y: 141})
	img.SetGray(1, 0, color.Gray{Y: 140})
	out := Binarize(img, DefaultThreshold)
	if out.GrayAt(0, 0).Y != 255 {
		t.Fatalf("141 should binarize to white")
	}
	if out.GrayAt(1, 0).Y != 0 {
		t.Fatalf("140 should binarize to black (cutoff is exclusive)")
	}
}

func TestApplyBinarizeOutputIsBilevel(t *testing.T) {
	e := New(100)
	g := grayPix(t, e.Apply(testImage(), ModeBinarize))
	for i, v := range g.Pix {
		if v != 0 && v != 255 {
			t.Fatalf("pixel %d is %d, expected 0 or 255", i, v)
		}
	}
}

func TestContrastPushesFromMean(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 1))
	img.SetGray(0, 0, color.Gray{Y: 100})
	img.SetGray(1, 0, color.Gray{Y: 200})
	out := Contrast(img, 2.0)
	// Mean 150: 100 -> 50, 200 -> 250.
	if out.GrayAt(0, 0).Y != 50 || out.GrayAt(1, 0).Y != 250 {
		t.Fatalf("unexpected contrast result: %d %d", out.GrayAt(0, 0).Y, out.GrayAt(1, 0).Y)
	}
}

func TestContrastIdentityFactor(t *testing.T) {
	img := grayPix(t, Enhancer{}.Apply(testImage(), ModeGrayscale))
	out := Contrast(img, 1.0)
	if !bytes.Equal(img.Pix, out.Pix) {
		t.Fatalf("factor 1.0 should be identity")
	}
}

func TestDenoiseRemovesSpeckle(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 5, 5))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	img.SetGray(2, 2, color.Gray{Y: 0}) // lone dark speck
	out := Denoise(img)
	if out.GrayAt(2, 2).Y != 255 {
		t.Fatalf("median filter should remove a lone speck, got %d", out.GrayAt(2, 2).Y)
	}
}

func TestSharpenPreservesFlatRegions(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 5, 5))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	out := Sharpen(img)
	// (32-16)*128/16 = 128 on a flat field.
	for i, v := range out.Pix {
		if v != 128 {
			t.Fatalf("flat field changed at %d: %d", i, v)
		}
	}
}

func TestSoftSkipsBinarize(t *testing.T) {
	// Horizontal gradient in the red channel so contrast stretching cannot
	// saturate every pixel.
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetRGBA(x, y, rgb(uint8(100+20*x), 80, 80))
		}
	}
	var e Enhancer
	g := grayPix(t, e.Apply(img, ModeSoft))
	bilevel := true
	for _, v := range g.Pix {
		if v != 0 && v != 255 {
			bilevel = false
			break
		}
	}
	if bilevel {
		t.Fatalf("soft mode must not binarize")
	}
}

func TestParseMode(t *testing.T) {
	for _, m := range Modes() {
		got, err := ParseMode(string(m))
		if err != nil || got != m {
			t.Fatalf("ParseMode(%q) = %v, %v", m, got, err)
		}
	}
	if _, err := ParseMode("sepia"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestNewThresholdBounds(t *testing.T) {
	if New(0).Threshold != DefaultThreshold {
		t.Fatalf("zero threshold should default")
	}
	if New(300).Threshold != DefaultThreshold {
		t.Fatalf("out-of-range threshold should default")
	}
	if New(90).Threshold != 90 {
		t.Fatalf("explicit threshold not kept")
	}
}
