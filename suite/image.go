package suite

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"

	"golang.org/x/image/draw"

	"github.com/weiihann/heft/store"
	"github.com/weiihann/heft/workload"
)

// Resize limits and the size of the synthesized sample.
const (
	imageLimit    = 800
	sampleWidth   = 1600
	sampleHeight  = 1200
	resizeQuality = 85
)

// buildImage resizes a sample image to fit within 800x800 and encodes the
// result as JPEG. The probe fails when the configured sample cannot be
// decoded.
func buildImage(_ context.Context, env Env) (workload.Body, error) {
	src, err := loadSample(env.ImageSample)
	if err != nil {
		return nil, err
	}

	bounds := fitWithin(src.Bounds(), imageLimit, imageLimit)

	return func(_ context.Context, _ *store.Conn) error {
		dst := image.NewRGBA(bounds)
		draw.CatmullRom.Scale(dst, bounds, src, src.Bounds(), draw.Src, nil)

		if err := jpeg.Encode(io.Discard, dst, &jpeg.Options{Quality: resizeQuality}); err != nil {
			return fmt.Errorf("encode resized image: %w", err)
		}

		return nil
	}, nil
}

func loadSample(path string) (image.Image, error) {
	if path == "" {
		return synthSample(sampleWidth, sampleHeight), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image sample: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image sample %s: %w", path, err)
	}

	return img, nil
}

// synthSample draws a deterministic gradient so the resize has real
// detail to filter.
func synthSample(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: uint8((x ^ y) & 0xff),
				A: 0xff,
			})
		}
	}

	return img
}

// fitWithin scales r down to fit maxW x maxH, keeping its aspect ratio.
// Images already inside the limit keep their size.
func fitWithin(r image.Rectangle, maxW, maxH int) image.Rectangle {
	w, h := r.Dx(), r.Dy()
	if w <= maxW && h <= maxH {
		return image.Rect(0, 0, w, h)
	}

	if w*maxH > h*maxW {
		h = max(h*maxW/w, 1)
		w = maxW
	} else {
		w = max(w*maxH/h, 1)
		h = maxH
	}

	return image.Rect(0, 0, w, h)
}
