package door

import (
	"math"

	"github.com/bmharper/cimg/v2"
	"github.com/chewxy/math32"
	"github.com/cyclopcam/perimeter/pkg/nn"
)

// signature is a fixed size grayscale sample of a door region, with values in [0,1]
type signature struct {
	size int
	gray []float32
}

// Extract the pixels of 'box' from the frame, resize them to size x size, and convert to gray.
// Returns nil if the box doesn't cover any pixels of the frame.
func sampleRegion(frame nn.ImageCrop, box nn.Rect, size int) *signature {
	if !frame.IsValid() || size <= 0 {
		return nil
	}
	x1 := int(math.Round(float64(box.X1)))
	y1 := int(math.Round(float64(box.Y1)))
	x2 := int(math.Round(float64(box.X2)))
	y2 := int(math.Round(float64(box.Y2)))
	crop := frame.Crop(x1, y1, x2, y2)
	if !crop.IsValid() {
		return nil
	}

	rgb := toRGB(crop.NChan, crop.CopyPixels())
	if rgb == nil {
		return nil
	}
	src := cimg.WrapImage(crop.CropWidth, crop.CropHeight, cimg.PixelFormatRGB, rgb)
	params := cimg.ResizeParams{
		CheapSRGBFilter: true,
		Filter:          cimg.ResizeFilterBox,
	}
	small := cimg.ResizeNew(src, size, size, &params)

	sig := &signature{
		size: size,
		gray: make([]float32, size*size),
	}
	for y := 0; y < size; y++ {
		row := small.Pixels[y*small.Stride:]
		for x := 0; x < size; x++ {
			r := float32(row[x*3])
			g := float32(row[x*3+1])
			b := float32(row[x*3+2])
			sig.gray[y*size+x] = (0.299*r + 0.587*g + 0.114*b) / 255
		}
	}
	return sig
}

// Expand or reduce tightly packed pixels to 3 channel RGB.
// We accept gray, RGB and RGBA frames.
func toRGB(nchan int, pixels []byte) []byte {
	switch nchan {
	case 3:
		return pixels
	case 1:
		out := make([]byte, len(pixels)*3)
		for i, v := range pixels {
			out[i*3] = v
			out[i*3+1] = v
			out[i*3+2] = v
		}
		return out
	case 4:
		n := len(pixels) / 4
		out := make([]byte, n*3)
		for i := 0; i < n; i++ {
			copy(out[i*3:i*3+3], pixels[i*4:i*4+3])
		}
		return out
	}
	return nil
}

// Mean absolute difference between two signatures, in [0,1].
// Signatures of different sizes are maximally different.
func meanAbsDiff(a, b *signature) float32 {
	if a.size != b.size || len(a.gray) == 0 {
		return 1
	}
	sum := float32(0)
	for i := range a.gray {
		sum += math32.Abs(a.gray[i] - b.gray[i])
	}
	return sum / float32(len(a.gray))
}
