// Package nn holds the detection types that arrive from the external detectors
// (person/door object detector, face matcher), and the geometry we run on them.
package nn

// PersonBox is a single person found by the object detector.
// Confidence is informational. Filtering by confidence happens upstream.
type PersonBox struct {
	Box        Rect    `json:"bbox"`
	Confidence float32 `json:"confidence"`
}

// DoorBox is a single door found by the object detector.
type DoorBox struct {
	Box Rect `json:"bbox"`
}

// FaceMatch is a face found by the face matching service.
// IdentityID is empty when no enrolled identity crossed the matcher's own threshold.
type FaceMatch struct {
	Box        Rect    `json:"bbox"`
	IdentityID string  `json:"identity_id,omitempty"`
	Name       string  `json:"name,omitempty"`
	Role       string  `json:"role,omitempty"`
	Authorized bool    `json:"authorized"`
	Score      float32 `json:"score"`
}

// Returns true if the face was matched to an enrolled identity
func (f *FaceMatch) IsKnown() bool {
	return f.IdentityID != ""
}

// ImageCrop is a crop of an image.
// To create an ImageCrop, start with WholeImage(), and then use Crop() to get a sub-crop.
type ImageCrop struct {
	NChan       int    // Number of channels (eg 3 for RGB)
	Pixels      []byte // The whole image
	ImageWidth  int    // The width of the original image, held in Pixels
	ImageHeight int    // The height of the original image, held in Pixels
	CropX       int    // Origin of crop X
	CropY       int    // Origin of crop Y
	CropWidth   int    // The width of this crop
	CropHeight  int    // The height of this crop
}

func (c ImageCrop) Stride() int {
	return c.ImageWidth * c.NChan
}

// Returns true if the crop has pixels that can be read
func (c ImageCrop) IsValid() bool {
	return c.NChan > 0 && c.CropWidth > 0 && c.CropHeight > 0 && len(c.Pixels) >= c.ImageWidth*c.ImageHeight*c.NChan
}

// Return a crop of the crop (new crop is relative to existing).
// The requested rectangle is clipped to the bounds of the existing crop, so the
// result may be empty.
func (c ImageCrop) Crop(x1, y1, x2, y2 int) ImageCrop {
	x1 = max(0, x1)
	y1 = max(0, y1)
	x2 = min(c.CropWidth, x2)
	y2 = min(c.CropHeight, y2)
	return ImageCrop{
		NChan:       c.NChan,
		Pixels:      c.Pixels,
		ImageWidth:  c.ImageWidth,
		ImageHeight: c.ImageHeight,
		CropX:       c.CropX + x1,
		CropY:       c.CropY + y1,
		CropWidth:   max(0, x2-x1),
		CropHeight:  max(0, y2-y1),
	}
}

// CopyPixels returns the crop as a tightly packed buffer (stride = CropWidth * NChan)
func (c ImageCrop) CopyPixels() []byte {
	rowBytes := c.CropWidth * c.NChan
	out := make([]byte, rowBytes*c.CropHeight)
	stride := c.Stride()
	for y := 0; y < c.CropHeight; y++ {
		src := (c.CropY+y)*stride + c.CropX*c.NChan
		copy(out[y*rowBytes:(y+1)*rowBytes], c.Pixels[src:src+rowBytes])
	}
	return out
}

// Return a 'crop' of the entire image
func WholeImage(nchan int, pixels []byte, width, height int) ImageCrop {
	return ImageCrop{
		NChan:       nchan,
		Pixels:      pixels,
		ImageWidth:  width,
		ImageHeight: height,
		CropX:       0,
		CropY:       0,
		CropWidth:   width,
		CropHeight:  height,
	}
}
