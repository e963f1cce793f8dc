package status

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

// MaxImageBytes is the default upload limit for status images.
const MaxImageBytes = 5 * 1024 * 1024

const (
	imageMaxWidth    = 1080
	imageMaxHeight   = 1920
	imageJPEGQuality = 85
)

var (
	ErrImageTooLarge = errors.New("status image too large")
	ErrImageDecode   = errors.New("status image unreadable")
)

// ImageUpload is a decoded and normalized status image.
type ImageUpload struct {
	Name    string
	DataURL string
	Width   int
	Height  int
}

// ProcessImage reads at most limit bytes from r, decodes the picture (honouring EXIF
// orientation), fits it inside a portrait 1080x1920 frame and re-encodes it as a
// JPEG data URL.
func ProcessImage(r io.Reader, name string, limit int64) (ImageUpload, error) {
	if limit <= 0 {
		limit = MaxImageBytes
	}
	raw, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return ImageUpload{}, fmt.Errorf("read image: %w", err)
	}
	if int64(len(raw)) > limit {
		return ImageUpload{}, ErrImageTooLarge
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return ImageUpload{}, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	b := img.Bounds()
	if b.Dx() > imageMaxWidth || b.Dy() > imageMaxHeight {
		img = imaging.Fit(img, imageMaxWidth, imageMaxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(imageJPEGQuality)); err != nil {
		return ImageUpload{}, fmt.Errorf("encode image: %w", err)
	}
	b = img.Bounds()
	return ImageUpload{
		Name:    name,
		DataURL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:   b.Dx(),
		Height:  b.Dy(),
	}, nil
}

// Patch returns the config patch that installs this image as the status.
func (u ImageUpload) Patch() Patch {
	t := TypeImage
	return Patch{
		StatusType:  &t,
		StatusImage: &u.DataURL,
		ImageName:   &u.Name,
	}
}
