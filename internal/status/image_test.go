package status

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 37, G: 211, B: 102, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProcessImage_FitsAndEncodes(t *testing.T) {
	up, err := ProcessImage(bytes.NewReader(pngBytes(t, 2160, 1080)), "wide.png", MaxImageBytes)
	require.NoError(t, err)
	assert.Equal(t, "wide.png", up.Name)
	assert.Equal(t, 1080, up.Width)
	assert.Equal(t, 540, up.Height)
	require.True(t, strings.HasPrefix(up.DataURL, "data:image/jpeg;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(up.DataURL, "data:image/jpeg;base64,"))
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 1080, cfg.Width)
}

func TestProcessImage_SmallImageKeepsSize(t *testing.T) {
	up, err := ProcessImage(bytes.NewReader(pngBytes(t, 40, 60)), "small.png", 0)
	require.NoError(t, err)
	assert.Equal(t, 40, up.Width)
	assert.Equal(t, 60, up.Height)
}

func TestProcessImage_TooLarge(t *testing.T) {
	data := pngBytes(t, 10, 10)
	_, err := ProcessImage(bytes.NewReader(data), "x.png", int64(len(data)-1))
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestProcessImage_Garbage(t *testing.T) {
	_, err := ProcessImage(strings.NewReader("definitely not an image"), "x.png", 0)
	assert.ErrorIs(t, err, ErrImageDecode)
}

func TestImageUpload_PatchSwitchesToImage(t *testing.T) {
	up, err := ProcessImage(bytes.NewReader(pngBytes(t, 20, 20)), "p.png", 0)
	require.NoError(t, err)
	c, err := DefaultConfig().Apply(up.Patch())
	require.NoError(t, err)
	assert.Equal(t, TypeImage, c.StatusType)
	assert.Equal(t, up.DataURL, c.StatusImage)
	assert.Equal(t, "p.png", c.ImageName)
}
