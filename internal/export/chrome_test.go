package export

import (
	"bytes"
	"context"
	"os"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChromeCapture(t *testing.T) {
	if os.Getenv("STATUSGEN_CHROME") != "1" {
		t.Skip("set STATUSGEN_CHROME=1 to run against a local Chrome")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	p := testPipeline(NewChromeBrowser(ChromeConfig{ExecPath: os.Getenv("STATUSGEN_CHROME_PATH")}))
	save := &memSaver{}
	_, err := p.Capture(ctx, []byte(samplePage), save, CaptureOptions{Scale: 2})
	require.NoError(t, err)

	img, err := imaging.Decode(bytes.NewReader(save.data))
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 0)
}
