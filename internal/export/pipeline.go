package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/disintegration/imaging"

	"statusgen/internal/logx"
)

// Progress checkpoints reported by Capture, in order.
const (
	ProgressStart         = 10
	ProgressLibraryLoaded = 20
	ProgressElementFound  = 30
	ProgressPreRender     = 40
	ProgressMidRender     = 60
	ProgressPostRender    = 80
	ProgressBlobReady     = 90
	ProgressDone          = 100
)

const (
	DefaultScale   = 1.5
	DefaultQuality = 0.9
)

// Tab is one rendering surface of a Browser.
type Tab interface {
	// Load replaces the tab's document with doc.
	Load(ctx context.Context, doc []byte) error
	Exists(ctx context.Context, selector string) (bool, error)
	// Screenshot renders the element matched by selector at scale and returns
	// PNG bytes. rendered is called once the bitmap is complete.
	Screenshot(ctx context.Context, selector string, scale float64, rendered func()) ([]byte, error)
	Close() error
}

// Browser opens tabs for raster capture.
type Browser interface {
	Open(ctx context.Context) (Tab, error)
}

// Observer receives one call per finished export.
type Observer interface {
	ObserveExport(kind, outcome string, d time.Duration)
}

// CaptureOptions tunes a raster capture. Zero values select the defaults.
type CaptureOptions struct {
	Scale    float64
	Quality  float64
	Progress func(int)
}

func (o CaptureOptions) withDefaults() CaptureOptions {
	if o.Scale <= 0 {
		o.Scale = DefaultScale
	}
	if o.Quality <= 0 || o.Quality > 1 {
		o.Quality = DefaultQuality
	}
	if o.Progress == nil {
		o.Progress = func(int) {}
	}
	return o
}

// Pipeline runs PNG and HTML exports of a rendered page.
type Pipeline struct {
	Browser  Browser
	Styles   []StyleSource
	Observer Observer
	Now      func() time.Time
}

// NewPipeline returns a pipeline capturing with browser and inlining styles.
// browser may be nil, in which case only HTML export works.
func NewPipeline(browser Browser, styles []StyleSource) *Pipeline {
	return &Pipeline{Browser: browser, Styles: styles, Now: time.Now}
}

func (p *Pipeline) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

func (p *Pipeline) observe(kind Kind, start time.Time, err error) {
	if p.Observer == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.Observer.ObserveExport(string(kind), outcome, time.Since(start))
}

// Standalone wraps the simulator element of page and the pipeline's styles into
// a self-contained document.
func (p *Pipeline) Standalone(ctx context.Context, page []byte) ([]byte, error) {
	markup, err := LocateElement(page, SimulatorTestID)
	if err != nil {
		return nil, err
	}
	return Document(ctx, markup, CollectStyles(ctx, p.Styles))
}

// ExportHTML saves the simulator element of page as a standalone HTML file and
// returns its name.
func (p *Pipeline) ExportHTML(ctx context.Context, page []byte, save Saver) (name string, err error) {
	start := time.Now()
	defer func() { p.observe(KindHTML, start, err) }()

	doc, err := p.Standalone(ctx, page)
	if err != nil {
		return "", err
	}
	name = Filename("html", p.now())
	if err := save.Save(ctx, name, "text/html; charset=utf-8", doc); err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	return name, nil
}

// Capture renders the simulator element of page to a PNG, saves it and returns
// its name. Progress checkpoints are reported through opts.Progress.
func (p *Pipeline) Capture(ctx context.Context, page []byte, save Saver, opts CaptureOptions) (name string, err error) {
	start := time.Now()
	defer func() { p.observe(KindPNG, start, err) }()
	opts = opts.withDefaults()
	log := logx.Ctx(ctx)

	opts.Progress(ProgressStart)
	if p.Browser == nil {
		return "", ErrCaptureUnavailable
	}
	tab, err := p.Browser.Open(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}
	defer func() {
		if cerr := tab.Close(); cerr != nil {
			log.Debug().Err(cerr).Msg("close capture tab")
		}
	}()
	opts.Progress(ProgressLibraryLoaded)

	doc, err := p.Standalone(ctx, page)
	if err != nil {
		return "", err
	}
	if err := tab.Load(ctx, doc); err != nil {
		return "", fmt.Errorf("load document: %w", err)
	}
	ok, err := tab.Exists(ctx, SimulatorSelector)
	if err != nil {
		return "", fmt.Errorf("query simulator: %w", err)
	}
	if !ok {
		return "", ErrElementNotFound
	}
	opts.Progress(ProgressElementFound)

	opts.Progress(ProgressPreRender)
	shot, err := tab.Screenshot(ctx, SimulatorSelector, opts.Scale, func() { opts.Progress(ProgressMidRender) })
	if err != nil {
		return "", fmt.Errorf("render simulator: %w", err)
	}
	opts.Progress(ProgressPostRender)

	blob, err := encodePNG(shot, opts.Quality)
	if err != nil {
		return "", err
	}
	opts.Progress(ProgressBlobReady)

	name = Filename("png", p.now())
	if err := save.Save(ctx, name, "image/png", blob); err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}
	opts.Progress(ProgressDone)
	log.Debug().Str(logx.FieldExport, name).Float64("scale", opts.Scale).Int("bytes", len(blob)).Msg("capture complete")
	return name, nil
}

// encodePNG normalizes a raw screenshot into the exported PNG. quality is
// handed to the encoder as-is; PNG output ignores it.
func encodePNG(raw []byte, quality float64) ([]byte, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty bitmap", ErrEncode)
	}
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Join(ErrEncode, err)
	}
	var buf bytes.Buffer
	q := int(math.Round(quality * 100))
	if err := imaging.Encode(&buf, img, imaging.PNG, imaging.JPEGQuality(q)); err != nil {
		return nil, errors.Join(ErrEncode, err)
	}
	return buf.Bytes(), nil
}
