package export

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// ChromeConfig selects the headless browser used for capture.
type ChromeConfig struct {
	ExecPath string
	Width    int
	Height   int
}

// ChromeBrowser captures with a headless Chrome driven over the DevTools protocol.
// Each Open starts a fresh browser process.
type ChromeBrowser struct {
	cfg ChromeConfig
}

func NewChromeBrowser(cfg ChromeConfig) *ChromeBrowser {
	if cfg.Width <= 0 {
		cfg.Width = 480
	}
	if cfg.Height <= 0 {
		cfg.Height = 960
	}
	return &ChromeBrowser{cfg: cfg}
}

func (b *ChromeBrowser) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("hide-scrollbars", true),
		chromedp.WindowSize(b.cfg.Width, b.cfg.Height),
	)
	if b.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.cfg.ExecPath))
	}
	return opts
}

func (b *ChromeBrowser) Open(ctx context.Context) (Tab, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), b.allocatorOptions()...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return &chromeTab{ctx: tabCtx, cancel: func() { cancelTab(); cancelAlloc() }}, nil
}

type chromeTab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// waitAssets resolves once web fonts and every <img> have settled.
const waitAssets = `Promise.all([
  document.fonts ? document.fonts.ready : null,
  ...Array.from(document.images).map(img => img.complete ? null :
    new Promise(resolve => { img.onload = img.onerror = resolve; }))
]).then(() => true)`

func (t *chromeTab) Load(ctx context.Context, doc []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var settled bool
	return chromedp.Run(t.ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(doc)).Do(ctx)
		}),
		emulation.SetDefaultBackgroundColorOverride().WithColor(&cdp.RGBA{R: 255, G: 255, B: 255, A: 1}),
		chromedp.Evaluate(waitAssets, &settled, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	)
}

func (t *chromeTab) Exists(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var nodes []*cdp.Node
	if err := chromedp.Run(t.ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQuery, chromedp.AtLeast(0))); err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

func (t *chromeTab) Screenshot(ctx context.Context, selector string, scale float64, rendered func()) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf []byte
	err := chromedp.Run(t.ctx,
		chromedp.ScreenshotScale(selector, scale, &buf, chromedp.ByQuery),
		chromedp.ActionFunc(func(context.Context) error {
			if rendered != nil {
				rendered()
			}
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (t *chromeTab) Close() error {
	t.cancel()
	return nil
}
