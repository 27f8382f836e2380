package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

var ErrLaunchTimeout = errors.New("browser launch timed out")

type Options struct {
	ExecPath       string
	LaunchTimeout  time.Duration
	ContentTimeout time.Duration
	PrintTimeout   time.Duration
}

// Browser is one headless Chrome process. It is owned by a single batch
// and must be closed by its owner; Close is safe to call more than once.
type Browser struct {
	ctx       context.Context
	cancel    context.CancelFunc
	opts      Options
	closeOnce sync.Once
}

// A4 in inches.
const (
	paperWidth  = 8.27
	paperHeight = 11.69
)

func allocatorOptions(execPath string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("mute-audio", true),
	)
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}
	return opts
}

func Launch(ctx context.Context, opts Options) (*Browser, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOptions(opts.ExecPath)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		browserCancel()
		allocCancel()
	}

	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()

	timer := time.NewTimer(opts.LaunchTimeout)
	defer timer.Stop()
	select {
	case err := <-started:
		if err != nil {
			cancel()
			return nil, fmt.Errorf("launch browser: %w", err)
		}
	case <-timer.C:
		cancel()
		return nil, ErrLaunchTimeout
	}

	return &Browser{ctx: browserCtx, cancel: cancel, opts: opts}, nil
}

// PrintPDF loads html into a fresh tab and prints it as an A4 PDF with
// backgrounds. The tab is closed before returning.
func (b *Browser) PrintPDF(ctx context.Context, html string) ([]byte, error) {
	tabCtx, closeTab := chromedp.NewContext(b.ctx)
	defer closeTab()
	stop := context.AfterFunc(ctx, closeTab)
	defer stop()

	if err := chromedp.Run(tabCtx); err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}

	loadCtx, cancelLoad := context.WithTimeout(tabCtx, b.opts.ContentTimeout)
	defer cancelLoad()
	var ready bool
	if err := chromedp.Run(loadCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(`document.fonts ? document.fonts.ready.then(() => true) : true`, &ready, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	); err != nil {
		return nil, fmt.Errorf("load content: %w", err)
	}

	printCtx, cancelPrint := context.WithTimeout(tabCtx, b.opts.PrintTimeout)
	defer cancelPrint()
	var pdf []byte
	if err := chromedp.Run(printCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		data, _, err := page.PrintToPDF().
			WithPrintBackground(true).
			WithPaperWidth(paperWidth).
			WithPaperHeight(paperHeight).
			Do(ctx)
		pdf = data
		return err
	})); err != nil {
		return nil, fmt.Errorf("print pdf: %w", err)
	}
	return pdf, nil
}

func (b *Browser) Close() {
	b.closeOnce.Do(b.cancel)
}
