package infrastructure

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"cv-generator/internal/filemanager"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ChromedpRenderer prints documents with a headless Chrome, one browser per
// session.
type ChromedpRenderer struct {
	chromePath string
}

func NewChromedpRenderer(chromePath string) *ChromedpRenderer {
	return &ChromedpRenderer{chromePath: chromePath}
}

// Acquire starts a browser. The browser outlives ctx; ctx only bounds the
// start-up.
func (r *ChromedpRenderer) Acquire(ctx context.Context) (filemanager.PDFSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	cctx, cancelCtx := chromedp.NewContext(allocCtx)
	s := &chromeSession{ctx: cctx, cancel: func() { cancelCtx(); cancelAlloc() }}

	started := make(chan error, 1)
	go func() { started <- chromedp.Run(cctx) }()

	select {
	case err := <-started:
		if err != nil {
			s.Release()
			return nil, fmt.Errorf("start chrome: %w", err)
		}
	case <-ctx.Done():
		s.Release()
		return nil, ctx.Err()
	}

	dir, err := os.MkdirTemp("", "cv-")
	if err != nil {
		s.Release()
		return nil, err
	}
	s.dir = dir
	return s, nil
}

type chromeSession struct {
	ctx    context.Context
	cancel context.CancelFunc
	dir    string
}

// stage derives a chromedp context that also ends with ctx.
func (s *chromeSession) stage(ctx context.Context) (context.Context, context.CancelFunc) {
	var (
		sctx   context.Context
		cancel context.CancelFunc
	)
	if dl, ok := ctx.Deadline(); ok {
		sctx, cancel = context.WithDeadline(s.ctx, dl)
	} else {
		sctx, cancel = context.WithCancel(s.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return sctx, func() { stop(); cancel() }
}

// Load writes html to the session directory and opens it from disk.
func (s *chromeSession) Load(ctx context.Context, html string) error {
	path := filepath.Join(s.dir, "index.html")
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return err
	}
	sctx, cancel := s.stage(ctx)
	defer cancel()
	return chromedp.Run(sctx,
		chromedp.Navigate("file://"+path),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (s *chromeSession) Print(ctx context.Context) ([]byte, error) {
	sctx, cancel := s.stage(ctx)
	defer cancel()

	var buf []byte
	err := chromedp.Run(sctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		// A4: 210mm x 297mm -> inches: 8.27 x 11.69
		buf, _, err = page.PrintToPDF().WithPrintBackground(true).
			WithPaperWidth(8.27).
			WithPaperHeight(11.69).
			WithPreferCSSPageSize(true).
			Do(ctx)
		return err
	}))
	return buf, err
}

func (s *chromeSession) Release() {
	s.cancel()
	if s.dir != "" {
		_ = os.RemoveAll(s.dir)
	}
}
