package pdf

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// LocalRenderer prints the report page with a headless browser. Used
// in deployments without the cloud render service.
type LocalRenderer struct {
	settleDelay time.Duration
}

func NewLocalRenderer() *LocalRenderer {
	return &LocalRenderer{settleDelay: 8 * time.Second}
}

func (r *LocalRenderer) Render(ctx context.Context, printURL string) ([]byte, error) {
	browserCtx, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(browserCtx, renderTimeout)
	defer cancelTimeout()

	var body []byte
	err := chromedp.Run(timeoutCtx,
		chromedp.Navigate(printURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		// Charts and photos stream in after load; give the page time
		// to settle the same way the cloud backend's delay does.
		chromedp.Sleep(r.settleDelay),
		chromedp.ActionFunc(func(ctx context.Context) error {
			rendered, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.5).
				WithPaperHeight(11).
				WithMarginTop(0.5).
				WithMarginBottom(0.5).
				WithMarginLeft(0.5).
				WithMarginRight(0.5).
				Do(ctx)
			if err != nil {
				return err
			}
			body = rendered
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("headless render: %w", err)
	}
	return body, nil
}
