// internal/driver/cdp/driver.go
// Chrome DevTools Protocol implementation of the Driver capability
// interface, built on chromedp. The rest of the harness never sees CDP;
// it talks to schemas.Driver only.
package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/checkride/api/schemas"
)

// Driver drives one browser tab over CDP.
type Driver struct {
	browserCtx  context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *zap.Logger
	closeOnce   sync.Once
}

var _ schemas.Driver = (*Driver)(nil)

// New launches a local browser process per the capability options and
// binds a driver to it. This is the LOCAL-mode session acquisition path.
func New(ctx context.Context, caps schemas.Capabilities, logger *zap.Logger) (*Driver, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", caps.Headless),
	)
	if caps.WindowWidth > 0 && caps.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(caps.WindowWidth, caps.WindowHeight))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	return newDriver(allocCtx, allocCancel, logger)
}

// NewRemote attaches to an already-running browser over its CDP websocket
// URL. This is how remote-provider sessions are driven.
func NewRemote(ctx context.Context, websocketURL string, logger *zap.Logger) (*Driver, error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, websocketURL)
	return newDriver(allocCtx, allocCancel, logger)
}

func newDriver(allocCtx context.Context, allocCancel context.CancelFunc, logger *zap.Logger) (*Driver, error) {
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// Run with no actions to force the browser connection up front, so a
	// broken environment fails at session open instead of mid-test.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}

	return &Driver{
		browserCtx:  browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		logger:      logger.With(zap.String("component", "cdp_driver")),
	}, nil
}

// run executes chromedp actions against the session, honoring the caller's
// context without tying the browser's lifetime to it.
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(d.browserCtx, actions...) }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Navigate loads the URL in the session's tab.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.logger.Debug("Navigating", zap.String("url", url))
	if err := d.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// Locate resolves the locator to element handles. A page with no matches
// yields an empty slice and a nil error; the facade decides whether that
// is worth retrying.
func (d *Driver) Locate(ctx context.Context, locator schemas.Locator) ([]schemas.ElementHandle, error) {
	sel, opt, err := toQuery(locator)
	if err != nil {
		return nil, err
	}

	var nodes []*cdp.Node
	if err := d.run(ctx, chromedp.Nodes(sel, &nodes, opt, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("locate %s: %w", locator, err)
	}

	handles := make([]schemas.ElementHandle, 0, len(nodes))
	for _, node := range nodes {
		handles = append(handles, schemas.ElementHandle{Ref: node.FullXPath()})
	}
	return handles, nil
}

// ElementAction performs click/clear/type against a located handle.
// Click and type first verify the element can actually receive the action
// and wrap schemas.ErrNotInteractable when it cannot.
func (d *Driver) ElementAction(ctx context.Context, handle schemas.ElementHandle, kind schemas.ActionKind, args ...string) error {
	switch kind {
	case schemas.ActionClick:
		if err := d.checkInteractable(ctx, handle); err != nil {
			return err
		}
		if err := d.run(ctx, chromedp.Click(handle.Ref, chromedp.BySearch)); err != nil {
			return fmt.Errorf("click %s: %w", handle.Ref, err)
		}
		return nil
	case schemas.ActionClear:
		if err := d.run(ctx, chromedp.Clear(handle.Ref, chromedp.BySearch)); err != nil {
			return fmt.Errorf("clear %s: %w", handle.Ref, err)
		}
		return nil
	case schemas.ActionType:
		if len(args) != 1 {
			return fmt.Errorf("type action requires exactly one argument, got %d", len(args))
		}
		if err := d.checkInteractable(ctx, handle); err != nil {
			return err
		}
		if err := d.run(ctx, chromedp.SendKeys(handle.Ref, args[0], chromedp.BySearch)); err != nil {
			return fmt.Errorf("type into %s: %w", handle.Ref, err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported element action %q", kind)
	}
}

// ElementState reads a property of a located handle.
func (d *Driver) ElementState(ctx context.Context, handle schemas.ElementHandle, property schemas.StateProperty) (string, error) {
	switch property {
	case schemas.StateText:
		var text string
		if err := d.run(ctx, chromedp.Text(handle.Ref, &text, chromedp.BySearch)); err != nil {
			return "", fmt.Errorf("read text of %s: %w", handle.Ref, err)
		}
		return text, nil
	case schemas.StateValue:
		var value string
		if err := d.run(ctx, chromedp.Value(handle.Ref, &value, chromedp.BySearch)); err != nil {
			return "", fmt.Errorf("read value of %s: %w", handle.Ref, err)
		}
		return value, nil
	case schemas.StateDisplayed:
		probe, err := d.probe(ctx, handle)
		if err != nil {
			return "", err
		}
		return strconv.FormatBool(probe == probeOK || probe == probeDisabled), nil
	case schemas.StateEnabled:
		probe, err := d.probe(ctx, handle)
		if err != nil {
			return "", err
		}
		return strconv.FormatBool(probe == probeOK), nil
	default:
		return "", fmt.Errorf("unsupported state property %q", property)
	}
}

// CloseSession terminates the tab and the underlying browser/allocator.
func (d *Driver) CloseSession(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.logger.Debug("Closing browser session")
		// Graceful browser close first, then tear down the contexts.
		if err := chromedp.Cancel(d.browserCtx); err != nil {
			d.logger.Debug("Graceful browser close failed", zap.Error(err))
		}
		d.cancel()
		d.allocCancel()
	})
	return nil
}

// Probe results for interactability checks.
const (
	probeMissing  = "missing"
	probeHidden   = "hidden"
	probeDisabled = "disabled"
	probeOK       = "ok"
)

// interactabilityScript resolves an XPath and classifies the node's state
// from its layout box, computed style, and disabled flag.
const interactabilityScript = `
(function(xp) {
    const node = document.evaluate(xp, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
    if (!node) return "missing";
    const rect = node.getBoundingClientRect();
    const style = window.getComputedStyle(node);
    const visible = rect.width > 0 && rect.height > 0 &&
        style.display !== 'none' && style.visibility !== 'hidden' && style.opacity !== '0';
    if (!visible) return "hidden";
    if (node.disabled) return "disabled";
    return "ok";
})(%s)`

// probe evaluates the element's interactability classification in-page.
func (d *Driver) probe(ctx context.Context, handle schemas.ElementHandle) (string, error) {
	script := fmt.Sprintf(interactabilityScript, jsonEncode(handle.Ref))

	var result string
	err := d.run(ctx, chromedp.Evaluate(script, &result, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(true).WithSilent(true)
	}))
	if err != nil {
		return "", fmt.Errorf("probe element %s: %w", handle.Ref, err)
	}
	return result, nil
}

// checkInteractable rejects actions against hidden or disabled elements.
func (d *Driver) checkInteractable(ctx context.Context, handle schemas.ElementHandle) error {
	probe, err := d.probe(ctx, handle)
	if err != nil {
		return err
	}
	switch probe {
	case probeOK:
		return nil
	case probeMissing:
		return fmt.Errorf("element %s no longer present", handle.Ref)
	default:
		return fmt.Errorf("element %s is %s: %w", handle.Ref, probe, schemas.ErrNotInteractable)
	}
}

// toQuery maps a locator strategy onto chromedp query options.
func toQuery(locator schemas.Locator) (string, chromedp.QueryOption, error) {
	switch locator.Strategy {
	case schemas.StrategyID:
		return fmt.Sprintf("[id=%s]", jsonEncode(locator.Value)), chromedp.ByQueryAll, nil
	case schemas.StrategyCSS:
		return locator.Value, chromedp.ByQueryAll, nil
	case schemas.StrategyXPath:
		return locator.Value, chromedp.BySearch, nil
	default:
		return "", nil, fmt.Errorf("unsupported locator strategy %q", locator.Strategy)
	}
}

// jsonEncode safely embeds a string value into a JS snippet.
func jsonEncode(v string) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}
