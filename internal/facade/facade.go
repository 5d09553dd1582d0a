// internal/facade/facade.go
// The Action Facade is the single stable surface page objects talk to. It
// owns the explicit-wait retry policy and classifies raw driver errors into
// the shared failure taxonomy, so no page object ever embeds a sleep or
// interprets driver internals.
package facade

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/checkride/api/schemas"
	"github.com/xkilldash9x/checkride/internal/config"
	"github.com/xkilldash9x/checkride/internal/session"
)

// Facade exposes driver-agnostic page operations against one session.
// All calls are synchronous: a call suspends the caller until the driver
// responds or the wait budget is exhausted. One in-flight driver request
// per session at a time is the caller's contract; a Facade is owned by a
// single test unit and never shared.
type Facade struct {
	handle *session.Handle
	wait   time.Duration
	poll   time.Duration
	logger *zap.Logger
}

// New creates a facade bound to the given session handle. Wait policy comes
// from configuration, not per call site.
func New(h *session.Handle, cfg config.FacadeConfig, logger *zap.Logger) *Facade {
	return &Facade{
		handle: h,
		wait:   cfg.WaitBudget,
		poll:   cfg.PollInterval,
		logger: logger.With(zap.String("component", "facade"), zap.String("session_id", h.ID())),
	}
}

// alive fails fast with SessionClosed once teardown has begun, rather than
// letting a driver call hang or silently no-op against a dead session.
func (f *Facade) alive(op string, locator schemas.Locator) error {
	if f.handle.Closed() {
		return &schemas.Failure{Kind: schemas.FailSessionClosed, Op: op, Locator: locator}
	}
	return nil
}

// Visit instructs the current session to load url.
func (f *Facade) Visit(ctx context.Context, url string) error {
	if err := f.alive("visit", schemas.Locator{}); err != nil {
		return err
	}
	f.logger.Debug("Visiting", zap.String("url", url))
	if err := f.handle.Driver().Navigate(ctx, url); err != nil {
		return &schemas.Failure{Kind: schemas.FailNavigation, Op: "visit " + url, Err: err}
	}
	return nil
}

// Find resolves exactly one element, retrying until the wait budget is
// exhausted. First match wins; matching more than one element is not an
// error. A driver-level failure (I/O, protocol) aborts the wait immediately
// and propagates unclassified - only "nothing matched yet" is retried.
func (f *Facade) Find(ctx context.Context, locator schemas.Locator) (schemas.ElementHandle, error) {
	if err := f.alive("find", locator); err != nil {
		return schemas.ElementHandle{}, err
	}

	deadline := time.Now().Add(f.wait)
	for {
		handles, err := f.handle.Driver().Locate(ctx, locator)
		if err != nil {
			return schemas.ElementHandle{}, fmt.Errorf("locate %s: %w", locator, err)
		}
		if len(handles) > 0 {
			return handles[0], nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return schemas.ElementHandle{}, &schemas.Failure{
				Kind:    schemas.FailElementNotFound,
				Op:      "find",
				Locator: locator,
				Err:     fmt.Errorf("no match after %s", f.wait),
			}
		}
		if err := f.pause(ctx, remaining); err != nil {
			return schemas.ElementHandle{}, err
		}
		if err := f.alive("find", locator); err != nil {
			return schemas.ElementHandle{}, err
		}
	}
}

// pause sleeps one poll interval, clamped to the remaining budget so the
// final attempt lands on the deadline rather than past it.
func (f *Facade) pause(ctx context.Context, remaining time.Duration) error {
	delay := f.poll
	if delay > remaining {
		delay = remaining
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Click resolves the locator via Find and clicks the element.
func (f *Facade) Click(ctx context.Context, locator schemas.Locator) error {
	h, err := f.Find(ctx, locator)
	if err != nil {
		return err
	}
	if err := f.handle.Driver().ElementAction(ctx, h, schemas.ActionClick); err != nil {
		return f.classifyAction("click", locator, err)
	}
	return nil
}

// Type resolves the locator via Find, clears the element, and types text
// into it.
func (f *Facade) Type(ctx context.Context, locator schemas.Locator, text string) error {
	h, err := f.Find(ctx, locator)
	if err != nil {
		return err
	}
	driver := f.handle.Driver()
	if err := driver.ElementAction(ctx, h, schemas.ActionClear); err != nil {
		return f.classifyAction("clear", locator, err)
	}
	if err := driver.ElementAction(ctx, h, schemas.ActionType, text); err != nil {
		return f.classifyAction("type", locator, err)
	}
	return nil
}

// Text resolves the locator via Find and reads the element's visible text.
func (f *Facade) Text(ctx context.Context, locator schemas.Locator) (string, error) {
	h, err := f.Find(ctx, locator)
	if err != nil {
		return "", err
	}
	text, err := f.handle.Driver().ElementState(ctx, h, schemas.StateText)
	if err != nil {
		return "", fmt.Errorf("read text of %s: %w", locator, err)
	}
	return text, nil
}

// IsDisplayed reports whether the element is present and visible.
//
// This is the one deliberate narrowing in the taxonomy: an absent element
// (ElementNotFound after the wait budget) maps to false instead of an
// error. Every other failure kind - closed session, driver I/O failure,
// a present-but-broken element - still propagates unchanged.
func (f *Facade) IsDisplayed(ctx context.Context, locator schemas.Locator) (bool, error) {
	h, err := f.Find(ctx, locator)
	if err != nil {
		if schemas.IsKind(err, schemas.FailElementNotFound) {
			return false, nil
		}
		return false, err
	}
	state, err := f.handle.Driver().ElementState(ctx, h, schemas.StateDisplayed)
	if err != nil {
		return false, fmt.Errorf("read displayed state of %s: %w", locator, err)
	}
	return state == "true", nil
}

// classifyAction maps a raw driver action error into the taxonomy.
func (f *Facade) classifyAction(op string, locator schemas.Locator, err error) error {
	if errors.Is(err, schemas.ErrNotInteractable) {
		return &schemas.Failure{Kind: schemas.FailElementNotInteractable, Op: op, Locator: locator, Err: err}
	}
	return fmt.Errorf("%s %s: %w", op, locator, err)
}
