package navigator

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/usabilitystudio/runtime/internal/browser"
	"github.com/usabilitystudio/runtime/internal/domain"
	"github.com/usabilitystudio/runtime/internal/recorder"
)

// observe captures a screenshot and the page's current navigational state,
// per §4.2 step 1. The DOM outline is intentionally coarse: a handful of
// visible, interactive element descriptions, not a full accessibility tree.
func (n *Navigator) observe(lease *browser.Lease) (recorder.Observation, []byte, error) {
	shot, err := lease.Driver.Screenshot()
	if err != nil {
		return recorder.Observation{}, nil, fmt.Errorf("screenshot: %w", err)
	}
	w, h := lease.Driver.ViewportSize()
	scrollY, maxScrollY := lease.Driver.ScrollPosition()

	return recorder.Observation{
		PageURL:    lease.Driver.URL(),
		PageTitle:  lease.Driver.Title(),
		ViewportW:  w,
		ViewportH:  h,
		ScrollY:    &scrollY,
		MaxScrollY: &maxScrollY,
	}, shot, nil
}

// domOutline asks the page for a simplified list of visible interactive
// elements (links, buttons, inputs) for the decide step's prompt context.
func domOutline(lease *browser.Lease) string {
	const script = `
		Array.from(document.querySelectorAll('a, button, input, select, textarea'))
			.filter(el => el.offsetParent !== null)
			.slice(0, 40)
			.map(el => {
				const tag = el.tagName.toLowerCase();
				const label = (el.innerText || el.getAttribute('aria-label') || el.getAttribute('placeholder') || el.name || '').trim().slice(0, 60);
				return tag + (label ? ': ' + label : '');
			})
			.join('\n')
	`
	result, err := lease.Driver.Evaluate(script)
	if err != nil {
		return ""
	}
	outline, _ := result.(string)
	return outline
}

// dispatchWithRetry dispatches one action to the Driver under
// PerActionTimeout, retrying up to Config.ActionRetries times on a
// domain.ErrTransientAction with jittered exponential backoff (§4.2 step 3).
func (n *Navigator) dispatchWithRetry(lease *browser.Lease, action domain.Action) error {
	var lastErr error
	for attempt := 0; attempt <= n.cfg.ActionRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(250*(1<<uint(attempt-1))) * time.Millisecond
			jitter := time.Duration(rand.Int63n(int64(backoff) / 2))
			time.Sleep(backoff + jitter)
		}
		lastErr = n.dispatch(lease, action)
		if lastErr == nil {
			return nil
		}
		if domain.GetErrorCode(lastErr) != domain.ErrCodeTransientAction {
			return lastErr
		}
	}
	return lastErr
}

func (n *Navigator) dispatch(lease *browser.Lease, action domain.Action) error {
	d := lease.Driver
	switch action.Type {
	case domain.ActionClick:
		return d.Click(action.Selector, n.cfg.PerActionTimeout)
	case domain.ActionFill:
		return d.Fill(action.Selector, action.Value, n.cfg.PerActionTimeout)
	case domain.ActionSelect:
		return d.Select(action.Selector, action.Value, n.cfg.PerActionTimeout)
	case domain.ActionScroll:
		return d.Scroll(action.Selector, 400, n.cfg.PerActionTimeout)
	case domain.ActionWait:
		time.Sleep(n.cfg.PerActionTimeout / 10)
		return nil
	case domain.ActionGoto:
		return d.Goto(action.Value, n.cfg.PerActionTimeout)
	case domain.ActionBack:
		return d.Back(n.cfg.PerActionTimeout)
	case domain.ActionSubmit:
		return d.Submit(action.Selector, n.cfg.PerActionTimeout)
	default:
		return domain.ErrLLMSchema(fmt.Sprintf("unhandled action type %q", action.Type), nil)
	}
}
