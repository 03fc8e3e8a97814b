// Package browser supplies pooled, failover-aware browser contexts to the
// Navigator (§4.4), grounded on the teacher's playwright-go usage in
// internal/services/discovery/crawler.go and auth.go.
package browser

import (
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/usabilitystudio/runtime/internal/domain"
)

// Driver is the browser capability set a Navigator action executor needs,
// per §6's "Browser driver" contract: Goto, Screenshot, Evaluate,
// Click/Fill/Select/Scroll/Back/Submit, URL, Title, ViewportSize,
// ScrollPosition, Close and Page. Context and page creation happen in the
// Pool, not through this interface. Action methods raise a typed domain.ErrTransientAction for
// retry-eligible failures (navigation/action timeouts), matching §4.2 step 3.
type Driver interface {
	Goto(url string, deadline time.Duration) error
	Screenshot() ([]byte, error)
	Evaluate(script string) (interface{}, error)
	Click(selector string, deadline time.Duration) error
	Fill(selector, value string, deadline time.Duration) error
	Select(selector, value string, deadline time.Duration) error
	Scroll(selector string, deltaY int, deadline time.Duration) error
	Back(deadline time.Duration) error
	Submit(selector string, deadline time.Duration) error
	URL() string
	Title() string
	ViewportSize() (width, height int)
	ScrollPosition() (scrollY, maxScrollY int)
	Close() error

	// Page exposes the underlying playwright.Page for the passive checks
	// (§4.2 step 5, cookie consent) that operate on it directly rather than
	// through the action-dispatch surface above.
	Page() playwright.Page
}

// playwrightDriver wraps a single playwright.Page, the unit of navigation a
// Navigator session drives for its whole lifetime.
type playwrightDriver struct {
	page     playwright.Page
	viewportW, viewportH int
}

func newPlaywrightDriver(page playwright.Page, viewportW, viewportH int) *playwrightDriver {
	return &playwrightDriver{page: page, viewportW: viewportW, viewportH: viewportH}
}

func (d *playwrightDriver) Goto(url string, deadline time.Duration) error {
	_, err := d.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(deadline.Milliseconds())),
	})
	if err != nil {
		return domain.ErrTransientAction("goto", err)
	}
	return nil
}

func (d *playwrightDriver) Screenshot() ([]byte, error) {
	data, err := d.page.Screenshot(playwright.PageScreenshotOptions{
		Type: playwright.ScreenshotTypePng,
	})
	if err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return data, nil
}

func (d *playwrightDriver) Evaluate(script string) (interface{}, error) {
	result, err := d.page.Evaluate(script)
	if err != nil {
		return nil, fmt.Errorf("evaluating script: %w", err)
	}
	return result, nil
}

func (d *playwrightDriver) Click(selector string, deadline time.Duration) error {
	if err := d.page.Locator(selector).Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(deadline.Milliseconds())),
	}); err != nil {
		return domain.ErrTransientAction("click", err)
	}
	return nil
}

func (d *playwrightDriver) Fill(selector, value string, deadline time.Duration) error {
	if err := d.page.Locator(selector).Fill(value, playwright.LocatorFillOptions{
		Timeout: playwright.Float(float64(deadline.Milliseconds())),
	}); err != nil {
		return domain.ErrTransientAction("fill", err)
	}
	return nil
}

func (d *playwrightDriver) Select(selector, value string, deadline time.Duration) error {
	if _, err := d.page.Locator(selector).SelectOption(playwright.SelectOptionValues{
		Values: &[]string{value},
	}, playwright.LocatorSelectOptionOptions{
		Timeout: playwright.Float(float64(deadline.Milliseconds())),
	}); err != nil {
		return domain.ErrTransientAction("select", err)
	}
	return nil
}

func (d *playwrightDriver) Scroll(selector string, deltaY int, deadline time.Duration) error {
	var script string
	if selector != "" {
		script = fmt.Sprintf("document.querySelector(%q)?.scrollBy(0, %d)", selector, deltaY)
	} else {
		script = fmt.Sprintf("window.scrollBy(0, %d)", deltaY)
	}
	if _, err := d.page.Evaluate(script); err != nil {
		return domain.ErrTransientAction("scroll", err)
	}
	d.page.WaitForTimeout(200)
	return nil
}

func (d *playwrightDriver) Back(deadline time.Duration) error {
	if _, err := d.page.GoBack(playwright.PageGoBackOptions{
		Timeout: playwright.Float(float64(deadline.Milliseconds())),
	}); err != nil {
		return domain.ErrTransientAction("back", err)
	}
	return nil
}

func (d *playwrightDriver) Submit(selector string, deadline time.Duration) error {
	if err := d.page.Locator(selector).Press("Enter", playwright.LocatorPressOptions{
		Timeout: playwright.Float(float64(deadline.Milliseconds())),
	}); err != nil {
		return domain.ErrTransientAction("submit", err)
	}
	return nil
}

func (d *playwrightDriver) URL() string {
	return d.page.URL()
}

func (d *playwrightDriver) Title() string {
	title, err := d.page.Title()
	if err != nil {
		return ""
	}
	return title
}

func (d *playwrightDriver) ViewportSize() (int, int) {
	return d.viewportW, d.viewportH
}

func (d *playwrightDriver) ScrollPosition() (int, int) {
	result, err := d.page.Evaluate("({y: window.scrollY, max: document.body.scrollHeight - window.innerHeight})")
	if err != nil {
		return 0, 0
	}
	m, ok := result.(map[string]interface{})
	if !ok {
		return 0, 0
	}
	y, _ := m["y"].(float64)
	max, _ := m["max"].(float64)
	if max < 0 {
		max = 0
	}
	return int(y), int(max)
}

func (d *playwrightDriver) Close() error {
	return d.page.Close()
}

func (d *playwrightDriver) Page() playwright.Page {
	return d.page
}
