package navigator

import (
	"errors"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/usabilitystudio/runtime/internal/browser"
	"github.com/usabilitystudio/runtime/internal/domain"
)

// fakeDriver implements browser.Driver without a real playwright.Page, for
// exercising dispatch/retry/observe logic in isolation. Page() is left
// returning nil since nothing exercised here reaches the passive
// consent/blocker checks that need a real page (see internal/browser's
// DESIGN.md note on why those stay untested against the teacher's own
// precedent of not mocking playwright.Page).
type fakeDriver struct {
	clickCalls           int
	failClicks           int
	screenshot           []byte
	url, title           string
	viewportW, viewportH int
	scrollY, maxScrollY  int
	evalResult           interface{}
	evalErr              error
}

func (f *fakeDriver) Goto(url string, deadline time.Duration) error { return nil }
func (f *fakeDriver) Screenshot() ([]byte, error)                   { return f.screenshot, nil }
func (f *fakeDriver) Evaluate(script string) (interface{}, error)   { return f.evalResult, f.evalErr }
func (f *fakeDriver) Click(selector string, deadline time.Duration) error {
	f.clickCalls++
	if f.clickCalls <= f.failClicks {
		return domain.ErrTransientAction("click", errors.New("timeout"))
	}
	return nil
}
func (f *fakeDriver) Fill(selector, value string, deadline time.Duration) error    { return nil }
func (f *fakeDriver) Select(selector, value string, deadline time.Duration) error  { return nil }
func (f *fakeDriver) Scroll(selector string, deltaY int, deadline time.Duration) error {
	return nil
}
func (f *fakeDriver) Back(deadline time.Duration) error                    { return nil }
func (f *fakeDriver) Submit(selector string, deadline time.Duration) error { return nil }
func (f *fakeDriver) URL() string                                          { return f.url }
func (f *fakeDriver) Title() string                                        { return f.title }
func (f *fakeDriver) ViewportSize() (int, int)                             { return f.viewportW, f.viewportH }
func (f *fakeDriver) ScrollPosition() (int, int)                           { return f.scrollY, f.maxScrollY }
func (f *fakeDriver) Close() error                                         { return nil }
func (f *fakeDriver) Page() playwright.Page                                { return nil }

func leaseFor(d browser.Driver) *browser.Lease {
	return &browser.Lease{Driver: d}
}

func TestDispatchWithRetry_RetriesTransientThenSucceeds(t *testing.T) {
	n := New(nil, nil, Config{ActionRetries: 2, PerActionTimeout: time.Second}, nil)
	driver := &fakeDriver{failClicks: 1}

	err := n.dispatchWithRetry(leaseFor(driver), domain.Action{Type: domain.ActionClick, Selector: "#go"})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if driver.clickCalls != 2 {
		t.Errorf("clickCalls = %d, want 2 (1 failure + 1 success)", driver.clickCalls)
	}
}

func TestDispatchWithRetry_GivesUpAfterExhaustingRetries(t *testing.T) {
	n := New(nil, nil, Config{ActionRetries: 1, PerActionTimeout: time.Second}, nil)
	driver := &fakeDriver{failClicks: 99}

	err := n.dispatchWithRetry(leaseFor(driver), domain.Action{Type: domain.ActionClick, Selector: "#go"})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if driver.clickCalls != 2 {
		t.Errorf("clickCalls = %d, want 2 (1 initial + 1 retry)", driver.clickCalls)
	}
}

func TestDispatch_UnknownActionType(t *testing.T) {
	n := New(nil, nil, DefaultConfig(), nil)
	driver := &fakeDriver{}
	err := n.dispatch(leaseFor(driver), domain.Action{Type: "teleport"})
	if err == nil {
		t.Fatal("expected error for unhandled action type")
	}
	if domain.GetErrorCode(err) != domain.ErrCodeLLMSchema {
		t.Errorf("error code = %s, want %s", domain.GetErrorCode(err), domain.ErrCodeLLMSchema)
	}
}

func TestObserve_ReturnsScreenshotAndGeometry(t *testing.T) {
	n := New(nil, nil, DefaultConfig(), nil)
	driver := &fakeDriver{
		screenshot: []byte{0x89, 0x50, 0x4e, 0x47},
		url:        "https://example.com/cart",
		title:      "Cart",
		viewportW:  1280, viewportH: 800,
		scrollY: 120, maxScrollY: 900,
	}
	obs, shot, err := n.observe(leaseFor(driver))
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if obs.PageURL != "https://example.com/cart" || obs.PageTitle != "Cart" {
		t.Errorf("unexpected observation: %+v", obs)
	}
	if obs.ScrollY == nil || *obs.ScrollY != 120 {
		t.Errorf("ScrollY = %v, want 120", obs.ScrollY)
	}
	if len(shot) != 4 {
		t.Errorf("shot length = %d, want 4", len(shot))
	}
}

func TestDomOutline_FallsBackToEmptyOnEvalError(t *testing.T) {
	driver := &fakeDriver{evalErr: errors.New("boom")}
	if got := domOutline(leaseFor(driver)); got != "" {
		t.Errorf("domOutline = %q, want empty string on eval failure", got)
	}
}

func TestJoinRecentAndSummarize(t *testing.T) {
	var steps []string
	for i := 1; i <= 8; i++ {
		steps = append(steps, "step")
	}
	if got := joinRecent(steps, 5); len(got) == 0 {
		t.Error("expected non-empty joined recent steps")
	}
	if got := summarize(nil); got != "no steps taken" {
		t.Errorf("summarize(nil) = %q", got)
	}
}
