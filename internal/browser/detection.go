package browser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/playwright-community/playwright-go"
)

// BlockerKind identifies what kind of navigation blocker was detected,
// feeding domain.ErrBlockerDetected(kind, detail) per §7's taxonomy.
type BlockerKind string

const (
	BlockerAuthWall BlockerKind = "auth_wall"
	BlockerCaptcha  BlockerKind = "captcha"
)

// Blocker is one detected obstruction to navigation.
type Blocker struct {
	Kind      BlockerKind
	DetectedAt string
	Detail    string
}

// authURLPatterns match redirects to a login/auth page. Translated from
// original_source's backend/app/browser/detection.py AUTH_URL_PATTERNS.
var authURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/login`),
	regexp.MustCompile(`/signin`),
	regexp.MustCompile(`/sign-in`),
	regexp.MustCompile(`/auth`),
	regexp.MustCompile(`/sso`),
	regexp.MustCompile(`/oauth`),
	regexp.MustCompile(`/accounts/login`),
	regexp.MustCompile(`/user/login`),
}

var authContentIndicators = []string{
	"sign in to continue",
	"log in to continue",
	"please log in",
	"authentication required",
	"you must be logged in",
	"access denied",
	"unauthorized",
}

var captchaSelectors = []string{
	"iframe[src*='recaptcha']",
	"iframe[src*='hcaptcha']",
	".g-recaptcha",
	".h-captcha",
	"#captcha",
	"[data-sitekey]",
	"iframe[title*='reCAPTCHA']",
	"iframe[title*='hCaptcha']",
}

// DetectAuthWall reports whether the page redirected to (or otherwise shows)
// a login/authentication wall relative to the originally requested URL.
func DetectAuthWall(page playwright.Page, originalURL string) *Blocker {
	currentURL := strings.ToLower(page.URL())
	originalLower := strings.ToLower(originalURL)

	for _, pattern := range authURLPatterns {
		if pattern.MatchString(currentURL) && !pattern.MatchString(originalLower) {
			return &Blocker{
				Kind:       BlockerAuthWall,
				DetectedAt: page.URL(),
				Detail:     fmt.Sprintf("redirected to login page: %s", page.URL()),
			}
		}
	}

	bodyText, err := page.Locator("body").InnerText(playwright.LocatorInnerTextOptions{Timeout: playwright.Float(2000)})
	if err != nil {
		return nil
	}
	bodyLower := strings.ToLower(bodyText)
	for _, indicator := range authContentIndicators {
		if strings.Contains(bodyLower, indicator) {
			return &Blocker{
				Kind:       BlockerAuthWall,
				DetectedAt: page.URL(),
				Detail:     fmt.Sprintf("auth wall indicator found on page: %q", indicator),
			}
		}
	}
	return nil
}

// DetectCaptcha reports whether the page contains a CAPTCHA challenge.
func DetectCaptcha(page playwright.Page) *Blocker {
	for _, selector := range captchaSelectors {
		visible, err := page.Locator(selector).First().IsVisible(playwright.LocatorIsVisibleOptions{Timeout: playwright.Float(500)})
		if err == nil && visible {
			return &Blocker{
				Kind:       BlockerCaptcha,
				DetectedAt: page.URL(),
				Detail:     fmt.Sprintf("CAPTCHA detected via selector %q", selector),
			}
		}
	}
	return nil
}

// DetectBlockers runs every check and returns all blockers currently present
// on the page, used by the Navigator's observe step (§4.2 step 4) to decide
// whether to surface domain.ErrBlockerDetected instead of continuing.
func DetectBlockers(page playwright.Page, originalURL string) []Blocker {
	var blockers []Blocker
	if b := DetectAuthWall(page, originalURL); b != nil {
		blockers = append(blockers, *b)
	}
	if b := DetectCaptcha(page); b != nil {
		blockers = append(blockers, *b)
	}
	return blockers
}
