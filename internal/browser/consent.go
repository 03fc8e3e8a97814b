package browser

import (
	"github.com/playwright-community/playwright-go"
)

// consentSelectors lists common cookie-consent accept buttons, ordered by
// real-world prevalence. Translated from original_source's
// backend/app/browser/cookie_consent.py CONSENT_SELECTORS.
var consentSelectors = []string{
	// OneTrust
	"#onetrust-accept-btn-handler",
	".onetrust-close-btn-handler",
	// CookieBot
	"#CybotCookiebotDialogBodyLevelButtonLevelOptinAllowAll",
	"#CybotCookiebotDialogBodyButtonAccept",
	// Generic platform patterns
	`button[data-cookiefirst-action="accept"]`,
	`[data-testid="cookie-policy-dialog-accept-button"]`,
	`button[aria-label="Accept cookies"]`,
	`button[aria-label="Accept all cookies"]`,
	`button[aria-label="Accept all"]`,
	// Text-based matches
	`button:has-text("Accept All")`,
	`button:has-text("Accept all")`,
	`button:has-text("Accept Cookies")`,
	`button:has-text("Accept cookies")`,
	`button:has-text("I Accept")`,
	`button:has-text("I agree")`,
	`button:has-text("Got it")`,
	`button:has-text("OK")`,
	// Common class patterns
	".cc-dismiss",
	".cc-btn.cc-accept",
	".cookie-consent-accept",
	".js-cookie-consent-agree",
}

// bannerSelectors detects a cookie banner's presence without dismissing it.
var bannerSelectors = []string{
	"#onetrust-consent-sdk",
	"#CybotCookiebotDialog",
	".cookie-banner",
	".cookie-consent",
	`[role="dialog"][aria-label*="cookie"]`,
	`[role="dialog"][aria-label*="Cookie"]`,
}

// DismissCookieConsent attempts to dismiss a cookie consent banner so a
// persona can navigate freely, per §4.2's handling of cookie consent as an
// automatic pre-step rather than a UX issue for the persona to react to.
// Returns true if a banner was found and dismissed.
func DismissCookieConsent(page playwright.Page) bool {
	for _, selector := range consentSelectors {
		locator := page.Locator(selector).First()
		visible, err := locator.IsVisible(playwright.LocatorIsVisibleOptions{Timeout: playwright.Float(500)})
		if err != nil || !visible {
			continue
		}
		if err := locator.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(3000)}); err != nil {
			continue
		}
		page.WaitForTimeout(500)
		return true
	}
	return false
}

// DetectCookieBanner reports whether a cookie consent banner is currently
// visible, without attempting to dismiss it.
func DetectCookieBanner(page playwright.Page) bool {
	for _, selector := range bannerSelectors {
		visible, err := page.Locator(selector).First().IsVisible(playwright.LocatorIsVisibleOptions{Timeout: playwright.Float(500)})
		if err == nil && visible {
			return true
		}
	}
	return false
}
