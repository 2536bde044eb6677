// Package session logs the browser in before a batch and carries the
// session cookie used by the HTTP renderer.
package session

import (
	"context"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/cockroachdb/errors"

	"profile_spider/internal/logger"
)

const (
	SiteURL  = "https://www.linkedin.com"
	LoginURL = SiteURL + "/login"
	// CookieName is the session cookie set by a successful login.
	CookieName   = "li_at"
	cookieDomain = ".linkedin.com"

	usernameSelector = `#username`
	passwordSelector = `#password, input[name="session_password"]`
	submitSelector   = `button[type="submit"]`

	defaultSettle = 5 * time.Second
)

var (
	ErrMissingCredentials = errors.New("linkedin credentials not provided")
	// ErrLoginUnconfirmed means the form was submitted but the browser did
	// not land on a logged-in page, usually because of a checkpoint.
	ErrLoginUnconfirmed = errors.New("login not confirmed")
)

type Credentials struct {
	Email    string
	Password string
}

func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.Email) != "" && c.Password != ""
}

// LoggedIn reports whether url is a page only a logged-in member lands on
// after the login form.
func LoggedIn(url string) bool {
	u := strings.ToLower(url)
	return strings.Contains(u, "/feed") || strings.Contains(u, "/in/")
}

// Login fills the login form in the browser tab behind ctx. settle is how
// long to wait after submitting; zero selects five seconds.
func Login(ctx context.Context, creds Credentials, settle time.Duration) error {
	if !creds.Complete() {
		return errors.WithHint(ErrMissingCredentials,
			"set LINKEDIN_EMAIL and LINKEDIN_PASSWORD in the environment or .env")
	}
	if settle <= 0 {
		settle = defaultSettle
	}

	log := logger.Named("session")
	log.Infow("logging in")

	var landed string
	err := chromedp.Run(ctx,
		chromedp.Navigate(LoginURL),
		chromedp.WaitVisible(usernameSelector, chromedp.ByQuery),
		chromedp.SendKeys(usernameSelector, creds.Email, chromedp.ByQuery),
		chromedp.Sleep(typingPause()),
		chromedp.SendKeys(passwordSelector, creds.Password, chromedp.ByQuery),
		chromedp.Sleep(typingPause()),
		chromedp.Click(submitSelector, chromedp.ByQuery),
		chromedp.Sleep(settle),
		chromedp.Location(&landed),
	)
	if err != nil {
		return errors.Wrap(err, "submit login form")
	}
	if !LoggedIn(landed) {
		return errors.WithHint(
			errors.Wrapf(ErrLoginUnconfirmed, "landed on %s", landed),
			"the account may need a checkpoint solved; run with browser.headless: false",
		)
	}

	log.Infow("logged in", logger.FieldTarget, landed)
	return nil
}

// Cookies builds the session cookie set for the HTTP renderer from a li_at
// value copied out of a logged-in browser.
func Cookies(value string) []*http.Cookie {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return []*http.Cookie{{
		Name:     CookieName,
		Value:    value,
		Domain:   cookieDomain,
		Path:     "/",
		Secure:   true,
		HttpOnly: true,
	}}
}

// typingPause is a human-ish pause of one to two seconds.
func typingPause() time.Duration {
	return time.Second + time.Duration(rand.Int64N(int64(time.Second)))
}
