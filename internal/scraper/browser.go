package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type driverState int

const (
	stateUninitialized driverState = iota
	stateReady
	stateDead
	stateChallengePending
)

// browserDriver owns a Chrome instance shared by browser-backed scrapers.
// Sessions are reused across calls and relaunched transparently when the
// process dies; cookies persist to disk so anti-bot clearances survive
// restarts.
type browserDriver struct {
	mu          sync.Mutex
	state       driverState
	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	ctxCancel   context.CancelFunc

	profileDir  string
	cookiesFile string
	headless    bool
	logger      *zap.Logger
}

func newBrowserDriver(profileDir, cookiesFile string, headless bool, logger *zap.Logger) *browserDriver {
	return &browserDriver{
		profileDir:  profileDir,
		cookiesFile: cookiesFile,
		headless:    headless,
		logger:      logger.Named("browser"),
	}
}

// ensure brings the driver to a ready state, relaunching Chrome if the
// existing session is gone. Callers must hold no expectations about page
// state afterwards.
func (d *browserDriver) ensure(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.releaseDefunct() {
		return nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", d.headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(browserUserAgent),
		chromedp.UserDataDir(d.profileDir),
	)

	d.allocCtx, d.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	d.browserCtx, d.ctxCancel = chromedp.NewContext(d.allocCtx)

	startCtx, cancel := context.WithTimeout(d.browserCtx, 30*time.Second)
	defer cancel()
	if err := chromedp.Run(startCtx, network.Enable()); err != nil {
		d.teardownLocked()
		return fmt.Errorf("%w: launch: %v", ErrDriverUnavailable, err)
	}

	if err := d.restoreCookies(); err != nil {
		d.logger.Debug("no cookies restored", zap.Error(err))
	}

	d.state = stateReady
	d.logger.Info("browser session started", zap.Bool("headless", d.headless))
	return nil
}

// releaseDefunct tears down any session that is not both present and
// responsive, so a relaunch never overwrites live cancel funcs. Caller holds
// mu. Reports whether a usable session remains.
func (d *browserDriver) releaseDefunct() bool {
	if d.state == stateReady || d.state == stateChallengePending {
		if d.alive() {
			return true
		}
		d.logger.Warn("browser session lost — relaunching")
	}
	if d.browserCtx != nil {
		d.teardownLocked()
	}
	return false
}

// alive probes the session with a trivial evaluation.
func (d *browserDriver) alive() bool {
	if d.browserCtx == nil {
		return false
	}
	probeCtx, cancel := context.WithTimeout(d.browserCtx, 3*time.Second)
	defer cancel()
	var ok bool
	return chromedp.Run(probeCtx, chromedp.Evaluate("true", &ok)) == nil && ok
}

// page navigates to url, waits settle for dynamic content, and snapshots the
// title and serialized DOM. A failed navigation marks the session dead.
func (d *browserDriver) page(ctx context.Context, url string, settle time.Duration) (title, html string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != stateReady && d.state != stateChallengePending {
		return "", "", ErrDriverUnavailable
	}

	navCtx, cancel := context.WithTimeout(d.browserCtx, 45*time.Second)
	defer cancel()
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-navCtx.Done():
		}
	}()

	err = chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(settle),
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		d.state = stateDead
		return "", "", fmt.Errorf("%w: navigate %s: %v", ErrDriverUnavailable, url, err)
	}
	return title, html, nil
}

// snapshot re-reads title and DOM without navigating, used while polling a
// challenge page.
func (d *browserDriver) snapshot(ctx context.Context) (title, html string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browserCtx == nil {
		return "", "", ErrDriverUnavailable
	}
	snapCtx, cancel := context.WithTimeout(d.browserCtx, 10*time.Second)
	defer cancel()
	err = chromedp.Run(snapCtx,
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", "", err
	}
	return title, html, nil
}

func (d *browserDriver) setState(s driverState) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// saveCookies snapshots the session cookie jar to disk.
func (d *browserDriver) saveCookies() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browserCtx == nil {
		return ErrDriverUnavailable
	}
	var cookies []*network.Cookie
	err := chromedp.Run(d.browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return fmt.Errorf("get cookies: %w", err)
	}

	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(d.cookiesFile, data, 0o600); err != nil {
		return fmt.Errorf("write cookies: %w", err)
	}
	d.logger.Debug("cookies saved", zap.Int("count", len(cookies)))
	return nil
}

// restoreCookies loads a prior cookie snapshot into the fresh session.
// Individual cookie failures are ignored.
func (d *browserDriver) restoreCookies() error {
	data, err := os.ReadFile(d.cookiesFile)
	if err != nil {
		return err
	}
	var cookies []*network.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return fmt.Errorf("decode cookies: %w", err)
	}

	restored := 0
	err = chromedp.Run(d.browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			if err := setCookieParams(c).Do(ctx); err != nil {
				continue
			}
			restored++
		}
		return nil
	}))
	if err != nil {
		return err
	}
	d.logger.Debug("cookies restored", zap.Int("count", restored))
	return nil
}

// setCookieParams rebuilds a SetCookie request from a persisted cookie.
// Session cookies carry no expiry.
func setCookieParams(c *network.Cookie) *network.SetCookieParams {
	p := network.SetCookie(c.Name, c.Value).
		WithDomain(c.Domain).
		WithPath(c.Path).
		WithSecure(c.Secure).
		WithHTTPOnly(c.HTTPOnly)
	if c.Expires > 0 {
		expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
		p = p.WithExpires(&expires)
	}
	return p
}

func (d *browserDriver) teardownLocked() {
	if d.ctxCancel != nil {
		d.ctxCancel()
	}
	if d.allocCancel != nil {
		d.allocCancel()
	}
	d.browserCtx = nil
	d.allocCtx = nil
	d.state = stateUninitialized
}

func (d *browserDriver) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.teardownLocked()
}
