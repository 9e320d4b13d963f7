package fetcher

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"business-news-scraper/internal/config"
	"business-news-scraper/internal/dom"
	"business-news-scraper/internal/observability"
)

const hideWebdriverJS = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

const scrollJS = `(f) => window.scrollTo(0, document.body.scrollHeight * f)`

// Browser - сессия headless Chrome через rod. Владеет процессом браузера:
// Close обязателен на любом пути завершения
type Browser struct {
	launcher    *launcher.Launcher
	browser     *rod.Browser
	page        *rod.Page
	guard       *Guard
	userAgent   string
	pageTimeout time.Duration
	current     string
	logger      *observability.Logger
}

// NewBrowser запускает Chrome и открывает одну вкладку
func NewBrowser(ctx context.Context, cfg *config.Config, guard *Guard, logger *observability.Logger) (*Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := launcher.New().
		Headless(!cfg.Rod.Headed).
		NoSandbox(cfg.Rod.NoSandbox).
		Set(flags.Flag("disable-blink-features"), "AutomationControlled").
		Set(flags.Flag("window-size"), strconv.Itoa(cfg.Rod.WindowWidth)+","+strconv.Itoa(cfg.Rod.WindowHeight))
	if cfg.Rod.ChromePath != "" {
		l = l.Bin(cfg.Rod.ChromePath)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	b := &Browser{
		launcher:    l,
		guard:       guard,
		userAgent:   PickUserAgent(cfg.Rod.UserAgents),
		pageTimeout: cfg.GetRodPageTimeout(),
		logger:      logger,
	}

	// Браузер не привязан к ctx запуска, иначе Close после отмены не дойдёт до Chrome
	b.browser = rod.New().ControlURL(controlURL)
	if err := b.browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect chrome: %w", err)
	}

	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}
	b.page = page

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.userAgent}); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("set user agent: %w", err)
	}
	if _, err := page.EvalOnNewDocument(hideWebdriverJS); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("mask webdriver: %w", err)
	}

	logger.Info("Browser session started",
		"headless", !cfg.Rod.Headed,
		"user_agent", b.userAgent,
	)
	return b, nil
}

func (b *Browser) Navigate(ctx context.Context, url string) error {
	if err := b.guard.Admit(ctx, url, b.userAgent); err != nil {
		return err
	}

	p := b.page.Context(ctx).Timeout(b.pageTimeout)
	defer p.CancelTimeout()

	if err := p.Navigate(url); err != nil {
		return err
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait load: %w", err)
	}
	b.current = url
	return nil
}

func (b *Browser) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	// элемент наследует контекст вкладки, один таймаут покрывает поиск и ожидание
	p := b.page.Context(ctx).Timeout(timeout)
	defer p.CancelTimeout()

	el, err := p.Element(selector)
	if err != nil {
		return err
	}
	return el.WaitVisible()
}

func (b *Browser) ScrollTo(ctx context.Context, fraction float64) error {
	_, err := b.page.Context(ctx).Eval(scrollJS, fraction)
	return err
}

func (b *Browser) Snapshot(ctx context.Context) (dom.Page, error) {
	p := b.page.Context(ctx)
	html, err := p.HTML()
	if err != nil {
		return nil, fmt.Errorf("read page html: %w", err)
	}

	pageURL := b.current
	if info, err := p.Info(); err == nil && info.URL != "" {
		pageURL = info.URL
	}
	doc, err := dom.Parse(html, pageURL)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Close закрывает вкладку, браузер и гасит процесс; безопасен для повторного вызова
func (b *Browser) Close() error {
	var firstErr error
	if b.page != nil {
		if err := b.page.Close(); err != nil {
			firstErr = err
		}
		b.page = nil
	}
	if b.browser != nil {
		if err := b.browser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		b.browser = nil
	}
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher = nil
	}
	if firstErr != nil {
		b.logger.Warn("Browser close reported error", "error", firstErr.Error())
	}
	return firstErr
}
