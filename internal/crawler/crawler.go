package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"cognichat/internal/logger"
	"cognichat/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"github.com/chromedp/chromedp"
	colly "github.com/gocolly/colly/v2"
	"golang.org/x/net/html/charset"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// minWords is the smallest page body kept as a document.
const minWords = 10

// CrawlConfig holds configuration for a crawl job
type CrawlConfig struct {
	URL            string
	MaxPages       int
	AllowedDomains []string
	AllowedPaths   []string
	FollowLinks    bool
	Timeout        time.Duration
	Delay          time.Duration
	// Optional JS rendering for the initial page
	RenderJS         bool
	RenderTimeout    time.Duration
	WaitSelector     string
	NetworkIdleAfter time.Duration
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// CrawlResult holds the result of a crawl operation
type CrawlResult struct {
	URL          string
	Pages        []models.CrawledPage
	PagesFound   int
	PagesCrawled int
}

// normalizeURL normalizes a URL to a canonical form for duplicate detection
func normalizeURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	parsed.Fragment = ""

	path := parsed.Path
	if path == "" {
		path = "/"
	} else if path != "/" {
		path = strings.TrimSuffix(path, "/")
		if path == "" {
			path = "/"
		}
	}
	parsed.Path = path

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)

	// Remove default ports
	if (parsed.Port() == "80" && parsed.Scheme == "http") || (parsed.Port() == "443" && parsed.Scheme == "https") {
		host, _, _ := strings.Cut(parsed.Host, ":")
		parsed.Host = host
	}

	return parsed.String(), nil
}

// CrawlURL fetches cfg.URL (and, with FollowLinks, same-site pages up to
// MaxPages) and returns the readable text of every page with enough content.
// It fails only when no page at all could be extracted.
func CrawlURL(ctx context.Context, cfg CrawlConfig) (*CrawlResult, error) {
	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme == "" {
		parsedURL, err = url.Parse("https://" + cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid URL: %w", err)
		}
	}

	startURL, err := normalizeURL(parsedURL.String())
	if err != nil {
		return nil, fmt.Errorf("invalid URL format: %w", err)
	}

	allowedDomains := cfg.AllowedDomains
	if len(allowedDomains) == 0 {
		if hostname := strings.ToLower(parsedURL.Hostname()); hostname != "" {
			bare := strings.TrimPrefix(hostname, "www.")
			allowedDomains = []string{bare, "www." + bare}
		}
	}

	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 50
	}

	// Fresh collector per crawl so visited state never leaks between builds.
	c := colly.NewCollector(
		colly.Async(true),
		colly.MaxDepth(2),
		colly.AllowedDomains(allowedDomains...),
		colly.StdlibContext(ctx),
	)
	if cfg.Transport != nil {
		c.WithTransport(cfg.Transport)
	} else {
		c.WithTransport(&http.Transport{Proxy: http.ProxyFromEnvironment})
	}
	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	} else {
		c.SetRequestTimeout(60 * time.Second)
	}
	c.UserAgent = userAgent

	limit := &colly.LimitRule{DomainGlob: "*", Parallelism: 1, Delay: cfg.Delay}
	if cfg.Delay > 0 {
		limit.RandomDelay = cfg.Delay / 2
	}
	if err := c.Limit(limit); err != nil {
		return nil, fmt.Errorf("configure crawl limits: %w", err)
	}

	log := logger.With("component", "crawler", "start_url", startURL)

	var (
		mu            sync.Mutex
		pages         []models.CrawledPage
		found         int
		startErr      error
		startRendered bool
		processed     = map[string]bool{}
		queued        = map[string]bool{startURL: true}
	)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		// colly inflates gzip itself; br is decoded in OnResponse.
		r.Headers.Set("Accept-Encoding", "gzip, br")
		r.Headers.Set("Referer", fmt.Sprintf("%s://%s/", r.URL.Scheme, r.URL.Host))
	})

	c.OnResponse(func(r *colly.Response) {
		contentType := r.Headers.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "application/xhtml+xml") {
			return
		}

		if strings.Contains(r.Headers.Get("Content-Encoding"), "br") {
			if decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(r.Body))); err == nil {
				r.Body = decompressed
			} else {
				log.Warn("brotli decode failed", "url", r.Request.URL.String(), "error", err)
			}
		}

		// colly already transcodes bodies whose Content-Type names a charset;
		// the rest are sniffed from BOM and <meta charset>.
		if !strings.Contains(strings.ToLower(contentType), "charset=") {
			if body, err := decodeCharset(r.Body, contentType); err == nil {
				r.Body = body
			}
		}

		mu.Lock()
		found++
		mu.Unlock()
	})

	c.OnHTML("html", func(e *colly.HTMLElement) {
		pageURL, err := normalizeURL(e.Request.URL.String())
		if err != nil {
			return
		}

		// A pre-rendered start page is already kept; only its links are used here.
		mu.Lock()
		rendered := pageURL == startURL && startRendered
		startRendered = false
		if !rendered && (len(pages) >= maxPages || processed[pageURL]) {
			mu.Unlock()
			return
		}
		processed[pageURL] = true
		mu.Unlock()

		if !rendered {
			page, ok := pageFromSelection(pageURL, e.DOM, e.Response.StatusCode)
			if !ok {
				return
			}
			mu.Lock()
			if len(pages) >= maxPages {
				mu.Unlock()
				return
			}
			pages = append(pages, page)
			mu.Unlock()
		}

		mu.Lock()
		room := maxPages - len(pages)
		mu.Unlock()

		if !cfg.FollowLinks || room <= 0 {
			return
		}

		linkCount := 0
		e.DOM.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if linkCount >= 20 || linkCount >= room {
				return false
			}
			href, _ := s.Attr("href")
			link, ok := followable(e.Request.AbsoluteURL(href), href, cfg, allowedDomains)
			if !ok {
				return true
			}

			mu.Lock()
			seen := queued[link] || processed[link]
			queued[link] = true
			mu.Unlock()
			if seen {
				return true
			}

			linkCount++
			if err := c.Visit(link); err != nil && !alreadyVisited(err) {
				log.Debug("skip link", "url", link, "error", err)
			}
			return true
		})
	})

	c.OnError(func(r *colly.Response, err error) {
		reqURL, _ := normalizeURL(r.Request.URL.String())
		log.Warn("crawl request failed", "url", reqURL, "status", r.StatusCode, "error", err)
		if reqURL != startURL {
			return
		}

		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.StatusCode == http.StatusForbidden:
			startErr = fmt.Errorf("access forbidden (403): the site blocked the crawler")
		case r.StatusCode == http.StatusTooManyRequests:
			startErr = fmt.Errorf("rate limited (429): too many requests")
		case r.StatusCode >= 500:
			startErr = fmt.Errorf("server error (%d)", r.StatusCode)
		case r.StatusCode != 0:
			startErr = fmt.Errorf("HTTP error (%d): %w", r.StatusCode, err)
		default:
			startErr = fmt.Errorf("network error: %w", err)
		}
	})

	if cfg.RenderJS {
		if page, ok := renderStartPage(ctx, startURL, cfg); ok {
			mu.Lock()
			pages = append(pages, page)
			processed[startURL] = true
			startRendered = true
			mu.Unlock()
		}
	}

	log.Info("starting crawl", "max_pages", maxPages, "follow_links", cfg.FollowLinks)
	if err := c.Visit(startURL); err != nil && !alreadyVisited(err) {
		mu.Lock()
		empty := len(pages) == 0
		mu.Unlock()
		if empty {
			return nil, fmt.Errorf("failed to start crawl: %w", err)
		}
	}
	c.Wait()

	if len(pages) == 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if startErr != nil {
			return nil, startErr
		}
		return nil, fmt.Errorf("no readable content at %s", startURL)
	}

	log.Info("crawl finished", "pages", len(pages), "responses", found)
	return &CrawlResult{
		URL:          startURL,
		Pages:        pages,
		PagesFound:   found,
		PagesCrawled: len(pages),
	}, nil
}

func alreadyVisited(err error) bool {
	return strings.Contains(err.Error(), "already visited")
}

func decodeCharset(body []byte, contentType string) ([]byte, error) {
	if len(body) == 0 {
		return body, nil
	}
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, err
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(decoded) == 0 {
		return body, nil
	}
	return decoded, nil
}

// pageFromSelection turns a parsed page into a CrawledPage, rejecting pages
// with too little text.
func pageFromSelection(pageURL string, sel *goquery.Selection, status int) (models.CrawledPage, bool) {
	content := extractMainContentFromSelection(sel)
	if len(content) < 50 {
		content = strings.TrimSpace(sel.Find("body").Text())
	}
	wordCount := len(strings.Fields(content))
	if wordCount < minWords {
		return models.CrawledPage{}, false
	}

	meta := extractPageMeta(sel)
	return models.CrawledPage{
		URL:         pageURL,
		Title:       meta.Title,
		Description: meta.Description,
		Language:    meta.Language,
		Content:     content,
		CrawledAt:   time.Now(),
		StatusCode:  status,
		Size:        int64(len(content)),
		WordCount:   wordCount,
	}, true
}

// renderStartPage is swapped out in tests that cannot launch a browser.
var renderStartPage = renderFirstPage

func renderFirstPage(ctx context.Context, startURL string, cfg CrawlConfig) (models.CrawledPage, bool) {
	renderTimeout := cfg.RenderTimeout
	if renderTimeout <= 0 {
		renderTimeout = 45 * time.Second
	}
	networkIdle := cfg.NetworkIdleAfter
	if networkIdle <= 0 {
		networkIdle = 1200 * time.Millisecond
	}

	html, err := renderPageHTML(ctx, startURL, renderTimeout, cfg.WaitSelector, networkIdle)
	if err != nil {
		logger.Warn("JS render failed, falling back to static fetch", "url", startURL, "error", err)
		return models.CrawledPage{}, false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.CrawledPage{}, false
	}
	return pageFromSelection(startURL, doc.Selection, http.StatusOK)
}

// renderPageHTML launches a headless browser, waits for readiness and network idle, then returns HTML
func renderPageHTML(ctx context.Context, urlStr string, timeout time.Duration, waitSelector string, networkIdleAfter time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent(userAgent),
	)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	if err := chromedp.Run(browserCtx, chromedp.Navigate(urlStr)); err != nil {
		return "", err
	}

	// The waits below are best effort; the HTML is read regardless.
	softRun(browserCtx, 10*time.Second, chromedp.WaitReady("body", chromedp.ByQuery))
	if waitSelector != "" {
		softRun(browserCtx, 15*time.Second, chromedp.WaitVisible(waitSelector, chromedp.ByQuery))
	}
	if networkIdleAfter > 0 {
		idleCap := networkIdleAfter
		if idleCap > 5*time.Second {
			idleCap = 5 * time.Second
		}
		softRun(browserCtx, idleCap+time.Second, waitForNetworkIdle(idleCap))
	}

	var html string
	if err := chromedp.Run(browserCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func softRun(ctx context.Context, d time.Duration, action chromedp.Action) {
	stepCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	_ = chromedp.Run(stepCtx, action)
}

// waitForNetworkIdle waits until no network requests are in flight for the given duration
func waitForNetworkIdle(d time.Duration) chromedp.ActionFunc {
	js := `(function(waitMs){
      return new Promise((resolve)=>{
        if (!('PerformanceObserver' in window)) {
          setTimeout(resolve, waitMs);
          return;
        }
        let last = Date.now();
        const obs = new PerformanceObserver(()=>{ last = Date.now(); });
        try { obs.observe({entryTypes:['resource','navigation']}); } catch(e) {}
        const tick = () => {
          if (Date.now()-last >= waitMs) { try { obs.disconnect(); } catch(e){} resolve(); return; }
          setTimeout(tick, 100);
        };
        tick();
      });
    })(%d);`
	return func(ctx context.Context) error {
		return chromedp.Run(ctx, chromedp.Evaluate(fmt.Sprintf(js, int(d.Milliseconds())), nil))
	}
}

// extractMainContentFromSelection extracts main content from a goquery Selection
func extractMainContentFromSelection(selection *goquery.Selection) string {
	doc := selection.Clone()

	doc.Find("script, style, noscript, nav, footer, header, aside, .nav, .navbar, .footer, .header, .sidebar, .advertisement, .ads, .skip-link").Remove()

	contentSelectors := []string{
		"main",
		"article",
		"[role='main']",
		".main-content",
		".markdown",
		".content",
		"#content",
		"body",
	}

	var content strings.Builder
	for _, selector := range contentSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if text := strings.TrimSpace(s.Text()); len(text) > 100 {
				content.WriteString(text)
				content.WriteString("\n\n")
			}
		})
		if content.Len() > 0 {
			break
		}
	}
	if content.Len() == 0 {
		content.WriteString(doc.Find("body").Text())
	}

	var cleaned []string
	for _, line := range strings.Split(content.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}

// followable resolves href and reports whether the crawl may visit it.
func followable(absoluteURL, href string, cfg CrawlConfig, allowedDomains []string) (string, bool) {
	hrefLower := strings.ToLower(strings.TrimSpace(href))
	if hrefLower == "" ||
		strings.HasPrefix(hrefLower, "#") ||
		strings.HasPrefix(hrefLower, "javascript:") ||
		strings.HasPrefix(hrefLower, "mailto:") ||
		strings.HasPrefix(hrefLower, "tel:") {
		return "", false
	}
	if absoluteURL == "" {
		return "", false
	}
	normalized, err := normalizeURL(absoluteURL)
	if err != nil || !isURLAllowed(normalized, cfg, allowedDomains) {
		return "", false
	}
	return normalized, true
}

// isURLAllowed checks if a URL is allowed based on configuration
func isURLAllowed(urlStr string, cfg CrawlConfig, allowedDomains []string) bool {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}

	if len(allowedDomains) > 0 {
		host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
		allowed := false
		for _, d := range allowedDomains {
			d = strings.TrimPrefix(strings.ToLower(d), "www.")
			if host == d || strings.HasSuffix(host, "."+d) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	if len(cfg.AllowedPaths) > 0 {
		allowed := false
		for _, p := range cfg.AllowedPaths {
			if strings.HasPrefix(parsed.Path, p) {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	excludedPatterns := []string{
		"/api/", "/ajax/", "/feed/", "/rss/", "/atom/", "/search?", "/?s=",
		".pdf", ".jpg", ".jpeg", ".png", ".gif", ".svg", ".css", ".js", ".xml", ".zip",
	}
	pathLower := strings.ToLower(parsed.Path)
	queryLower := strings.ToLower(parsed.RawQuery)
	for _, pattern := range excludedPatterns {
		if strings.Contains(pathLower, pattern) || strings.Contains(queryLower, pattern) {
			return false
		}
	}

	return true
}
