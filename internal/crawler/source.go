package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"cognichat/internal/config"
	"cognichat/models"
	"cognichat/utils"
)

// Source loads documents from one kind of location.
type Source interface {
	Load(ctx context.Context, locator string) ([]models.Document, error)
}

// WebSource crawls http(s) locations.
type WebSource struct {
	base CrawlConfig
}

// NewWebSource builds a WebSource whose crawls use base for every setting
// except the URL.
func NewWebSource(base CrawlConfig) *WebSource {
	return &WebSource{base: base}
}

// WebSourceFromConfig maps the crawl options in cfg onto a WebSource.
func WebSourceFromConfig(cfg *config.Config) *WebSource {
	return NewWebSource(CrawlConfig{
		MaxPages:    cfg.CrawlMaxPages,
		FollowLinks: cfg.CrawlFollowLinks,
		RenderJS:    cfg.CrawlRenderJS,
		Timeout:     time.Duration(cfg.CrawlTimeout) * time.Second,
		Delay:       time.Duration(cfg.CrawlDelayMs) * time.Millisecond,
	})
}

func (w *WebSource) Load(ctx context.Context, locator string) ([]models.Document, error) {
	cfg := w.base
	cfg.URL = locator

	result, err := CrawlURL(ctx, cfg)
	if err != nil {
		return nil, &models.FetchError{Locator: locator, Err: err}
	}

	docs := make([]models.Document, 0, len(result.Pages))
	for _, page := range result.Pages {
		docs = append(docs, page.ToDocument(utils.DocumentID(page.URL)))
	}
	return docs, nil
}

// Registry dispatches a locator to the Source registered for its scheme.
type Registry struct {
	sources map[string]Source
}

func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register binds src to each of schemes.
func (r *Registry) Register(src Source, schemes ...string) {
	for _, s := range schemes {
		r.sources[strings.ToLower(s)] = src
	}
}

func (r *Registry) Load(ctx context.Context, locator string) ([]models.Document, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return nil, &models.FetchError{Locator: locator, Err: fmt.Errorf("invalid locator: %w", err)}
	}
	src, ok := r.sources[strings.ToLower(u.Scheme)]
	if !ok {
		return nil, &models.FetchError{Locator: locator, Err: fmt.Errorf("no source for scheme %q", u.Scheme)}
	}

	docs, err := src.Load(ctx, locator)
	if err != nil {
		var fetchErr *models.FetchError
		if errors.As(err, &fetchErr) {
			return nil, err
		}
		return nil, &models.FetchError{Locator: locator, Err: err}
	}
	return docs, nil
}

// NewDefaultRegistry registers the web source for http(s) and the Mongo
// source for mongodb URIs.
func NewDefaultRegistry(cfg *config.Config) *Registry {
	r := NewRegistry()
	r.Register(WebSourceFromConfig(cfg), "http", "https")
	r.Register(NewMongoSource(cfg.MaxDocuments), "mongodb", "mongodb+srv")
	return r
}
