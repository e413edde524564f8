package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"cognichat/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

const filler = "LangSmith is a platform for building production grade LLM applications and it lets you debug, test, evaluate and monitor chains."

func page(title, body string, links ...string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<html lang=\"en\"><head><title>%s</title></head><body><nav>menu</nav><main><p>%s</p>", title, body)
	for _, l := range links {
		fmt.Fprintf(&sb, `<a href="%s">link</a>`, l)
	}
	sb.WriteString("</main></body></html>")
	return sb.String()
}

func htmlHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}
}

func TestCrawlSinglePage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", htmlHandler(page("Home", filler, "/other")))
	mux.HandleFunc("/other", htmlHandler(page("Other", filler)))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res, err := CrawlURL(context.Background(), CrawlConfig{URL: srv.URL, MaxPages: 5})
	require.NoError(t, err)
	require.Len(t, res.Pages, 1, "links are not followed by default")

	p := res.Pages[0]
	assert.Equal(t, "Home", p.Title)
	assert.Equal(t, "en", p.Language)
	assert.Contains(t, p.Content, "LangSmith is a platform")
	assert.NotContains(t, p.Content, "menu")
	assert.Equal(t, http.StatusOK, p.StatusCode)
}

func TestCrawlFollowLinksStaysOnSite(t *testing.T) {
	var pdfHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		htmlHandler(page("Home", filler,
			"/a", "/b/", "/a#section", "/file.pdf", "mailto:x@example.com",
			"https://elsewhere.example.com/x"))(w, r)
	})
	mux.HandleFunc("/a", htmlHandler(page("A", filler, "/")))
	mux.HandleFunc("/b", htmlHandler(page("B", filler)))
	mux.HandleFunc("/file.pdf", func(w http.ResponseWriter, r *http.Request) { pdfHits.Add(1) })
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res, err := CrawlURL(context.Background(), CrawlConfig{URL: srv.URL, MaxPages: 10, FollowLinks: true})
	require.NoError(t, err)

	var titles []string
	for _, p := range res.Pages {
		titles = append(titles, p.Title)
	}
	assert.ElementsMatch(t, []string{"Home", "A", "B"}, titles)
	assert.Zero(t, pdfHits.Load())
}

func TestCrawlRespectsMaxPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", htmlHandler(page("Home", filler, "/1", "/2", "/3", "/4")))
	for i := 1; i <= 4; i++ {
		mux.HandleFunc(fmt.Sprintf("/%d", i), htmlHandler(page(fmt.Sprintf("P%d", i), filler)))
	}
	srv := httptest.NewServer(mux)
	defer srv.Close()

	res, err := CrawlURL(context.Background(), CrawlConfig{URL: srv.URL, MaxPages: 2, FollowLinks: true})
	require.NoError(t, err)
	assert.Len(t, res.Pages, 2)
}

func TestCrawlRenderedStartPageKeptOnce(t *testing.T) {
	home := page("Home", filler, "/b")
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		htmlHandler(home)(w, r)
	})
	mux.HandleFunc("/b", htmlHandler(page("B", filler)))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var renders atomic.Int32
	orig := renderStartPage
	renderStartPage = func(_ context.Context, startURL string, _ CrawlConfig) (models.CrawledPage, bool) {
		renders.Add(1)
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(home))
		require.NoError(t, err)
		return pageFromSelection(startURL, doc.Selection, http.StatusOK)
	}
	t.Cleanup(func() { renderStartPage = orig })

	res, err := CrawlURL(context.Background(), CrawlConfig{URL: srv.URL, MaxPages: 10, FollowLinks: true, RenderJS: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, renders.Load())

	urls := map[string]int{}
	var titles []string
	for _, p := range res.Pages {
		urls[p.URL]++
		titles = append(titles, p.Title)
	}
	assert.ElementsMatch(t, []string{"Home", "B"}, titles, "the static fetch still follows links from the start page")
	for u, n := range urls {
		assert.Equal(t, 1, n, "page %s kept more than once", u)
	}
}

func TestCrawlDecodesBrotli(t *testing.T) {
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	_, _ = bw.Write([]byte(page("Compressed", filler)))
	require.NoError(t, bw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "br")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	res, err := CrawlURL(context.Background(), CrawlConfig{URL: srv.URL, MaxPages: 1})
	require.NoError(t, err)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, "Compressed", res.Pages[0].Title)
}

func TestCrawlDecodesMetaCharset(t *testing.T) {
	body := `<html><head><meta charset="iso-8859-1"><title>Caf` + "\xe9" + `</title></head><body><main><p>` +
		filler + ` Caf` + "\xe9" + ` au lait.</p></main></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	res, err := CrawlURL(context.Background(), CrawlConfig{URL: srv.URL, MaxPages: 1})
	require.NoError(t, err)
	require.Len(t, res.Pages, 1)
	assert.Equal(t, "Café", res.Pages[0].Title)
	assert.Contains(t, res.Pages[0].Content, "Café au lait.")
}

func TestCrawlSkipsThinPages(t *testing.T) {
	srv := httptest.NewServer(htmlHandler(page("Thin", "too short")))
	defer srv.Close()

	_, err := CrawlURL(context.Background(), CrawlConfig{URL: srv.URL, MaxPages: 1})
	assert.Error(t, err)
}

func TestCrawlStartPageErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := CrawlURL(context.Background(), CrawlConfig{URL: srv.URL, MaxPages: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestWebSourceReturnsDocuments(t *testing.T) {
	srv := httptest.NewServer(htmlHandler(page("Docs", filler)))
	defer srv.Close()

	src := NewWebSource(CrawlConfig{MaxPages: 1, Timeout: 5 * time.Second})
	docs, err := src.Load(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	d := docs[0]
	assert.Equal(t, srv.URL+"/", d.Source())
	assert.Equal(t, "Docs", d.Metadata[models.MetadataTitle])
	assert.Len(t, d.ID, 16)

	again, err := src.Load(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, d.ID, again[0].ID, "document ids are stable across loads")
}

func TestWebSourceWrapsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewWebSource(CrawlConfig{MaxPages: 1}).Load(context.Background(), srv.URL)
	var fetchErr *models.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, srv.URL, fetchErr.Locator)
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://Docs.Example.com", "https://docs.example.com/"},
		{"https://docs.example.com/guide/", "https://docs.example.com/guide"},
		{"https://docs.example.com:443/a#frag", "https://docs.example.com/a"},
		{"http://docs.example.com:80/", "http://docs.example.com/"},
		{"http://docs.example.com:8080/x", "http://docs.example.com:8080/x"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := normalizeURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsURLAllowed(t *testing.T) {
	domains := []string{"docs.example.com"}
	cfg := CrawlConfig{}

	assert.True(t, isURLAllowed("https://docs.example.com/tracing", cfg, domains))
	assert.True(t, isURLAllowed("https://www.docs.example.com/tracing", cfg, domains))
	assert.False(t, isURLAllowed("https://other.com/tracing", cfg, domains))
	assert.False(t, isURLAllowed("ftp://docs.example.com/x", cfg, domains))
	assert.False(t, isURLAllowed("https://docs.example.com/static/app.js", cfg, domains))

	cfg.AllowedPaths = []string{"/docs"}
	assert.True(t, isURLAllowed("https://docs.example.com/docs/intro", cfg, domains))
	assert.False(t, isURLAllowed("https://docs.example.com/blog", cfg, domains))
}

func TestExtractPageMeta(t *testing.T) {
	html := `<html lang="EN-us"><head>
<meta name="description" content="  Tracing   guide ">
<script type="application/ld+json">{"headline": "From JSON-LD"}</script>
</head><body><p>no title tag</p></body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	meta := extractPageMeta(doc.Selection)
	assert.Equal(t, "From JSON-LD", meta.Title)
	assert.Equal(t, "Tracing guide", meta.Description)
	assert.Equal(t, "en-us", meta.Language)
}

type stubSource struct {
	docs []models.Document
	err  error
}

func (s stubSource) Load(ctx context.Context, locator string) ([]models.Document, error) {
	return s.docs, s.err
}

func TestRegistryDispatch(t *testing.T) {
	r := NewRegistry()
	r.Register(stubSource{docs: []models.Document{{ID: "1"}}}, "HTTPS")
	r.Register(stubSource{err: errors.New("boom")}, "mongodb")

	docs, err := r.Load(context.Background(), "https://docs.example.com/")
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	_, err = r.Load(context.Background(), "mongodb://localhost/db")
	var fetchErr *models.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "mongodb://localhost/db", fetchErr.Locator)

	_, err = r.Load(context.Background(), "s3://bucket/key")
	require.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, err.Error(), "no source for scheme")
}

func TestParseMongoLocator(t *testing.T) {
	loc, err := parseMongoLocator("mongodb://user:pw@localhost:27017/crawl?collection=docs&authSource=admin")
	require.NoError(t, err)
	assert.Equal(t, "crawl", loc.Database)
	assert.Equal(t, "docs", loc.Collection)
	assert.Equal(t, "mongodb://user:pw@localhost:27017/crawl?authSource=admin", loc.URI)

	loc, err = parseMongoLocator("mongodb+srv://cluster.example.net/crawl")
	require.NoError(t, err)
	assert.Equal(t, DefaultPagesCollection, loc.Collection)

	_, err = parseMongoLocator("mongodb://localhost:27017")
	assert.Error(t, err)
	_, err = parseMongoLocator("https://example.com/db")
	assert.Error(t, err)
}

func TestMongoSourceConnectFailureIsFetchError(t *testing.T) {
	src := NewMongoSource(10)
	src.connect = func(ctx context.Context, uri string) (*mongo.Client, error) {
		return nil, errors.New("no server")
	}

	_, err := src.Load(context.Background(), "mongodb://localhost:1/crawl")
	var fetchErr *models.FetchError
	require.ErrorAs(t, err, &fetchErr)
}
