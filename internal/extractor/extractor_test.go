package extractor

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roasbeef/pagesum/internal/baselib/actor"
	"github.com/roasbeef/pagesum/internal/transport"
)

const articleSentence = "The quick brown fox studies distributed systems " +
	"late into the night while the lazy dog keeps watch."

func articlePage() string {
	paragraphs := strings.Repeat("<p>"+articleSentence+"</p>\n", 12)

	return fmt.Sprintf(`<html><head><title>Fox Diaries</title>
<script>var trackingPixel = 1;</script></head>
<body>
<nav>NAVLINK home about</nav>
<header>SITEHEADER</header>
<div class="ads">BUY NOW</div>
<article><h1>Fox Diaries</h1>%s</article>
<footer>FOOTERTEXT</footer>
</body></html>`, paragraphs)
}

// pageServer serves fixed pages by path and counts requests.
func pageServer(t *testing.T, pages map[string]string) (*httptest.Server,
	*atomic.Int32) {

	t.Helper()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter,
		r *http.Request) {

		hits.Add(1)
		page, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(srv.Close)

	return srv, &hits
}

func TestExtractArticle(t *testing.T) {
	t.Parallel()

	srv, _ := pageServer(t, map[string]string{"/a": articlePage()})
	ex := New(DefaultConfig(), srv.Client(), nil)

	res, err := ex.Extract(context.Background(), srv.URL+"/a")
	require.NoError(t, err)

	require.Equal(t, "Fox Diaries", res.Title)
	require.Contains(t, res.Content, articleSentence)
	require.NotContains(t, res.Content, "NAVLINK")
	require.NotContains(t, res.Content, "trackingPixel")
	require.NotContains(t, res.Content, "BUY NOW")
	require.NotContains(t, res.Content, "FOOTERTEXT")
	require.NotContains(t, res.Content, "\n")
}

func TestExtractMainArticleFields(t *testing.T) {
	t.Parallel()

	u, err := url.Parse("https://example.com/fox")
	require.NoError(t, err)

	res, err := extractMain([]byte(articlePage()), u)
	require.NoError(t, err)

	require.Equal(t, "Fox Diaries", res.Title)
	require.GreaterOrEqual(t, len([]rune(res.Content)), MinContentLength)
	require.Contains(t, res.Content, articleSentence)
	require.NotContains(t, res.Content, "  ")
}

func TestExtractShortPageFallsBack(t *testing.T) {
	t.Parallel()

	srv, _ := pageServer(t, map[string]string{
		"/short": `<html><body><span>Hello</span>   <b>world</b></body></html>`,
	})
	ex := New(DefaultConfig(), srv.Client(), nil)

	res, err := ex.Extract(context.Background(), srv.URL+"/short")
	require.NoError(t, err)
	require.Contains(t, res.Content, "Hello")
	require.Contains(t, res.Content, "world")
	require.NotEmpty(t, res.Title)
}

func TestExtractCachesPerURL(t *testing.T) {
	t.Parallel()

	srv, hits := pageServer(t, map[string]string{"/a": articlePage()})
	ex := New(DefaultConfig(), srv.Client(), nil)
	ctx := context.Background()

	first, err := ex.Extract(ctx, srv.URL+"/a")
	require.NoError(t, err)
	second, err := ex.Extract(ctx, srv.URL+"/a")
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.EqualValues(t, 1, hits.Load())

	ex.Forget(srv.URL + "/a")
	_, err = ex.Extract(ctx, srv.URL+"/a")
	require.NoError(t, err)
	require.EqualValues(t, 2, hits.Load())
}

func TestExtractCacheBounded(t *testing.T) {
	t.Parallel()

	pages := map[string]string{}
	for i := 0; i < 4; i++ {
		pages[fmt.Sprintf("/p%d", i)] = articlePage()
	}
	srv, hits := pageServer(t, pages)

	cfg := DefaultConfig()
	cfg.CacheSize = 2
	ex := New(cfg, srv.Client(), nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := ex.Extract(ctx, fmt.Sprintf("%s/p%d", srv.URL, i))
		require.NoError(t, err)
	}
	require.EqualValues(t, 4, hits.Load())

	// p0 was evicted, p3 is still cached.
	_, err := ex.Extract(ctx, srv.URL+"/p3")
	require.NoError(t, err)
	require.EqualValues(t, 4, hits.Load())

	_, err = ex.Extract(ctx, srv.URL+"/p0")
	require.NoError(t, err)
	require.EqualValues(t, 5, hits.Load())
}

func TestExtractErrors(t *testing.T) {
	t.Parallel()

	srv, hits := pageServer(t, nil)
	ex := New(DefaultConfig(), srv.Client(), nil)
	ctx := context.Background()

	_, err := ex.Extract(ctx, srv.URL+"/missing")
	require.ErrorIs(t, err, ErrBadStatus)

	for _, bad := range []string{"", "not a url", "ftp://host/x", "/rel"} {
		_, err := ex.Extract(ctx, bad)
		require.ErrorIs(t, err, ErrInvalidURL, bad)
	}

	// Failed fetches are not cached.
	_, err = ex.Extract(ctx, srv.URL+"/missing")
	require.ErrorIs(t, err, ErrBadStatus)
	require.EqualValues(t, 2, hits.Load())
}

func TestRawFallbackBounded(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("가", RawFallbackLength+50)
	res := rawFallback([]byte("<html><body>" + long + "</body></html>"))

	require.Len(t, []rune(res.Content), RawFallbackLength)
	require.Equal(t, UntitledPage, res.Title)
}

func TestExtractorActor(t *testing.T) {
	t.Parallel()

	srv, _ := pageServer(t, map[string]string{"/a": articlePage()})

	system := actor.NewActorSystem()
	t.Cleanup(func() {
		_ = system.Shutdown(context.Background())
	})

	ref := Spawn(system, New(DefaultConfig(), srv.Client(), nil))
	client := transport.NewExtractClient(ref, time.Second)
	ctx := context.Background()

	page, err := client.Extract(ctx, srv.URL+"/a")
	require.NoError(t, err)
	require.Equal(t, "Fox Diaries", page.Title)
	require.Contains(t, page.Content, articleSentence)

	_, err = client.Extract(ctx, srv.URL+"/missing")
	require.ErrorContains(t, err, "unexpected http status")
}
