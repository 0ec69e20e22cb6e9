package exporter

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"dwarchive/pkg/archive"
	"dwarchive/pkg/crawler"
	"dwarchive/pkg/dawanda"
	"dwarchive/pkg/logger"
	"dwarchive/pkg/metrics"
	"dwarchive/pkg/ui"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shop is a fake marketplace serving one seller account
type shop struct {
	mu      sync.Mutex
	hits    []string
	profile string
	// dropImages cuts the connection halfway through a.jpg.
	dropImages bool
}

func (s *shop) requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.hits...)
}

func productRow(id, title, amount string) string {
	return fmt.Sprintf(`<tr><td><input type="checkbox" value="%s"></td><td></td>
		<td><a href="/product/%s">%s</a></td>
		<td><span class="money"><span class="amount">%s</span><abbr class="unit">€</abbr></span></td></tr>`,
		id, id, title, amount)
}

func productTable(rows []string, next string) string {
	page := `<html><body><table id="product_table"><tbody>` + strings.Join(rows, "") + `</tbody></table>`
	if next != "" {
		page += `<div class="pagination"><a class="next_page" href="` + next + `">next</a></div>`
	}
	return page + `</body></html>`
}

func feedbackTable(row, next string) string {
	page := `<html><body><table id="feedback"><tr><th>a</th><th>b</th><th>c</th><th>d</th></tr>` + row + `</table>`
	if next != "" {
		page += `<div class="pagination"><a class="next_page" href="` + next + `">next</a></div>`
	}
	return page + `</body></html>`
}

func detailPage(data string) string {
	return `<html><head><script class="product_data" type="application/json">` + data + `</script></head></html>`
}

func (s *shop) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits = append(s.hits, r.URL.RequestURI())
	s.mu.Unlock()

	switch r.URL.Path {
	case dawanda.ProfilePath:
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, s.profile)

	case "/user/feedback/anna":
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, feedbackTable(`<tr><td><img></td><td>ok</td><td>carl</td><td>02.01.2017</td></tr>`, ""))
			return
		}
		fmt.Fprint(w, feedbackTable(`<tr><td><img><img><img><img><img></td><td>Great <b>shop</b></td><td>bob</td><td>01.01.2017</td></tr>`,
			"/user/feedback/anna?page=2"))

	case "/seller/products":
		switch r.URL.Query().Get("product_search[state]") {
		case "active":
			if r.URL.Query().Get("page") == "2" {
				fmt.Fprint(w, productTable([]string{productRow("3", "Bowl", "5")}, ""))
				return
			}
			fmt.Fprint(w, productTable([]string{productRow("1", "Mug", "12.50"), productRow("2", "Plate", "7")},
				"/seller/products?product_search[state]=active&page=2"))
		case "paused":
			fmt.Fprint(w, productTable([]string{productRow("4", "Scarf", "20")}, ""))
		case "past":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			fmt.Fprint(w, `<html><body>Keine Produkte</body></html>`)
		}

	case "/seller/products/1/edit":
		fmt.Fprint(w, detailPage(`{"id": 1, "title": "Mug (large)", "description": "handmade",
			"product_images_attributes": [
				{"id": 11, "url": "/img/a.jpg", "extension": "JPG"},
				{"guid": "g-12", "url": "/img/b.png", "extension": "png"},
				{"id": 13, "url": "/img/c.gif"}
			]}`))
	case "/seller/products/2/edit":
		fmt.Fprint(w, detailPage(`{"id": 2, "description": "plain"}`))
	case "/seller/products/3/edit":
		http.NotFound(w, r)
	case "/seller/products/4/edit":
		fmt.Fprint(w, `<html><body>maintenance</body></html>`)

	case "/img/a.jpg":
		if s.dropImages {
			w.Header().Set("Content-Length", "1000")
			w.Write([]byte("HALF-AN-IMAGE"))
			return
		}
		w.Write([]byte("\xff\xd8jpeg-bytes"))
	case "/img/b.png":
		http.Error(w, "gone", http.StatusServiceUnavailable)
	case "/img/c.gif":
		w.Write([]byte("GIF89a"))

	default:
		http.NotFound(w, r)
	}
}

type fixture struct {
	shop    *shop
	server  *httptest.Server
	client  *dawanda.Client
	out     *bytes.Buffer
	path    string
	diagDir string
}

func newFixture(t *testing.T, profile string) *fixture {
	t.Helper()
	s := &shop{profile: profile}
	server := httptest.NewServer(s)
	t.Cleanup(server.Close)

	client, err := dawanda.NewClient(dawanda.Options{BaseURL: server.URL, Timeout: 5 * time.Second}, logger.NewNopLogger())
	require.NoError(t, err)

	dir := t.TempDir()
	return &fixture{
		shop:    s,
		server:  server,
		client:  client,
		out:     &bytes.Buffer{},
		path:    filepath.Join(dir, "export.zip"),
		diagDir: t.TempDir(),
	}
}

func (f *fixture) run(t *testing.T, opts Options) (*Summary, error) {
	t.Helper()
	w, err := archive.Open(f.path)
	require.NoError(t, err)

	opts.Display = ui.NewConsole(f.out, f.out)
	opts.DiagnosticsDir = f.diagDir
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	return New(f.client, opts).Run(context.Background(), w)
}

func readEntries(t *testing.T, path string) map[string]*zip.File {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	entries := make(map[string]*zip.File)
	for _, f := range r.File {
		entries[f.Name] = f
	}
	return entries
}

func readEntry(t *testing.T, f *zip.File) []byte {
	t.Helper()
	rc, err := f.Open()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

const loggedIn = `{"logged_in": true, "username": "anna", "id": 5}`

func TestRunExportsEverything(t *testing.T) {
	f := newFixture(t, loggedIn)
	m := metrics.New()

	summary, err := f.run(t, Options{Metrics: m, MetricsFile: filepath.Join(t.TempDir(), "dwarchive.prom")})
	require.NoError(t, err)

	assert.Equal(t, "anna", summary.Username)
	assert.Equal(t, 2, summary.Ratings)
	assert.Equal(t, 4, summary.Products)
	assert.Equal(t, 2, summary.Images)
	assert.Equal(t, 1, summary.ImageFailures)
	assert.Equal(t, 2, summary.DetailFailures)
	assert.Equal(t, 1, summary.PageFailures)
	assert.Equal(t, []ui.Tally{{N: 4, Label: "products"}, {N: 2, Label: "ratings"}}, summary.Tallies())

	entries := readEntries(t, f.path)
	assert.ElementsMatch(t, []string{
		"profile.json", "ratings.json", "productlist.json", "products.json",
		"product_images/11.jpg", "product_images/13.dat",
	}, keys(entries))

	assert.Equal(t, zip.Deflate, entries["products.json"].Method)
	assert.Equal(t, zip.Store, entries["product_images/11.jpg"].Method)
	assert.Equal(t, "\xff\xd8jpeg-bytes", string(readEntry(t, entries["product_images/11.jpg"])))

	assert.JSONEq(t, loggedIn, string(readEntry(t, entries["profile.json"])))

	var ratings []map[string]interface{}
	require.NoError(t, json.Unmarshal(readEntry(t, entries["ratings.json"]), &ratings))
	require.Len(t, ratings, 2)
	assert.Equal(t, float64(5), ratings[0]["stars"])
	assert.Equal(t, []interface{}{"Great", "shop"}, ratings[0]["text"])
	assert.Equal(t, "carl", ratings[1]["author"])

	productList := string(readEntry(t, entries["productlist.json"]))
	assert.NotContains(t, productList, "handmade", "the product list holds summaries only")
	assert.Less(t, strings.Index(productList, `"1"`), strings.Index(productList, `"4"`))

	var products map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(readEntry(t, entries["products.json"]), &products))
	require.Len(t, products, 4)
	assert.Equal(t, "1", products["1"]["id"], "the summary id is kept")
	assert.Equal(t, "Mug (large)", products["1"]["title"])
	assert.Equal(t, "handmade", products["1"]["description"])
	assert.Equal(t, "Bowl", products["3"]["title"])
	assert.NotContains(t, products["3"], "description")

	dumps, err := filepath.Glob(filepath.Join(f.diagDir, crawler.DiagnosticPattern))
	require.NoError(t, err)
	require.Len(t, dumps, 1, "only the broken detail page is dumped")
	assert.Equal(t, dumps, summary.Diagnostics)

	out := f.out.String()
	assert.Contains(t, out, "[*] fetching profile ... anna\n")
	assert.Contains(t, out, "[*] fetching ratings\n")
	assert.Contains(t, out, "    got 2\n")
	assert.Contains(t, out, "    got 4\n")
	assert.Contains(t, out, "    fetching details 4/4: 4\r")
	assert.Contains(t, out, "... fetching images 2/3: 1 / g-12\r")
	assert.Contains(t, out, "Got error 500 loading "+f.server.URL)

	assert.Equal(t, 4.0, testutil.ToFloat64(m.ItemsTotal.WithLabelValues("product")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ItemsTotal.WithLabelValues("image")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DiagnosticsTotal))
}

func TestRunFetchesEachPageOnce(t *testing.T) {
	f := newFixture(t, loggedIn)

	_, err := f.run(t, Options{SkipImages: true})
	require.NoError(t, err)

	counts := map[string]int{}
	for _, uri := range f.shop.requests() {
		counts[uri]++
	}
	for uri, n := range counts {
		assert.Equal(t, 1, n, uri)
	}
	assert.NotContains(t, counts, "/img/a.jpg")
}

func TestRunNotLoggedIn(t *testing.T) {
	f := newFixture(t, `{"logged_in": false}`)

	summary, err := f.run(t, Options{})
	require.ErrorIs(t, err, ErrNotLoggedIn)
	assert.Empty(t, summary.Tallies())

	entries := readEntries(t, f.path)
	assert.Equal(t, []string{"profile.json"}, keys(entries), "the archive is finalized with the profile only")
	assert.Equal(t, []string{dawanda.ProfilePath}, f.shop.requests())
	assert.Contains(t, f.out.String(), "[*] fetching profile ... NOT LOGGED IN\n")
}

func TestRunProfileFailure(t *testing.T) {
	f := newFixture(t, `not json`)

	_, err := f.run(t, Options{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotLoggedIn)
	assert.Empty(t, readEntries(t, f.path))
}

func TestRunSkipsStages(t *testing.T) {
	f := newFixture(t, loggedIn)

	summary, err := f.run(t, Options{SkipRatings: true, SkipProducts: true})
	require.NoError(t, err)
	assert.Empty(t, summary.Tallies())
	assert.Equal(t, []string{"profile.json"}, keys(readEntries(t, f.path)))
	assert.Equal(t, []string{dawanda.ProfilePath}, f.shop.requests())
}

func TestRunSkipImages(t *testing.T) {
	f := newFixture(t, loggedIn)

	summary, err := f.run(t, Options{SkipRatings: true, SkipImages: true})
	require.NoError(t, err)
	assert.Equal(t, []ui.Tally{{N: 4, Label: "products"}}, summary.Tallies())

	for name := range readEntries(t, f.path) {
		assert.False(t, strings.HasPrefix(name, "product_images/"), name)
	}
}

func TestRunCancelled(t *testing.T) {
	f := newFixture(t, loggedIn)
	w, err := archive.Open(f.path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = New(f.client, Options{Logger: logger.NewNopLogger()}).Run(ctx, w)
	require.Error(t, err)

	assert.ErrorIs(t, w.WriteEntry("late", nil, true), archive.ErrClosed, "the archive is closed on every path")
}

func TestRunLogsDetailFailures(t *testing.T) {
	f := newFixture(t, loggedIn)
	log := logger.NewTestLogger()

	_, err := f.run(t, Options{SkipRatings: true, SkipImages: true, Logger: log})
	require.NoError(t, err)
	assert.True(t, log.HasMessageContaining("WARN", "keeping product summary without details"))
	assert.True(t, log.HasMessageContaining("INFO", "export finished"))
}

func keys(m map[string]*zip.File) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestRunDropsInterruptedImage(t *testing.T) {
	f := newFixture(t, loggedIn)
	f.shop.dropImages = true

	summary, err := f.run(t, Options{SkipRatings: true})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Images)
	assert.Equal(t, 2, summary.ImageFailures)

	entries := readEntries(t, f.path)
	assert.NotContains(t, entries, "product_images/11.jpg", "a truncated image is not archived")
	assert.Contains(t, entries, "product_images/13.dat")
}
