package exporter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"dwarchive/pkg/archive"
	"dwarchive/pkg/crawler"
	"dwarchive/pkg/dawanda"
	dwerrors "dwarchive/pkg/errors"
	"dwarchive/pkg/extract"
	"dwarchive/pkg/logger"
	"dwarchive/pkg/metrics"
	"dwarchive/pkg/models"
	"dwarchive/pkg/ui"
)

// Archive entry names
const (
	ProfileEntry     = "profile.json"
	RatingsEntry     = "ratings.json"
	ProductListEntry = "productlist.json"
	ProductsEntry    = "products.json"
)

// Stage labels for logs and metrics
const (
	StageProfile  = "profile"
	StageRatings  = "ratings"
	StageProducts = "products"
	StageDetails  = "details"
	StageImages   = "images"
)

// ErrNotLoggedIn is returned when the profile reports no logged-in user.
// The archive still holds profile.json.
var ErrNotLoggedIn = errors.New("not logged in")

// Options configures an export run
type Options struct {
	SkipRatings  bool
	SkipProducts bool
	// SkipImages only applies when products are exported.
	SkipImages bool

	DiagnosticsDir string
	// MetricsFile receives a Prometheus textfile when the run ends.
	MetricsFile string

	Display Display
	Metrics *metrics.Metrics
	Logger  logger.Logger
}

// Summary describes what a run archived
type Summary struct {
	Username string

	RatingsExported  bool
	Ratings          int
	ProductsExported bool
	Products         int
	Images           int

	PageFailures   int
	DetailFailures int
	ImageFailures  int
	Diagnostics    []string
}

// Tallies returns the counters for the final summary line, one per stage
// that ran.
func (s *Summary) Tallies() []ui.Tally {
	var tallies []ui.Tally
	if s.ProductsExported {
		tallies = append(tallies, ui.Tally{N: s.Products, Label: "products"})
	}
	if s.RatingsExported {
		tallies = append(tallies, ui.Tally{N: s.Ratings, Label: "ratings"})
	}
	return tallies
}

func (s *Summary) addCrawl(result *crawler.Result) {
	if result == nil {
		return
	}
	s.PageFailures += len(result.Failures)
	s.Diagnostics = append(s.Diagnostics, result.Diagnostics()...)
}

// Exporter runs the export stages against one authenticated gateway
type Exporter struct {
	gateway Gateway
	base    *url.URL
	opts    Options
	display Display
	metrics *metrics.Metrics
	logger  logger.Logger
}

// New creates an exporter
func New(gateway Gateway, opts Options) *Exporter {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	display := opts.Display
	if display == nil {
		display = nopDisplay{}
	}
	return &Exporter{
		gateway: gateway,
		base:    gateway.BaseURL(),
		opts:    opts,
		display: display,
		metrics: opts.Metrics,
		logger:  log,
	}
}

// Run exports the account into w and closes w before returning, whatever
// the outcome. Page, detail and image failures are counted in the summary
// and do not fail the run; a profile failure, ErrNotLoggedIn, archive
// errors and cancellation do.
func (e *Exporter) Run(ctx context.Context, w *archive.Writer) (summary *Summary, err error) {
	summary = &Summary{}
	start := time.Now()

	defer func() {
		if closeErr := w.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		if e.opts.MetricsFile != "" {
			if mErr := e.metrics.WriteTextfile(e.opts.MetricsFile); mErr != nil {
				e.logger.WithError(mErr).Warn("failed to write metrics file")
			}
		}
		e.logger.InfoWithFields("export finished", map[string]interface{}{
			"archive":         w.Path(),
			"products":        summary.Products,
			"ratings":         summary.Ratings,
			"images":          summary.Images,
			"page_failures":   summary.PageFailures,
			"detail_failures": summary.DetailFailures,
			"image_failures":  summary.ImageFailures,
			"duration":        time.Since(start).String(),
		})
	}()

	profile, err := e.exportProfile(ctx, w)
	if err != nil {
		return summary, err
	}
	summary.Username = profile.Username

	if !e.opts.SkipRatings {
		if err := e.exportRatings(ctx, w, profile.Username, summary); err != nil {
			return summary, err
		}
	}

	if !e.opts.SkipProducts {
		products, err := e.exportProducts(ctx, w, summary)
		if err != nil {
			return summary, err
		}
		if !e.opts.SkipImages {
			if err := e.exportImages(ctx, w, products, summary); err != nil {
				return summary, err
			}
		}
	}

	return summary, nil
}

func (e *Exporter) exportProfile(ctx context.Context, w *archive.Writer) (*dawanda.Profile, error) {
	e.display.Inline("fetching profile")

	profile, err := e.gateway.FetchProfile(ctx)
	if err != nil {
		e.display.Line("FAILED")
		e.metrics.IncError(string(dwerrors.TypeOf(err)))
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}

	data, err := profile.Indented()
	if err != nil {
		e.display.Line("FAILED")
		return nil, fmt.Errorf("failed to format profile: %w", err)
	}
	if err := w.WriteEntry(ProfileEntry, data, true); err != nil {
		e.display.Line("FAILED")
		return nil, err
	}

	if !profile.LoggedIn {
		e.display.Line("NOT LOGGED IN")
		return profile, ErrNotLoggedIn
	}
	e.display.Line(profile.Username)
	return profile, nil
}

func (e *Exporter) exportRatings(ctx context.Context, w *archive.Writer, username string, summary *Summary) error {
	e.display.Step("fetching ratings")
	logger.LogStageStart(e.logger, StageRatings)

	feedback := extract.NewFeedbackExtractor()
	if username == "" {
		e.logger.Warn("profile has no username, skipping ratings")
	} else {
		result, err := e.newCrawler(StageRatings).Crawl(ctx, []string{dawanda.FeedbackPath(username)}, feedback)
		summary.addCrawl(result)
		if err != nil {
			return err
		}
	}

	ratings := feedback.Ratings()
	if err := w.WriteJSON(RatingsEntry, ratings); err != nil {
		return err
	}
	summary.RatingsExported = true
	summary.Ratings = len(ratings)
	e.metrics.AddItems("rating", len(ratings))

	e.display.Count(len(ratings))
	logger.LogStageDone(e.logger, StageRatings, map[string]interface{}{"ratings": len(ratings)})
	return nil
}

func (e *Exporter) exportProducts(ctx context.Context, w *archive.Writer, summary *Summary) (*models.ProductSet, error) {
	e.display.Step("fetching products")
	logger.LogStageStart(e.logger, StageProducts)

	listing := extract.NewListingExtractor(e.logger)
	result, err := e.newCrawler(StageProducts).Crawl(ctx, dawanda.ProductListPaths(), listing)
	summary.addCrawl(result)
	if err != nil {
		return nil, err
	}

	products := listing.Products()
	if err := w.WriteJSON(ProductListEntry, products); err != nil {
		return nil, err
	}
	e.display.Count(products.Len())

	all := products.All()
	for i, product := range all {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.display.Progress("    fetching details %d/%d: %s", i+1, len(all), product.ID)

		detail, err := e.fetchDetail(ctx, product.ID, summary)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			summary.DetailFailures++
			e.logger.WithError(err).WarnWithFields("keeping product summary without details", map[string]interface{}{
				"product_id": product.ID,
			})
			continue
		}
		products.Put(product.Merge(detail))
	}

	if err := w.WriteJSON(ProductsEntry, products); err != nil {
		return nil, err
	}
	summary.ProductsExported = true
	summary.Products = products.Len()
	e.metrics.AddItems("product", products.Len())

	logger.LogStageDone(e.logger, StageProducts, map[string]interface{}{
		"products":        products.Len(),
		"detail_failures": summary.DetailFailures,
	})
	return products, nil
}

// fetchDetail loads a product's edit page. Parse failures leave a
// diagnostic file behind, like crawled pages do.
func (e *Exporter) fetchDetail(ctx context.Context, productID string, summary *Summary) (*models.Object, error) {
	pageURL := e.resolve(dawanda.ProductEditPath(productID))

	start := time.Now()
	status, body, err := e.gateway.Fetch(ctx, pageURL)
	e.metrics.IncRequest(StageDetails)
	e.metrics.ObserveDuration(time.Since(start))
	if err != nil {
		e.metrics.IncError(string(dwerrors.ErrorTypeNetwork))
		e.display.Notice(fmt.Sprintf("Failed loading %s: %v", pageURL, err))
		return nil, err
	}
	if status != http.StatusOK {
		e.metrics.IncError(string(dwerrors.TypeForStatus(status)))
		e.display.Notice(fmt.Sprintf("Got error %d loading %s", status, pageURL))
		return nil, dwerrors.FromStatus(status)
	}

	detail, err := extract.ParseDetail(body)
	if err != nil {
		e.metrics.IncError(string(dwerrors.ErrorTypeParsing))
		path, dumpErr := crawler.WriteDiagnostic(e.opts.DiagnosticsDir, pageURL, err, body)
		if dumpErr != nil {
			e.display.Notice(fmt.Sprintf("Error parsing URL (%v), could not save debug data: %v", err, dumpErr))
		} else {
			summary.Diagnostics = append(summary.Diagnostics, path)
			e.metrics.IncDiagnostic()
			e.display.Notice(fmt.Sprintf("Error parsing URL (%v), saved debug data to %s", err, path))
		}
		return nil, err
	}

	e.metrics.IncPage(StageDetails)
	return detail, nil
}

func (e *Exporter) exportImages(ctx context.Context, w *archive.Writer, products *models.ProductSet, summary *Summary) error {
	logger.LogStageStart(e.logger, StageImages)

	var images []models.Image
	for _, product := range products.All() {
		list, err := product.Images()
		if err != nil {
			summary.ImageFailures++
			e.logger.WithError(err).WarnWithFields("skipping images of product", map[string]interface{}{
				"product_id": product.ID,
			})
			continue
		}
		images = append(images, list...)
	}

	for i, image := range images {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.display.Progress("... fetching images %d/%d: %s / %s", i+1, len(images), image.ProductID, image.ID)

		if err := e.fetchImage(ctx, w, image); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, archive.ErrClosed) {
				return err
			}
			summary.ImageFailures++
			e.metrics.IncError(string(dwerrors.TypeOf(err)))
			e.logger.WithError(err).WarnWithFields("failed to archive image", map[string]interface{}{
				"product_id": image.ProductID,
				"image_id":   image.ID,
				"url":        image.URL,
			})
			continue
		}
		summary.Images++
	}

	e.metrics.AddItems("image", summary.Images)
	logger.LogStageDone(e.logger, StageImages, map[string]interface{}{
		"images":   summary.Images,
		"failures": summary.ImageFailures,
	})
	return nil
}

// fetchImage downloads one image and stores it uncompressed. The entry is
// only created once the whole body has arrived, so an interrupted download
// leaves nothing behind.
func (e *Exporter) fetchImage(ctx context.Context, w *archive.Writer, image models.Image) error {
	if image.URL == "" {
		return fmt.Errorf("image %s of product %s has no URL", image.ID, image.ProductID)
	}

	start := time.Now()
	body, err := e.gateway.Open(ctx, e.resolve(image.URL))
	e.metrics.IncRequest(StageImages)
	if err != nil {
		return err
	}
	defer body.Close()

	var data bytes.Buffer
	_, err = io.Copy(&data, body)
	e.metrics.ObserveDuration(time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to download image %s: %w", image.ID, err)
	}
	return w.WriteEntry(image.EntryName(), data.Bytes(), false)
}

func (e *Exporter) newCrawler(stage string) *crawler.Crawler {
	return crawler.New(e.gateway, e.base, crawler.Options{
		Stage:          stage,
		DiagnosticsDir: e.opts.DiagnosticsDir,
		Reporter:       e.display,
		Metrics:        e.metrics,
		Logger:         e.logger,
	})
}

func (e *Exporter) resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return e.base.ResolveReference(u).String()
}
