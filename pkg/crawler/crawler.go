package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	dwerrors "dwarchive/pkg/errors"
	"dwarchive/pkg/logger"
	"dwarchive/pkg/metrics"

	goerrors "github.com/go-errors/errors"
)

// DiagnosticPattern names the side files written for pages that fail to
// parse. The "*" is replaced with a unique suffix.
const DiagnosticPattern = "dawanda-*-page.txt"

// Fetcher retrieves one URL. A non-200 status is returned, not an error;
// errors are reserved for transport failures.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (status int, body []byte, err error)
}

// Extractor turns one fetched page into records, kept by the extractor
// itself, and follow-up URLs.
type Extractor interface {
	Extract(body []byte) ([]string, error)
}

// Reporter receives operator-facing progress output
type Reporter interface {
	// Visiting is called before each fetch with the site-relative path.
	Visiting(path string)
	// Notice reports a page that was skipped or failed.
	Notice(message string)
}

// Options configures a Crawler
type Options struct {
	// Stage labels log entries and metrics, e.g. "ratings".
	Stage string
	// DiagnosticsDir receives page dumps. Empty means os.TempDir().
	DiagnosticsDir string
	Reporter       Reporter
	Metrics        *metrics.Metrics
	Logger         logger.Logger
}

// Crawler walks paginated pages depth-first from a set of seeds
type Crawler struct {
	fetcher  Fetcher
	base     *url.URL
	stage    string
	diagDir  string
	reporter Reporter
	metrics  *metrics.Metrics
	logger   logger.Logger
}

// Failure describes a page that was abandoned
type Failure struct {
	URL    string
	Status int
	Err    error
	// Diagnostic is the dump file path for extraction failures.
	Diagnostic string
}

// Result summarizes one crawl
type Result struct {
	Fetched   int
	Extracted int
	Failures  []Failure
}

// Diagnostics returns the dump files written during the crawl
func (r *Result) Diagnostics() []string {
	var paths []string
	for _, f := range r.Failures {
		if f.Diagnostic != "" {
			paths = append(paths, f.Diagnostic)
		}
	}
	return paths
}

// New creates a crawler that resolves relative URLs against base
func New(fetcher Fetcher, base *url.URL, opts Options) *Crawler {
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &Crawler{
		fetcher:  fetcher,
		base:     base,
		stage:    opts.Stage,
		diagDir:  opts.DiagnosticsDir,
		reporter: reporter,
		metrics:  opts.Metrics,
		logger:   log.WithField("stage", opts.Stage),
	}
}

// Crawl fetches every seed and every follow-up link the extractor returns,
// each distinct URL at most once. Pages that fail to load or parse are
// recorded in the result and skipped; the only error returned is the
// context's.
func (c *Crawler) Crawl(ctx context.Context, seeds []string, ex Extractor) (*Result, error) {
	frontier := NewFrontier(c.base, seeds...)
	result := &Result{}

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		ref, ok := frontier.Pop()
		if !ok {
			break
		}

		pageURL, err := frontier.Normalize(ref)
		if err != nil {
			c.logger.WithError(err).Warn("skipping unparsable link")
			result.Failures = append(result.Failures, Failure{URL: ref, Err: err})
			continue
		}
		if frontier.Done(pageURL) {
			continue
		}

		c.reporter.Visiting(c.displayPath(pageURL))

		start := time.Now()
		status, body, err := c.fetcher.Fetch(ctx, pageURL)
		c.metrics.IncRequest(c.stage)
		c.metrics.ObserveDuration(time.Since(start))

		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			c.metrics.IncError(string(dwerrors.ErrorTypeNetwork))
			c.logger.WithError(err).WarnWithFields("failed to load page", map[string]interface{}{"url": pageURL})
			c.reporter.Notice(fmt.Sprintf("Failed loading %s: %v", pageURL, err))
			frontier.MarkFailed(pageURL)
			result.Failures = append(result.Failures, Failure{URL: pageURL, Err: err})
			continue
		}
		if status != http.StatusOK {
			c.metrics.IncError(string(dwerrors.TypeForStatus(status)))
			c.logger.WarnWithFields("page returned non-200 status", map[string]interface{}{
				"url":    pageURL,
				"status": status,
			})
			c.reporter.Notice(fmt.Sprintf("Got error %d loading %s", status, pageURL))
			frontier.MarkFailed(pageURL)
			result.Failures = append(result.Failures, Failure{URL: pageURL, Status: status, Err: dwerrors.FromStatus(status)})
			continue
		}

		frontier.MarkSeen(pageURL)
		result.Fetched++

		links, err := runExtractor(ex, body)
		if err != nil {
			failure := Failure{URL: pageURL, Status: status, Err: err}
			c.metrics.IncError(string(dwerrors.ErrorTypeParsing))

			path, dumpErr := WriteDiagnostic(c.diagDir, pageURL, err, body)
			if dumpErr != nil {
				c.logger.WithError(dumpErr).Error("failed to write diagnostic file")
				c.reporter.Notice(fmt.Sprintf("Error parsing URL (%v), could not save debug data: %v", err, dumpErr))
			} else {
				failure.Diagnostic = path
				c.metrics.IncDiagnostic()
				c.reporter.Notice(fmt.Sprintf("Error parsing URL (%v), saved debug data to %s", err, path))
			}
			c.logger.WithError(err).ErrorWithFields("failed to parse page", map[string]interface{}{
				"url":        pageURL,
				"diagnostic": failure.Diagnostic,
			})
			result.Failures = append(result.Failures, failure)
			continue
		}

		result.Extracted++
		c.metrics.IncPage(c.stage)
		frontier.Push(links...)
	}

	c.logger.DebugWithFields("crawl finished", map[string]interface{}{
		"fetched":   result.Fetched,
		"extracted": result.Extracted,
		"failures":  len(result.Failures),
	})
	return result, nil
}

// runExtractor turns an extractor panic into an error with its stack
func runExtractor(ex Extractor, body []byte) (links []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			links = nil
			err = goerrors.Wrap(r, 2)
		}
	}()
	return ex.Extract(body)
}

// WriteDiagnostic dumps the error, its stack trace and the raw page to a
// uniquely named file in dir and returns the file's path. An empty dir
// means os.TempDir().
func WriteDiagnostic(dir, pageURL string, cause error, body []byte) (string, error) {
	f, err := os.CreateTemp(dir, DiagnosticPattern)
	if err != nil {
		return "", err
	}

	_, err = fmt.Fprintf(f, "URL: %s\n\n%s\n", pageURL, stackTrace(cause))
	if err == nil {
		_, err = f.Write(body)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", err
	}
	return f.Name(), nil
}

func stackTrace(err error) string {
	var withStack *goerrors.Error
	if errors.As(err, &withStack) {
		return withStack.ErrorStack()
	}
	return goerrors.Wrap(err, 2).ErrorStack()
}

// displayPath strips the origin from same-site URLs
func (c *Crawler) displayPath(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host != c.base.Host {
		return pageURL
	}
	return u.RequestURI()
}

type nopReporter struct{}

func (nopReporter) Visiting(string) {}
func (nopReporter) Notice(string)   {}
