package exporter

import (
	"context"
	"io"
	"net/url"

	"dwarchive/pkg/crawler"
	"dwarchive/pkg/dawanda"
)

// Gateway is an authenticated marketplace session
type Gateway interface {
	crawler.Fetcher
	// Open streams a 200 response body; other statuses are errors.
	Open(ctx context.Context, url string) (io.ReadCloser, error)
	FetchProfile(ctx context.Context) (*dawanda.Profile, error)
	BaseURL() *url.URL
}

// Display receives the operator-facing progress output
type Display interface {
	crawler.Reporter
	Step(title string)
	Inline(title string)
	Line(text string)
	Count(n int)
	Progress(format string, args ...interface{})
}

type nopDisplay struct{}

func (nopDisplay) Visiting(string)                 {}
func (nopDisplay) Notice(string)                   {}
func (nopDisplay) Step(string)                     {}
func (nopDisplay) Inline(string)                   {}
func (nopDisplay) Line(string)                     {}
func (nopDisplay) Count(int)                       {}
func (nopDisplay) Progress(string, ...interface{}) {}
