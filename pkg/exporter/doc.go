// Package exporter runs a complete account export: profile, ratings,
// product lists, product details and product images, in that order, into
// one archive.
//
// The gateway must already be authenticated. Run never retries; pages,
// details and images that fail are logged, counted in the Summary and
// skipped.
package exporter
