package crawler

import (
	"fmt"
	"net/url"
)

// Frontier is the crawl's work list: a LIFO stack of pending URLs, the
// set of URLs already fetched and the set of URLs that failed to load.
// It is owned by a single crawl and is not safe for concurrent use.
type Frontier struct {
	base   *url.URL
	stack  []string
	seen   map[string]struct{}
	failed map[string]struct{}
}

// NewFrontier returns a frontier that resolves relative URLs against base
func NewFrontier(base *url.URL, seeds ...string) *Frontier {
	f := &Frontier{
		base:   base,
		seen:   make(map[string]struct{}),
		failed: make(map[string]struct{}),
	}
	f.Push(seeds...)
	return f
}

// Push adds URLs to the top of the stack. Duplicates are accepted here and
// dropped when popped.
func (f *Frontier) Push(refs ...string) {
	f.stack = append(f.stack, refs...)
}

// Pop removes the most recently pushed URL
func (f *Frontier) Pop() (string, bool) {
	n := len(f.stack)
	if n == 0 {
		return "", false
	}
	ref := f.stack[n-1]
	f.stack = f.stack[:n-1]
	return ref, true
}

// Len returns the number of pending URLs, duplicates included
func (f *Frontier) Len() int {
	return len(f.stack)
}

// Normalize resolves ref against the base origin and drops any fragment
func (f *Frontier) Normalize(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", ref, err)
	}
	abs := f.base.ResolveReference(u)
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String(), nil
}

// Seen reports whether a normalized URL was already fetched
func (f *Frontier) Seen(normalized string) bool {
	_, ok := f.seen[normalized]
	return ok
}

// Done reports whether a normalized URL was fetched or abandoned. Such a
// URL is never requested again.
func (f *Frontier) Done(normalized string) bool {
	if f.Seen(normalized) {
		return true
	}
	_, ok := f.failed[normalized]
	return ok
}

// MarkFailed records a normalized URL that could not be loaded
func (f *Frontier) MarkFailed(normalized string) {
	f.failed[normalized] = struct{}{}
}

// MarkSeen records a normalized URL as fetched
func (f *Frontier) MarkSeen(normalized string) {
	f.seen[normalized] = struct{}{}
}

// SeenCount returns the number of distinct URLs fetched
func (f *Frontier) SeenCount() int {
	return len(f.seen)
}
