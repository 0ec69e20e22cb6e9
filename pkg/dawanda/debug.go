package dawanda

import (
	"net/http"
	"net/http/httputil"

	"dwarchive/pkg/logger"
)

// dumpTransport logs the headers of every request and response at debug
// level. Bodies are left out, they are often binary images.
type dumpTransport struct {
	next   http.RoundTripper
	logger logger.Logger
}

func (t *dumpTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if dump, err := httputil.DumpRequestOut(req, false); err == nil {
		t.logger.DebugWithFields("http request", map[string]interface{}{
			"dump": string(dump),
		})
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if dump, err := httputil.DumpResponse(resp, false); err == nil {
		t.logger.DebugWithFields("http response", map[string]interface{}{
			"dump": string(dump),
		})
	}
	return resp, nil
}
