package dawanda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"dwarchive/pkg/errors"
	"dwarchive/pkg/logger"
	"dwarchive/pkg/ratelimit"

	"golang.org/x/net/publicsuffix"
)

// Options configures a Client
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// Debug logs request and response headers for every exchange.
	Debug bool
	// Transport overrides the underlying round tripper, mostly for tests.
	Transport http.RoundTripper
	// Limiter paces requests. Nil means unlimited.
	Limiter ratelimit.Limiter
}

// Response is a fully read HTTP response
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
}

// Text returns the body as a string
func (r *Response) Text() string {
	return string(r.Body)
}

// JSON decodes the body into v
func (r *Response) JSON(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &errors.Error{
			Type:    errors.ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse JSON from %s: %v", r.URL, err),
			Code:    r.StatusCode,
			Err:     err,
		}
	}
	return nil
}

// Client is an authenticated session against the marketplace. Cookies set
// by the server, including the session cookie, persist across requests.
type Client struct {
	httpClient *http.Client
	jar        http.CookieJar
	headers    map[string]string
	baseURL    *url.URL
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

// NewClient creates a new marketplace session
func NewClient(opts Options, log logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", opts.BaseURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if opts.Debug {
		transport = &dumpTransport{next: transport, logger: log}
	}

	headers := map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "de-DE,de;q=0.9,en;q=0.8",
	}
	if opts.UserAgent != "" {
		headers["User-Agent"] = opts.UserAgent
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
			Jar:       jar,
		},
		jar:     jar,
		headers: headers,
		baseURL: base,
		limiter: opts.Limiter,
		logger:  log,
	}, nil
}

// BaseURL returns the site origin
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Resolve turns a site-relative reference into an absolute URL
func (c *Client) Resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return c.baseURL.ResolveReference(u).String()
}

// SetSessionToken installs a previously obtained session cookie, so no
// login is needed.
func (c *Client) SetSessionToken(token string) {
	cookie := &http.Cookie{
		Name:  SessionCookieName,
		Value: token,
		Path:  "/",
	}
	// Scope the cookie to the registrable domain so it reaches every
	// language subdomain. IP hosts get a host-only cookie.
	host := c.baseURL.Hostname()
	if net.ParseIP(host) == nil {
		if domain, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
			cookie.Domain = "." + domain
		}
	}
	c.jar.SetCookies(c.baseURL, []*http.Cookie{cookie})
}

// SessionToken returns the current session cookie value, if any
func (c *Client) SessionToken() string {
	for _, cookie := range c.jar.Cookies(c.baseURL) {
		if cookie.Name == SessionCookieName {
			return cookie.Value
		}
	}
	return ""
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, errors.Wrap(errors.ErrorTypeNetwork, err, "waiting for rate limit")
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.WithError(err).DebugWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"duration": duration,
		})
		return nil, errors.Wrap(errors.ErrorTypeNetwork, err, fmt.Sprintf("%s %s", req.Method, req.URL))
	}

	logger.LogRequest(c.logger, req.Method, req.URL.String(), resp.StatusCode, duration)
	return resp, nil
}

// Get fetches a URL and reads the whole body. A non-200 status is not an
// error here; callers decide what to do with it.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	resp, err := c.open(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeNetwork, err, "failed to read response body")
	}

	return &Response{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}

// Fetch implements the crawler's page source
func (c *Client) Fetch(ctx context.Context, rawURL string) (int, []byte, error) {
	resp, err := c.Get(ctx, rawURL)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, resp.Body, nil
}

// Open starts a GET and returns the body for streaming. Anything but a
// 200 is returned as an error and the body is closed.
func (c *Client) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	resp, err := c.open(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp.StatusCode, http.StatusOK); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) open(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Resolve(rawURL), nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeUnknown, err, "failed to create request")
	}
	return c.doRequest(req)
}

// PostForm submits a url-encoded form and returns the status code
func (c *Client) PostForm(ctx context.Context, rawURL string, fields url.Values) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Resolve(rawURL), strings.NewReader(fields.Encode()))
	if err != nil {
		return 0, errors.Wrap(errors.ErrorTypeUnknown, err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.doRequest(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// Login posts the credentials. The site answers 201 Created on success;
// every other status means the login was rejected.
func (c *Client) Login(ctx context.Context, username, password string) error {
	c.logger.DebugWithFields("logging in", map[string]interface{}{
		"username": username,
	})

	status, err := c.PostForm(ctx, LoginPath, LoginForm(username, password))
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return &errors.Error{
			Type:    errors.ErrorTypeAuth,
			Message: "login failed",
			Code:    status,
		}
	}
	return nil
}

// Profile is the current user's profile document
type Profile struct {
	LoggedIn bool   `json:"logged_in"`
	Username string `json:"username"`
	// Raw is the document exactly as the server sent it.
	Raw json.RawMessage `json:"-"`
}

// Indented returns the raw profile re-indented with two spaces
func (p *Profile) Indented() ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, p.Raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FetchProfile loads the profile of whoever the session belongs to
func (c *Client) FetchProfile(ctx context.Context) (*Profile, error) {
	resp, err := c.Get(ctx, ProfilePath)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp.StatusCode, http.StatusOK); err != nil {
		return nil, err
	}

	var profile Profile
	if err := resp.JSON(&profile); err != nil {
		return nil, err
	}
	profile.Raw = json.RawMessage(resp.Body)

	c.logger.DebugWithFields("fetched profile", map[string]interface{}{
		"username":  profile.Username,
		"logged_in": profile.LoggedIn,
	})
	return &profile, nil
}

func checkStatus(got, want int) error {
	if got == want {
		return nil
	}
	return errors.FromStatus(got)
}
