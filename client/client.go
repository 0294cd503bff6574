package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/publicsuffix"
	"pkt.systems/pslog"

	"pkt.systems/sapadt/adterr"
	"pkt.systems/sapadt/ident"
	"pkt.systems/sapadt/internal/clock"
	"pkt.systems/sapadt/internal/loggingutil"
	"pkt.systems/sapadt/internal/version"
)

const (
	// DefaultPollInterval is the pause between polls of a running operation.
	DefaultPollInterval = 2 * time.Second
	// DefaultHTTPTimeout bounds a single request.
	DefaultHTTPTimeout = 60 * time.Second
	// DefaultCSRFPath is fetched to obtain a CSRF token.
	DefaultCSRFPath = "/sap/bc/adt/discovery"
	// DefaultLanguage is sent as Accept-Language.
	DefaultLanguage = "en"

	headerCSRF        = "X-Csrf-Token"
	headerSessionType = "X-Sap-Adt-Sessiontype"
	headerContextID   = "Sap-Adt-Contextid"
	cookieContextID   = "sap-contextid"
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Location returns the Location header.
func (r *Response) Location() string {
	if r == nil {
		return ""
	}
	return r.Header.Get("Location")
}

// Session is an authenticated connection to one SAP system.
type Session struct {
	baseURL      *url.URL
	user         string
	password     string
	sapClient    ident.SAPClient
	language     string
	userClient   *http.Client
	httpClient   *http.Client
	httpTimeout  time.Duration
	insecure     bool
	pollInterval time.Duration
	clock        clock.Clock
	logger       pslog.Base
	baseLogger   pslog.Base
	csrfPath     string
	tracing      bool
	metrics      *sessionMetrics
	jar          *cookiejar.Jar

	mu        sync.Mutex
	csrfToken string
	stateful  bool
	contextID string
	cookies   map[string]*http.Cookie
}

// Option configures a Session.
type Option func(*Session)

// WithCredentials sets the Basic authentication user and password.
func WithCredentials(user, password string) Option {
	return func(s *Session) {
		s.user = user
		s.password = password
	}
}

// WithSAPClient sets the logon client sent as sap-client.
func WithSAPClient(c ident.SAPClient) Option {
	return func(s *Session) { s.sapClient = c }
}

// WithLanguage sets the logon language. Empty keeps the default.
func WithLanguage(lang string) Option {
	return func(s *Session) {
		if lang = strings.TrimSpace(lang); lang != "" {
			s.language = strings.ToLower(lang)
		}
	}
}

// WithHTTPClient supplies the HTTP client whose transport is used. The session
// installs its own cookie jar and disables redirects on a copy.
func WithHTTPClient(cli *http.Client) Option {
	return func(s *Session) {
		if cli != nil {
			s.userClient = cli
		}
	}
}

// WithHTTPTimeout bounds each request. Zero disables the per-request bound.
func WithHTTPTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d >= 0 {
			s.httpTimeout = d
		}
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
func WithInsecureSkipVerify(insecure bool) Option {
	return func(s *Session) { s.insecure = insecure }
}

// WithPollInterval sets the pause between polls.
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithClock replaces the clock used by polling.
func WithClock(c clock.Clock) Option {
	return func(s *Session) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger supplies a logger for session diagnostics.
// Passing nil falls back to pslog.NoopLogger().
func WithLogger(logger pslog.Base) Option {
	return func(s *Session) {
		if logger == nil {
			s.logger = pslog.NoopLogger()
			s.baseLogger = s.logger
			return
		}
		s.baseLogger = logger
		s.logger = loggingutil.FromBase(logger, "client.http")
	}
}

// WithCSRFPath overrides the endpoint used to fetch CSRF tokens.
func WithCSRFPath(path string) Option {
	return func(s *Session) {
		if path = strings.TrimSpace(path); path != "" {
			s.csrfPath = path
		}
	}
}

// WithTracing wraps the transport with OpenTelemetry HTTP instrumentation.
func WithTracing(enabled bool) Option {
	return func(s *Session) { s.tracing = enabled }
}

// New constructs a session for baseURL (scheme, host and optional port).
func New(baseURL string, opts ...Option) (*Session, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, adterr.New("client.New", "", adterr.Internal, "base URL required")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, adterr.Newf("client.New", trimmed, adterr.Internal, "invalid base URL: %v", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, adterr.New("client.New", trimmed, adterr.Internal, "base URL must be http(s)://host[:port]")
	}
	s := &Session{
		baseURL:      u,
		language:     DefaultLanguage,
		httpTimeout:  DefaultHTTPTimeout,
		pollInterval: DefaultPollInterval,
		clock:        clock.Real{},
		logger:       pslog.NoopLogger(),
		baseLogger:   pslog.NoopLogger(),
		csrfPath:     DefaultCSRFPath,
		cookies:      make(map[string]*http.Cookie),
	}
	for _, opt := range opts {
		opt(s)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, adterr.Wrap("client.New", trimmed, adterr.Internal, err)
	}
	s.jar = jar
	s.httpClient = s.buildHTTPClient()
	s.metrics = newSessionMetrics(s.logger)
	if s.insecure {
		s.logger.Warn("client.tls.insecure", "endpoint", trimmed, "reason", "certificate verification disabled")
	}
	return s, nil
}

func (s *Session) buildHTTPClient() *http.Client {
	var rt http.RoundTripper
	var timeout time.Duration
	if s.userClient != nil {
		rt = s.userClient.Transport
		timeout = s.userClient.Timeout
	}
	if rt == nil || s.insecure {
		var tr *http.Transport
		if base, ok := rt.(*http.Transport); ok {
			tr = base.Clone()
		} else if rt == nil {
			tr = http.DefaultTransport.(*http.Transport).Clone()
		}
		if tr != nil {
			if s.insecure {
				if tr.TLSClientConfig == nil {
					tr.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
				}
				tr.TLSClientConfig.InsecureSkipVerify = true //nolint:gosec // operator opt-in
			}
			rt = tr
		}
	}
	if s.tracing {
		rt = otelhttp.NewTransport(rt,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return "sapadt " + r.Method + " " + r.URL.Path
			}))
	}
	return &http.Client{
		Transport: rt,
		Jar:       s.jar,
		Timeout:   timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// BaseURL returns scheme://host[:port].
func (s *Session) BaseURL() string { return s.baseURL.String() }

// PollInterval returns the configured poll interval.
func (s *Session) PollInterval() time.Duration { return s.pollInterval }

// Clock returns the clock used for polling.
func (s *Session) Clock() clock.Clock { return s.clock }

// Logger returns the logger supplied with WithLogger, without the session's
// own subsystem tag, so callers can derive their own.
func (s *Session) Logger() pslog.Base { return s.baseLogger }

// Close releases idle connections.
func (s *Session) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

// Get issues a GET request.
func (s *Session) Get(ctx context.Context, path string, headers map[string]string) (*Response, error) {
	return s.do(ctx, http.MethodGet, path, "", "", headers)
}

// Post issues a POST request, fetching a CSRF token first if needed.
func (s *Session) Post(ctx context.Context, path, body, contentType string, headers map[string]string) (*Response, error) {
	return s.do(ctx, http.MethodPost, path, body, contentType, headers)
}

// Put issues a PUT request, fetching a CSRF token first if needed.
func (s *Session) Put(ctx context.Context, path, body, contentType string, headers map[string]string) (*Response, error) {
	return s.do(ctx, http.MethodPut, path, body, contentType, headers)
}

// Delete issues a DELETE request, fetching a CSRF token first if needed.
func (s *Session) Delete(ctx context.Context, path string, headers map[string]string) (*Response, error) {
	return s.do(ctx, http.MethodDelete, path, "", "", headers)
}

// FetchCSRFToken requests a fresh token and caches it.
func (s *Session) FetchCSRFToken(ctx context.Context) (string, error) {
	const op = "FetchCSRFToken"
	s.logDebugCtx(ctx, "client.csrf.fetch", "endpoint", s.csrfPath)
	resp, err := s.send(ctx, http.MethodGet, s.csrfPath, "", "", map[string]string{
		"x-csrf-token": "Fetch",
		"Accept":       "*/*",
	}, false)
	if err != nil {
		if adterr.Is(err, adterr.Timeout) {
			return "", err
		}
		return "", adterr.Newf(op, s.csrfPath, adterr.CsrfToken, "CSRF token fetch failed: %v", err)
	}
	if !resp.OK() {
		e := adterr.FromResponse(op, s.csrfPath, resp.StatusCode, resp.Body)
		if e.Category != adterr.Authentication {
			e.Category = adterr.CsrfToken
			e.Message = "CSRF token fetch failed: " + e.Message
		}
		return "", e
	}
	token := strings.TrimSpace(resp.Header.Get(headerCSRF))
	if token == "" || strings.EqualFold(token, "Required") {
		return "", adterr.New(op, s.csrfPath, adterr.CsrfToken, "server did not return a CSRF token")
	}
	s.mu.Lock()
	s.csrfToken = token
	s.mu.Unlock()
	return token, nil
}

// CSRFToken returns the cached token.
func (s *Session) CSRFToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.csrfToken
}

func (s *Session) clearCSRF() {
	s.mu.Lock()
	s.csrfToken = ""
	s.mu.Unlock()
}

// SetStateful toggles stateful mode. Turning it off drops the context id but
// keeps cookies.
func (s *Session) SetStateful(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateful = on
	if !on {
		s.contextID = ""
	}
}

// IsStateful reports whether stateful mode is on.
func (s *Session) IsStateful() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateful
}

// ContextID returns the server context id tracked in stateful mode.
func (s *Session) ContextID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contextID
}

func (s *Session) do(ctx context.Context, method, path, body, contentType string, headers map[string]string) (*Response, error) {
	write := method != http.MethodGet && method != http.MethodHead
	if write && s.CSRFToken() == "" {
		if _, err := s.FetchCSRFToken(ctx); err != nil {
			return nil, err
		}
	}
	resp, err := s.send(ctx, method, path, body, contentType, headers, write)
	if err != nil {
		return nil, err
	}
	if !write || resp.StatusCode != http.StatusForbidden {
		return resp, nil
	}
	if !strings.EqualFold(strings.TrimSpace(resp.Header.Get(headerCSRF)), "Required") {
		return nil, csrfRejected(method, path, resp)
	}
	s.logDebugCtx(ctx, "client.csrf.refresh", "endpoint", path, "method", method)
	s.clearCSRF()
	if _, err := s.FetchCSRFToken(ctx); err != nil {
		return nil, err
	}
	resp, err = s.send(ctx, method, path, body, contentType, headers, write)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusForbidden {
		return nil, csrfRejected(method, path, resp)
	}
	return resp, nil
}

func csrfRejected(method, path string, resp *Response) error {
	e := adterr.FromResponse("client."+strings.ToLower(method), path, resp.StatusCode, resp.Body)
	e.Category = adterr.CsrfToken
	if e.SAPError == nil {
		if body := strings.TrimSpace(string(resp.Body)); body != "" {
			e.SAPError = &body
		}
	}
	return e
}

func (s *Session) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return s.baseURL.Scheme + "://" + s.baseURL.Host + path
}

func (s *Session) send(ctx context.Context, method, path, body, contentType string, headers map[string]string, write bool) (*Response, error) {
	op := "client." + strings.ToLower(method)
	if ctx == nil {
		ctx = context.Background()
	}
	reqCtx := ctx
	if s.httpTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, s.httpTimeout)
		defer cancel()
	}
	target := s.resolve(path)
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, target, reader)
	if err != nil {
		return nil, adterr.Wrap(op, path, adterr.Internal, err)
	}
	cid := correlationFor(ctx)
	s.applyHeaders(req, cid, contentType, headers, write)

	evt := "client.http." + strings.ToLower(method)
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.AddEvent(evt, trace.WithAttributes(
			attribute.String("sapadt.endpoint", path),
			attribute.String("sapadt.correlation_id", cid),
		))
	}
	s.logTraceCtx(ctx, evt+".start", "endpoint", path, "correlation_id", cid)
	start := time.Now()
	httpResp, err := s.httpClient.Do(req)
	if err != nil {
		s.metrics.recordRequest(ctx, method, 0)
		mapped := transportError(op, path, ctx, reqCtx, err)
		s.logDebugCtx(ctx, evt+".error", "endpoint", path, "error", err, "elapsed", time.Since(start), "correlation_id", cid)
		return nil, mapped
	}
	defer httpResp.Body.Close()
	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		s.metrics.recordRequest(ctx, method, 0)
		return nil, transportError(op, path, ctx, reqCtx, err)
	}
	s.metrics.recordRequest(ctx, method, httpResp.StatusCode)
	s.observe(req.URL, httpResp)
	s.logTraceCtx(ctx, evt+".done", "endpoint", path, "status", httpResp.StatusCode, "elapsed", time.Since(start), "bytes", len(data), "correlation_id", cid)
	return &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: data}, nil
}

func (s *Session) applyHeaders(req *http.Request, cid, contentType string, headers map[string]string, write bool) {
	if s.user != "" || s.password != "" {
		req.SetBasicAuth(s.user, s.password)
	}
	if !s.sapClient.IsZero() {
		req.Header.Set("sap-client", s.sapClient.String())
	}
	req.Header.Set("Accept-Language", s.language)
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set(headerCorrelationID, cid)
	s.mu.Lock()
	token, stateful := s.csrfToken, s.stateful
	s.mu.Unlock()
	if write && token != "" {
		req.Header.Set(headerCSRF, token)
	}
	if stateful {
		req.Header.Set(headerSessionType, "stateful")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(http.CanonicalHeaderKey(k), v)
	}
}

func transportError(op, path string, parent, reqCtx context.Context, err error) error {
	switch {
	case errors.Is(parent.Err(), context.Canceled) || errors.Is(err, context.Canceled):
		return adterr.Newf(op, path, adterr.Timeout, "request cancelled: %v", err)
	case errors.Is(reqCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded):
		return adterr.Newf(op, path, adterr.Timeout, "request timed out: %v", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return adterr.Newf(op, path, adterr.Timeout, "request timed out: %v", err)
	}
	return adterr.Wrap(op, path, adterr.Connection, err)
}

// observe records cookies and the stateful context id from a response.
func (s *Session) observe(u *url.URL, resp *http.Response) {
	cookies := resp.Cookies()
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, c := range cookies {
		cp := *c
		if cp.Domain == "" {
			cp.Domain = u.Hostname()
		}
		if cp.Path == "" {
			cp.Path = "/"
		}
		key := cookieKey(&cp)
		if cp.MaxAge < 0 || (!cp.Expires.IsZero() && cp.Expires.Before(now)) {
			delete(s.cookies, key)
			continue
		}
		if cp.MaxAge > 0 {
			cp.Expires = now.Add(time.Duration(cp.MaxAge) * time.Second)
			cp.MaxAge = 0
		}
		s.cookies[key] = &cp
		if s.stateful && cp.Name == cookieContextID {
			s.contextID = cp.Value
		}
	}
	if s.stateful {
		if id := resp.Header.Get(headerContextID); id != "" {
			s.contextID = id
		}
	}
}

func cookieKey(c *http.Cookie) string {
	return c.Name + "|" + c.Domain + "|" + c.Path
}

// Cookies returns the unexpired cookies received so far, sorted by name.
func (s *Session) Cookies() []*http.Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	out := make([]*http.Cookie, 0, len(s.cookies))
	for _, c := range s.cookies {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return cookieKey(out[i]) < cookieKey(out[j])
	})
	return out
}

// resetCookies swaps in an empty jar and forgets tracked cookies.
func (s *Session) resetCookies() error {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jar = jar
	s.httpClient.Jar = jar
	s.cookies = make(map[string]*http.Cookie)
	return nil
}

// restoreCookies installs persisted cookies into the jar and tracking map.
func (s *Session) restoreCookies(cookies []*http.Cookie) {
	host := s.baseURL.Hostname()
	jarCookies := make([]*http.Cookie, 0, len(cookies))
	s.mu.Lock()
	for _, c := range cookies {
		cp := *c
		if cp.Path == "" {
			cp.Path = "/"
		}
		if cp.Domain == "" {
			cp.Domain = host
		}
		s.cookies[cookieKey(&cp)] = &cp
		jc := cp
		if strings.EqualFold(jc.Domain, host) {
			jc.Domain = ""
		}
		jarCookies = append(jarCookies, &jc)
	}
	s.mu.Unlock()
	s.jar.SetCookies(s.baseURL, jarCookies)
}

func (s *Session) logTraceCtx(ctx context.Context, msg string, keyvals ...any) {
	s.logger.Trace(msg, keyvals...)
}

func (s *Session) logDebugCtx(ctx context.Context, msg string, keyvals ...any) {
	s.logger.Debug(msg, keyvals...)
}

func statusClass(status int) string {
	if status <= 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}

// String renders the session target for diagnostics without secrets.
func (s *Session) String() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s", s.baseURL.String())
	if !s.sapClient.IsZero() {
		fmt.Fprintf(&b, " client=%s", s.sapClient)
	}
	if s.user != "" {
		fmt.Fprintf(&b, " user=%s", s.user)
	}
	return b.String()
}
