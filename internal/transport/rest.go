package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fundiconnect/fundi-go/internal/types"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

const (
	authHeaderKey      = "Authorization"
	deviceHeaderKey    = "device-uuid"
	requestIDHeaderKey = "X-Request-ID"
	contentType        = "application/json"

	maxBodySize = 10 << 20
)

// RESTTransport sends JSON requests to the Fundi API. It only reports
// transport-level failures; status code interpretation is left to the caller.
type RESTTransport struct {
	baseURL     string
	httpClient  *http.Client
	retryClient *retryablehttp.Client
	headers     map[string]string
	deviceUUID  string
	logger      types.Logger
	hooks       *types.Hooks
}

// Request describes a single API call
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    interface{}
	Headers map[string]string

	// Timeout bounds this request only. Zero uses the client timeout.
	Timeout time.Duration

	// Token is sent as a bearer credential when non-empty
	Token string
}

// Response is a raw API response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
	RequestID  string
}

// NewRESTTransport creates a new REST transport
func NewRESTTransport(opts *Options) *RESTTransport {
	if opts == nil {
		opts = &Options{}
	}

	if opts.BaseURL == "" {
		opts.BaseURL = types.DefaultBaseURL
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Timeout: types.DefaultTimeout,
		}
	}

	var retryClient *retryablehttp.Client
	if opts.RetryConfig != nil {
		retryClient = retryablehttp.NewClient()
		retryClient.HTTPClient = opts.HTTPClient
		retryClient.RetryMax = opts.RetryConfig.MaxRetries
		retryClient.RetryWaitMin = opts.RetryConfig.RetryWait
		retryClient.RetryWaitMax = opts.RetryConfig.MaxWait
		// hand the last response back instead of a "giving up" error
		retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler

		if opts.Logger != nil {
			retryClient.Logger = &retryLogger{logger: opts.Logger}
		} else {
			retryClient.Logger = nil
		}
	}

	headers := map[string]string{
		"Accept":     contentType,
		"User-Agent": types.UserAgent,
	}
	for k, v := range opts.Headers {
		headers[k] = v
	}

	deviceUUID := opts.DeviceUUID
	if deviceUUID == "" {
		deviceUUID = uuid.NewString()
	}

	return &RESTTransport{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		httpClient:  opts.HTTPClient,
		retryClient: retryClient,
		headers:     headers,
		deviceUUID:  deviceUUID,
		logger:      opts.Logger,
		hooks:       opts.Hooks,
	}
}

// BaseURL returns the API base URL
func (t *RESTTransport) BaseURL() string {
	return t.baseURL
}

// DeviceUUID returns the device identifier sent with every request
func (t *RESTTransport) DeviceUUID() string {
	return t.deviceUUID
}

// Do performs req. A non-nil error means no usable HTTP response was
// received and is always a *types.Error of kind timeout or transport.
func (t *RESTTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := t.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, &types.Error{
			Kind:    types.KindTransport,
			Code:    "REQUEST_ERROR",
			Message: err.Error(),
			Err:     types.ErrTransport,
		}
	}
	requestID := httpReq.Header.Get(requestIDHeaderKey)

	if t.hooks != nil && t.hooks.OnRequest != nil {
		t.hooks.OnRequest(ctx, httpReq)
	}

	if t.logger != nil {
		t.logger.Debug("API request", "method", httpReq.Method, "path", req.Path, "requestId", requestID)
	}

	start := time.Now()
	resp, err := t.doRequest(httpReq)
	duration := time.Since(start)

	if err != nil {
		apiErr := classifyTransportError(ctx, err)
		apiErr.RequestID = requestID
		if t.hooks != nil && t.hooks.OnError != nil {
			t.hooks.OnError(ctx, apiErr)
		}
		if t.logger != nil {
			t.logger.Warn("API request failed", "path", req.Path, "error", err, "duration", duration)
		}
		return nil, apiErr
	}
	defer resp.Body.Close()

	if t.hooks != nil && t.hooks.OnResponse != nil {
		t.hooks.OnResponse(ctx, resp, duration)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		apiErr := classifyTransportError(ctx, errors.Wrap(err, "failed to read response"))
		apiErr.RequestID = requestID
		apiErr.StatusCode = resp.StatusCode
		return nil, apiErr
	}

	if t.logger != nil {
		t.logger.Debug("API response", "path", req.Path, "status", resp.StatusCode, "duration", duration, "size", len(body))
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Duration:   duration,
		RequestID:  requestID,
	}, nil
}

func (t *RESTTransport) newHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	u := t.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal request")
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set(deviceHeaderKey, t.deviceUUID)
	httpReq.Header.Set(requestIDHeaderKey, uuid.NewString())

	if req.Token != "" {
		httpReq.Header.Set(authHeaderKey, fmt.Sprintf("Bearer %s", req.Token))
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

// doRequest executes the HTTP request with retry if configured
func (t *RESTTransport) doRequest(req *http.Request) (*http.Response, error) {
	if t.retryClient != nil {
		retryReq, err := retryablehttp.FromRequest(req)
		if err != nil {
			return nil, err
		}
		return t.retryClient.Do(retryReq)
	}
	return t.httpClient.Do(req)
}

// classifyTransportError maps a failed round trip to a timeout or transport error
func classifyTransportError(ctx context.Context, err error) *types.Error {
	if isTimeout(ctx, err) {
		return &types.Error{
			Kind:    types.KindTimeout,
			Code:    "TIMEOUT",
			Message: fmt.Sprintf("request timed out: %v", err),
			Err:     types.ErrTimeout,
		}
	}
	return &types.Error{
		Kind:    types.KindTransport,
		Code:    "TRANSPORT_ERROR",
		Message: fmt.Sprintf("request failed: %v", err),
		Err:     types.ErrTransport,
	}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ServerErrorMessage builds a readable message for a 5xx response, including
// the status description and any message the body carried.
func ServerErrorMessage(statusCode int, msg string) string {
	baseMsg := fmt.Sprintf("server error: %d", statusCode)
	if desc := httpStatusDescription(statusCode); desc != "" {
		baseMsg = fmt.Sprintf("server error: %d (%s)", statusCode, desc)
	}
	if msg != "" {
		baseMsg = fmt.Sprintf("%s: %s", baseMsg, msg)
	}
	return baseMsg
}

// httpStatusDescription returns a human-readable description for common HTTP status codes.
// Covers the Cloudflare-specific 52x range as well.
func httpStatusDescription(statusCode int) string {
	descriptions := map[int]string{
		500: "Internal Server Error",
		501: "Not Implemented",
		502: "Bad Gateway",
		503: "Service Unavailable",
		504: "Gateway Timeout",
		520: "Web Server Error",
		521: "Web Server Is Down",
		522: "Connection Timed Out",
		523: "Origin Is Unreachable",
		524: "A Timeout Occurred",
		525: "SSL Handshake Failed",
		526: "Invalid SSL Certificate",
		527: "Railgun Error",
		530: "Origin DNS Error",
	}
	return descriptions[statusCode]
}

// Options for the REST transport
type Options struct {
	BaseURL     string
	HTTPClient  *http.Client
	Headers     map[string]string
	DeviceUUID  string
	RetryConfig *types.RetryConfig
	Logger      types.Logger
	Hooks       *types.Hooks
}

// retryLogger adapts our logger to retryablehttp
type retryLogger struct {
	logger types.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, keysAndValues...)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, keysAndValues...)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, keysAndValues...)
}
