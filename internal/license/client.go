package license

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/idelchi/modelseal/internal/errkind"
	"github.com/idelchi/modelseal/internal/logging"
)

// DefaultTimeout bounds a key request.
const DefaultTimeout = 15 * time.Second

// maxResponseSize caps the response body read from the authority.
const maxResponseSize = 1 << 20

// Request is the body posted to the authority.
type Request struct {
	Key string `json:"key"`
	MAC string `json:"mac"`
	CPU string `json:"cpu"`
}

// Response is the authority's reply.
type Response struct {
	Success   bool   `json:"success"`
	XORResult string `json:"xorResult,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	Error     string `json:"error,omitempty"`
}

// clientOptions holds the internal configuration of a Client.
type clientOptions struct {
	timeout            time.Duration
	allowLocalhost     bool
	insecureSkipVerify bool
	userAgent          string
	probe              Probe
	logger             *logrus.Logger
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

// ClientOpt contains options for NewClient.
var ClientOpt clientOptionBuilder //nolint:gochecknoglobals

// clientOptionBuilder is the internal builder for ClientOption functions.
type clientOptionBuilder struct{}

// WithTimeout bounds each request, including reading the response.
func (clientOptionBuilder) WithTimeout(timeout time.Duration) ClientOption {
	return func(opts *clientOptions) {
		opts.timeout = timeout
	}
}

// WithLocalhost allows plain HTTP connections to localhost addresses.
func (clientOptionBuilder) WithLocalhost(allow bool) ClientOption {
	return func(opts *clientOptions) {
		opts.allowLocalhost = allow
	}
}

// WithInsecureSkipVerify skips TLS certificate verification (for testing).
func (clientOptionBuilder) WithInsecureSkipVerify(skip bool) ClientOption {
	return func(opts *clientOptions) {
		opts.insecureSkipVerify = skip
	}
}

// WithUserAgent sets the User-Agent header.
func (clientOptionBuilder) WithUserAgent(userAgent string) ClientOption {
	return func(opts *clientOptions) {
		opts.userAgent = userAgent
	}
}

// WithProbe replaces the system device probe.
func (clientOptionBuilder) WithProbe(probe Probe) ClientOption {
	return func(opts *clientOptions) {
		opts.probe = probe
	}
}

// WithLogger sets the logger.
func (clientOptionBuilder) WithLogger(logger *logrus.Logger) ClientOption {
	return func(opts *clientOptions) {
		opts.logger = logger
	}
}

// Client requests decryption keys from a license authority.
// It is stateless between calls and never retries.
type Client struct {
	url    string
	apiKey string
	opts   clientOptions
	http   *retryablehttp.Client
}

// NewClient returns a client posting to rawURL with apiKey.
// HTTPS is required unless the host is localhost and localhost is allowed.
func NewClient(rawURL, apiKey string, opts ...ClientOption) (*Client, error) {
	options := clientOptions{
		timeout:        DefaultTimeout,
		allowLocalhost: true,
		userAgent:      "modelseal/1.0",
	}

	for _, opt := range opts {
		opt(&options)
	}

	options.logger = logging.OrDiscard(options.logger)

	if options.probe == nil {
		options.probe = SystemProbe{Logger: options.logger}
	}

	if apiKey == "" {
		return nil, errors.New("API key is not set")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid license URL %q", rawURL)
	}

	isLocalhost := strings.EqualFold(parsedURL.Hostname(), "localhost") ||
		parsedURL.Hostname() == "127.0.0.1" ||
		parsedURL.Hostname() == "::1"

	if !strings.EqualFold(parsedURL.Scheme, "https") && (!isLocalhost || !options.allowLocalhost) {
		return nil, errors.New("HTTPS scheme is required")
	}

	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 0
	httpClient.Logger = nil
	httpClient.HTTPClient.Timeout = options.timeout
	httpClient.CheckRetry = func(ctx context.Context, _ *http.Response, _ error) (bool, error) {
		return false, ctx.Err()
	}

	if options.insecureSkipVerify {
		httpClient.HTTPClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // opt-in for testing
		}
	}

	return &Client{
		url:    rawURL,
		apiKey: apiKey,
		opts:   options,
		http:   httpClient,
	}, nil
}

// RequestKey probes the device and requests its decryption key.
func (c *Client) RequestKey(ctx context.Context) (string, error) {
	device, err := c.opts.probe.Device(ctx)
	if err != nil {
		return "", fmt.Errorf("probing device: %w", err)
	}

	return c.RequestKeyFor(ctx, device)
}

// RequestKeyFor performs one key exchange for device and returns the recovered key.
//
// Transport failures and unexpected statuses are ErrNetwork. A refusal carrying a message is an
// *errkind.AuthError. A successful reply lacking xorResult or timestamp is ErrMissingField.
func (c *Client) RequestKeyFor(ctx context.Context, device DeviceInfo) (string, error) {
	log := c.opts.logger.WithFields(logrus.Fields{
		"url":         c.url,
		"fingerprint": logging.Truncate(device.Fingerprint(), 16),
		"mac":         device.MAC,
		"hardware":    device.Hardware,
	})
	log.Info("requesting decryption key")

	body, err := json.Marshal(Request{Key: c.apiKey, MAC: device.MAC, CPU: device.Hardware})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.opts.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		log.WithError(err).Error("license server unreachable")

		return "", fmt.Errorf("%w: %w", errkind.ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("%w: reading response: %w", errkind.ErrNetwork, err)
	}

	reply, err := decodeReply(resp.StatusCode, raw)
	if err != nil {
		log.WithError(err).Error("license request refused")

		return "", err
	}

	key, err := Recover(reply.XORResult, reply.Timestamp)
	if err != nil {
		return "", err
	}

	log.WithField("timestamp", reply.Timestamp).Info("decryption key received")

	return key, nil
}

func decodeReply(status int, raw []byte) (Response, error) {
	var reply Response

	decodeErr := json.Unmarshal(raw, &reply)

	switch {
	case status >= http.StatusOK && status < http.StatusMultipleChoices:
	case status >= http.StatusBadRequest && status < http.StatusInternalServerError && decodeErr == nil && reply.Error != "":
		return Response{}, &errkind.AuthError{Message: reply.Error}
	default:
		return Response{}, fmt.Errorf("%w: license server returned status %d", errkind.ErrNetwork, status)
	}

	if decodeErr != nil {
		return Response{}, fmt.Errorf("%w: malformed response: %w", errkind.ErrAuth, decodeErr)
	}

	if !reply.Success {
		msg := reply.Error
		if msg == "" {
			msg = "unknown server error"
		}

		return Response{}, &errkind.AuthError{Message: msg}
	}

	if reply.XORResult == "" || reply.Timestamp == 0 {
		return Response{}, errkind.ErrMissingField
	}

	return reply, nil
}
