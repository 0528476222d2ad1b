package foscam

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"foscam2mqtt/internal/logger"
	"foscam2mqtt/internal/models"
)

const cgiPath = "/cgi-bin/CGIProxy.fcgi"

// Recorder receives the outcome of every device command.
type Recorder interface {
	DeviceCommand(command, outcome string, elapsed time.Duration)
}

type Client struct {
	config   models.FoscamConfig
	baseURL  string
	client   *http.Client
	recorder Recorder
}

type ClientOption func(*Client)

// WithHTTPClient replaces the transport, mainly for tests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.client = hc
	}
}

// WithBaseURL overrides the scheme://host:port derived from the config.
func WithBaseURL(base string) ClientOption {
	return func(c *Client) {
		c.baseURL = base
	}
}

func WithRecorder(r Recorder) ClientOption {
	return func(c *Client) {
		c.recorder = r
	}
}

func NewClient(cfg models.FoscamConfig, opts ...ClientOption) *Client {
	scheme := "http"
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.SSL {
		scheme = "https"
		// Foscam devices ship self-signed certificates.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		config:  cfg,
		baseURL: fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))),
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Invoke issues one authenticated CGI command and returns the raw body.
func (c *Client) Invoke(ctx context.Context, command string, params map[string]string) ([]byte, error) {
	start := time.Now()
	body, err := c.invoke(ctx, command, params)
	c.record(command, err, time.Since(start))
	return body, err
}

func (c *Client) invoke(ctx context.Context, command string, params map[string]string) ([]byte, error) {
	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	query.Set("usr", c.config.User)
	query.Set("pwd", c.config.Password)
	query.Set("cmd", command)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+cgiPath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, &DeviceError{Kind: KindUnreachable, Command: command, Err: err}
	}

	logger.Debugf("foscam request %s (%d params)", command, len(params))
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &DeviceError{Kind: classifyTransportError(ctx, err), Command: command, Err: stripURL(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &DeviceError{Kind: KindHTTPStatus, Command: command, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DeviceError{Kind: classifyTransportError(ctx, err), Command: command, Err: err}
	}
	return body, nil
}

// Query invokes a command and parses the CGI_Result envelope. A non-zero
// result code is reported as KindCommandFailed.
func (c *Client) Query(ctx context.Context, command string, params map[string]string) (Result, error) {
	start := time.Now()
	res, err := c.query(ctx, command, params)
	c.record(command, err, time.Since(start))
	return res, err
}

func (c *Client) query(ctx context.Context, command string, params map[string]string) (Result, error) {
	body, err := c.invoke(ctx, command, params)
	if err != nil {
		return nil, err
	}

	res, err := ParseResult(body)
	if err != nil {
		return nil, &DeviceError{Kind: KindMalformedResponse, Command: command, Err: err}
	}
	code, err := res.Int("result")
	if err != nil {
		return nil, &DeviceError{Kind: KindMalformedResponse, Command: command, Err: err}
	}
	if code != 0 {
		return nil, &DeviceError{Kind: KindCommandFailed, Command: command, ResultCode: code}
	}
	return res, nil
}

// Snapshot fetches the current JPEG frame.
func (c *Client) Snapshot(ctx context.Context) ([]byte, error) {
	return c.Invoke(ctx, "snapPicture2", nil)
}

type DeviceInfo struct {
	Model       string
	Hardware    string
	Firmware    string
	ProductName string
}

func (c *Client) DeviceInfo(ctx context.Context) (DeviceInfo, error) {
	res, err := c.Query(ctx, "getDevInfo", nil)
	if err != nil {
		return DeviceInfo{}, err
	}
	return DeviceInfo{
		Model:       res["model"],
		Hardware:    res["hardwareVer"],
		Firmware:    res["firmwareVer"],
		ProductName: res["productName"],
	}, nil
}

func (c *Client) record(command string, err error, elapsed time.Duration) {
	if c.recorder == nil {
		return
	}
	outcome := "ok"
	var derr *DeviceError
	if errors.As(err, &derr) {
		outcome = derr.Kind.String()
	} else if err != nil {
		outcome = "error"
	}
	c.recorder.DeviceCommand(command, outcome, elapsed)
}

func classifyTransportError(ctx context.Context, err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindUnreachable
}

// stripURL drops the request URL from transport errors so credentials in the
// query string never reach the logs.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}
