package binance

import (
	"context"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/0xtitan6/cryptoconnect/internal/errs"
	"github.com/0xtitan6/cryptoconnect/internal/ratelimit"
)

// RESTClient is a resty-based HTTP client for the Binance Spot REST API,
// grounded on the teacher's internal/exchange/client.go shape: a shared
// resty.Client with retry/backoff, every call gated by a rate limit group
// before it is sent.
type RESTClient struct {
	http    *resty.Client
	baseURL string
	signer  *Signer
	limits  *ratelimit.Group
}

// NewRESTClient builds a RESTClient. limits may be nil for an unauthenticated,
// unrestricted client (tests).
func NewRESTClient(baseURL string, signer *Signer, limits *ratelimit.Group, timeout time.Duration) *RESTClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)

	return &RESTClient{http: client, baseURL: baseURL, signer: signer, limits: limits}
}

// awaitAdmit blocks until weight can be admitted against the client's rate
// limit group, polling at a short fixed interval since Group exposes only
// an immediate TryAdmit.
func (c *RESTClient) awaitAdmit(ctx context.Context, weight uint64) error {
	if c.limits == nil {
		return nil
	}
	const pollInterval = 25 * time.Millisecond
	for {
		err := c.limits.TryAdmit(weight)
		if err == nil {
			return nil
		}
		if !errs.Is(err, errs.KindRateLimited) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Get issues an unsigned, public GET request.
func (c *RESTClient) Get(ctx context.Context, path string, params url.Values, weight uint64, out any) error {
	const op = "binance.RESTClient.Get"
	if err := c.awaitAdmit(ctx, weight); err != nil {
		return errs.Network(op, err, "rate limit wait")
	}

	req := c.http.R().SetContext(ctx).SetResult(out)
	if params != nil {
		req.SetQueryString(params.Encode())
	}
	resp, err := req.Get(path)
	if err != nil {
		return errs.Network(op, err, "GET %s", path)
	}
	if resp.IsError() {
		return errs.Protocol(op, "GET %s: status %d: %s", path, resp.StatusCode(), resp.String())
	}
	return nil
}

// SignedRequest issues a signed request (method is "GET", "POST", "PUT", or
// "DELETE") authenticated with the client's Signer.
func (c *RESTClient) SignedRequest(ctx context.Context, method, path string, params url.Values, weight uint64, out any) error {
	const op = "binance.RESTClient.SignedRequest"
	if c.signer == nil {
		return errs.Client(op, "signed request issued without credentials")
	}
	if err := c.awaitAdmit(ctx, weight); err != nil {
		return errs.Network(op, err, "rate limit wait")
	}

	query := c.signer.SignedQuery(params)
	req := c.http.R().
		SetContext(ctx).
		SetHeader(apiKeyHeader, c.signer.APIKey()).
		SetQueryString(query).
		SetResult(out)

	var resp *resty.Response
	var err error
	switch method {
	case "GET":
		resp, err = req.Get(path)
	case "POST":
		resp, err = req.Post(path)
	case "PUT":
		resp, err = req.Put(path)
	case "DELETE":
		resp, err = req.Delete(path)
	default:
		return errs.Client(op, "unsupported method %s", method)
	}
	if err != nil {
		return errs.Network(op, err, "%s %s", method, path)
	}
	if resp.IsError() {
		return errs.Protocol(op, "%s %s: status %d: %s", method, path, resp.StatusCode(), resp.String())
	}
	return nil
}
