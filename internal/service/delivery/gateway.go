package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mobiledjay/backend/internal/metrics"
)

const (
	DefaultEndpoint     = "https://virtualdj.com/ask/HawaiianNight"
	DefaultTimeout      = 10 * time.Second
	DefaultMaxRedirects = 5
	DefaultUserAgent    = "MobileDJay/1.0"

	maxBodyBytes = 1 << 20
)

// Config controls where and how submissions are relayed.
type Config struct {
	Endpoint string
	// Timeout bounds each hop of the redirect chain.
	Timeout time.Duration
	// MaxRedirects caps the redirect chain; zero follows redirects without limit.
	MaxRedirects int
	UserAgent    string
	// Disabled skips the network entirely and reports success.
	Disabled bool
}

// Gateway relays a single (name, text) submission to the acceptance
// endpoint. It never retries; callers decide what a failure means.
type Gateway struct {
	cfg    Config
	base   *url.URL
	client *http.Client
}

// NewGateway validates cfg and returns a Gateway. A nil client uses a
// fresh http.Client; either way redirects are followed by the gateway
// itself so every hop is re-posted with the original payload.
func NewGateway(cfg Config, client *http.Client) (*Gateway, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRedirects < 0 {
		cfg.MaxRedirects = 0
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	base, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid delivery endpoint %q: %w", cfg.Endpoint, err)
	}
	if !base.IsAbs() || base.Host == "" {
		return nil, fmt.Errorf("delivery endpoint %q must be an absolute URL", cfg.Endpoint)
	}

	var c http.Client
	if client != nil {
		c = *client
	}
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &Gateway{cfg: cfg, base: base, client: &c}, nil
}

// Endpoint returns the configured acceptance URL.
func (g *Gateway) Endpoint() string {
	return g.base.String()
}

// Deliver posts the submission and follows any redirect chain. It returns
// the raw body of the terminal response.
func (g *Gateway) Deliver(ctx context.Context, name, text string) (string, error) {
	attempt := uuid.NewString()
	if g.cfg.Disabled {
		log.Printf("[delivery] attempt=%s skipped, delivery disabled", attempt)
		metrics.DeliveriesTotal.WithLabelValues("disabled").Inc()
		return "", nil
	}

	started := time.Now()
	body, err := g.deliver(ctx, attempt, name, text)
	metrics.DeliveryDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		outcome := string(KindTransport)
		var derr *Error
		if errors.As(err, &derr) {
			outcome = string(derr.Kind)
		}
		metrics.DeliveriesTotal.WithLabelValues(outcome).Inc()
		log.Printf("[delivery] attempt=%s failed: %v", attempt, err)
		return "", err
	}

	metrics.DeliveriesTotal.WithLabelValues("success").Inc()
	log.Printf("[delivery] attempt=%s delivered for %s", attempt, name)
	return body, nil
}

func (g *Gateway) deliver(ctx context.Context, attempt, name, text string) (string, error) {
	payload := url.Values{
		"name":    {name},
		"message": {text},
	}.Encode()

	target := g.base
	hops := 0
	for {
		resp, err := g.post(ctx, target, payload, attempt)
		if err != nil {
			return "", err
		}

		switch {
		case resp.status >= 200 && resp.status < 300:
			return resp.body, nil

		case resp.status >= 300 && resp.status < 400:
			if resp.location == "" {
				// Some endpoints acknowledge with a bare redirect.
				log.Printf("[delivery] attempt=%s redirect without location treated as accepted", attempt)
				return resp.body, nil
			}

			hops++
			if g.cfg.MaxRedirects > 0 && hops > g.cfg.MaxRedirects {
				return "", &Error{Kind: KindTooManyRedirects, Attempt: attempt, URL: target.String(), Hops: hops - 1, Err: ErrTooManyRedirects}
			}

			next, err := g.resolve(resp.location)
			if err != nil {
				return "", &Error{Kind: KindInvalidRedirect, Attempt: attempt, URL: resp.location, Err: fmt.Errorf("%w: %v", ErrInvalidRedirect, err)}
			}
			metrics.DeliveryRedirects.Inc()
			log.Printf("[delivery] attempt=%s redirected to %s", attempt, next)
			target = next

		default:
			log.Printf("[delivery] attempt=%s status=%d body=%q", attempt, resp.status, truncate(resp.body, 200))
			return "", &Error{Kind: KindStatus, Attempt: attempt, URL: target.String(), Status: resp.status, Err: ErrUnexpectedStatus}
		}
	}
}

// resolve turns a Location header into the next hop. Any location starting
// with "/" is a path on the configured endpoint's host, including "//x/y",
// and never resolves against a previous hop.
func (g *Gateway) resolve(location string) (*url.URL, error) {
	location = strings.TrimSpace(location)
	if strings.HasPrefix(location, "/") {
		ref, err := url.ParseRequestURI(location)
		if err != nil {
			return nil, err
		}
		next := *g.base
		next.Path = ref.Path
		next.RawPath = ref.RawPath
		next.RawQuery = ref.RawQuery
		next.Fragment = ""
		return &next, nil
	}
	loc, err := url.Parse(location)
	if err != nil {
		return nil, err
	}
	if loc.IsAbs() {
		if loc.Host == "" {
			return nil, fmt.Errorf("location %q has no host", location)
		}
		return loc, nil
	}
	return g.base.ResolveReference(loc), nil
}

type hopResponse struct {
	status   int
	location string
	body     string
}

func (g *Gateway) post(ctx context.Context, target *url.URL, payload, attempt string) (hopResponse, error) {
	hopCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(hopCtx, http.MethodPost, target.String(), strings.NewReader(payload))
	if err != nil {
		return hopResponse{}, &Error{Kind: KindTransport, Attempt: attempt, URL: target.String(), Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", g.cfg.UserAgent)
	req.Header.Set("X-Request-ID", attempt)

	resp, err := g.client.Do(req)
	if err != nil {
		return hopResponse{}, g.classify(ctx, hopCtx, target, attempt, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return hopResponse{}, g.classify(ctx, hopCtx, target, attempt, err)
	}

	return hopResponse{
		status:   resp.StatusCode,
		location: resp.Header.Get("Location"),
		body:     string(body),
	}, nil
}

// classify separates the per-hop deadline from caller cancellation and
// other transport failures.
func (g *Gateway) classify(parent, hopCtx context.Context, target *url.URL, attempt string, err error) error {
	if parent.Err() == nil && errors.Is(hopCtx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Attempt: attempt, URL: target.String(), Err: fmt.Errorf("%w after %s", ErrTimeout, g.cfg.Timeout)}
	}
	var netErr net.Error
	if parent.Err() == nil && errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Kind: KindTimeout, Attempt: attempt, URL: target.String(), Err: fmt.Errorf("%w: %v", ErrTimeout, err)}
	}
	return &Error{Kind: KindTransport, Attempt: attempt, URL: target.String(), Err: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
