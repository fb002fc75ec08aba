package delivery_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobiledjay/backend/internal/service/delivery"
)

type recordedHit struct {
	path      string
	name      string
	message   string
	userAgent string
	requestID string
}

type recorder struct {
	mu   sync.Mutex
	hits []recordedHit
}

func (rec *recorder) record(r *http.Request) {
	_ = r.ParseForm()
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.hits = append(rec.hits, recordedHit{
		path:      r.URL.Path,
		name:      r.PostForm.Get("name"),
		message:   r.PostForm.Get("message"),
		userAgent: r.UserAgent(),
		requestID: r.Header.Get("X-Request-ID"),
	})
}

func (rec *recorder) all() []recordedHit {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]recordedHit(nil), rec.hits...)
}

func newGateway(t *testing.T, endpoint string, mutate func(*delivery.Config)) *delivery.Gateway {
	t.Helper()
	cfg := delivery.Config{
		Endpoint:     endpoint,
		Timeout:      2 * time.Second,
		MaxRedirects: delivery.DefaultMaxRedirects,
		UserAgent:    delivery.DefaultUserAgent,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	g, err := delivery.NewGateway(cfg, nil)
	require.NoError(t, err)
	return g
}

func TestDeliverFollowsRedirectWithSamePayload(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		if r.URL.Path == "/ask/HawaiianNight" {
			w.Header().Set("Location", "/ask/HawaiianNight/confirm")
			w.WriteHeader(http.StatusFound)
			return
		}
		_, _ = io.WriteString(w, "thanks")
	}))
	defer srv.Close()

	g := newGateway(t, srv.URL+"/ask/HawaiianNight", nil)
	body, err := g.Deliver(context.Background(), "Sam", "Karaoke Request from Sam: \"Wonderwall\" by Oasis (Easy)")
	require.NoError(t, err)
	assert.Equal(t, "thanks", body)

	hits := rec.all()
	require.Len(t, hits, 2)
	assert.Equal(t, "/ask/HawaiianNight", hits[0].path)
	assert.Equal(t, "/ask/HawaiianNight/confirm", hits[1].path)
	for _, h := range hits {
		assert.Equal(t, "Sam", h.name)
		assert.Equal(t, "Karaoke Request from Sam: \"Wonderwall\" by Oasis (Easy)", h.message)
		assert.Equal(t, "MobileDJay/1.0", h.userAgent)
		assert.NotEmpty(t, h.requestID)
	}
	assert.Equal(t, hits[0].requestID, hits[1].requestID)
}

func TestDeliverResolvesRelativeLocationAgainstEndpoint(t *testing.T) {
	var otherHits atomic.Int32

	// The second hop lives on another host and answers with a path-only location.
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		otherHits.Add(1)
		if r.URL.Path == "/done" {
			http.Error(w, "wrong host", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Location", "/done")
		w.WriteHeader(http.StatusSeeOther)
	}))
	defer other.Close()

	router := http.NewServeMux()
	router.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", other.URL+"/hop")
		w.WriteHeader(http.StatusFound)
	})
	router.HandleFunc("/done", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "resolved on endpoint host")
	})
	endpoint := httptest.NewServer(router)
	defer endpoint.Close()

	g := newGateway(t, endpoint.URL+"/start", nil)
	body, err := g.Deliver(context.Background(), "Ana", "hello")
	require.NoError(t, err)
	assert.Equal(t, "resolved on endpoint host", body)
	assert.EqualValues(t, 1, otherHits.Load())
}

func TestDeliverKeepsProtocolRelativeLocationOnEndpointHost(t *testing.T) {
	var paths []string
	var mu sync.Mutex
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		switch r.URL.Path {
		case "/start":
			w.Header().Set("Location", "//elsewhere.invalid/confirm?step=2")
			w.WriteHeader(http.StatusFound)
		case "//elsewhere.invalid/confirm":
			assert.Equal(t, "step=2", r.URL.RawQuery)
			_, _ = io.WriteString(w, "stayed on endpoint host")
		default:
			http.NotFound(w, r)
		}
	}))
	defer endpoint.Close()

	g := newGateway(t, endpoint.URL+"/start", nil)
	body, err := g.Deliver(context.Background(), "Ana", "hello")
	require.NoError(t, err)
	assert.Equal(t, "stayed on endpoint host", body)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/start", "//elsewhere.invalid/confirm"}, paths)
}

func TestDeliverRedirectWithoutLocationIsAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
		_, _ = io.WriteString(w, "ok-ish")
	}))
	defer srv.Close()

	g := newGateway(t, srv.URL, nil)
	body, err := g.Deliver(context.Background(), "Sam", "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok-ish", body)
}

func TestDeliverRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := newGateway(t, srv.URL, nil)
	_, err := g.Deliver(context.Background(), "Sam", "hi")
	require.ErrorIs(t, err, delivery.ErrUnexpectedStatus)

	var derr *delivery.Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, delivery.KindStatus, derr.Kind)
	assert.Equal(t, http.StatusInternalServerError, derr.Status)
}

func TestDeliverTimesOutPerHop(t *testing.T) {
	aborted := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The server only notices a client disconnect once the body is consumed.
		_, _ = io.ReadAll(r.Body)
		select {
		case <-r.Context().Done():
			aborted <- struct{}{}
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	g := newGateway(t, srv.URL, func(c *delivery.Config) { c.Timeout = 100 * time.Millisecond })
	_, err := g.Deliver(context.Background(), "Sam", "hi")
	require.ErrorIs(t, err, delivery.ErrTimeout)

	var derr *delivery.Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, delivery.KindTimeout, derr.Kind)

	select {
	case <-aborted:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the in-flight request to be aborted")
	}
}

func TestDeliverCallerCancellationIsNotTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	g := newGateway(t, srv.URL, nil)
	_, err := g.Deliver(ctx, "Sam", "hi")
	require.Error(t, err)
	assert.NotErrorIs(t, err, delivery.ErrTimeout)
}

func TestDeliverStopsAtRedirectLimit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Location", "/again")
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	g := newGateway(t, srv.URL, func(c *delivery.Config) { c.MaxRedirects = 3 })
	_, err := g.Deliver(context.Background(), "Sam", "hi")
	require.ErrorIs(t, err, delivery.ErrTooManyRedirects)
	assert.EqualValues(t, 4, hits.Load())
}

func TestDeliverUnboundedRedirectsFollowFiniteChain(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		if n < 12 {
			w.Header().Set("Location", "/next")
			w.WriteHeader(http.StatusTemporaryRedirect)
			return
		}
		_, _ = io.WriteString(w, "finally")
	}))
	defer srv.Close()

	g := newGateway(t, srv.URL, func(c *delivery.Config) { c.MaxRedirects = 0 })
	body, err := g.Deliver(context.Background(), "Sam", "hi")
	require.NoError(t, err)
	assert.Equal(t, "finally", body)
	assert.EqualValues(t, 12, hits.Load())
}

func TestDeliverTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	g := newGateway(t, endpoint, nil)
	_, err := g.Deliver(context.Background(), "Sam", "hi")
	require.Error(t, err)

	var derr *delivery.Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, delivery.KindTransport, derr.Kind)
}

func TestDeliverDisabledSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	g := newGateway(t, srv.URL, func(c *delivery.Config) { c.Disabled = true })
	_, err := g.Deliver(context.Background(), "Sam", "hi")
	require.NoError(t, err)
	assert.Zero(t, hits.Load())
}

func TestDeliverOverTLS(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "secure")
	}))
	defer srv.Close()

	g, err := delivery.NewGateway(delivery.Config{Endpoint: srv.URL + "/ask/HawaiianNight"}, srv.Client())
	require.NoError(t, err)

	body, err := g.Deliver(context.Background(), "Sam", "hi")
	require.NoError(t, err)
	assert.Equal(t, "secure", body)
}

func TestNewGatewayRejectsRelativeEndpoint(t *testing.T) {
	_, err := delivery.NewGateway(delivery.Config{Endpoint: "/ask/HawaiianNight"}, nil)
	require.Error(t, err)

	g, err := delivery.NewGateway(delivery.Config{}, nil)
	require.NoError(t, err)
	u, err := url.Parse(g.Endpoint())
	require.NoError(t, err)
	assert.Equal(t, "virtualdj.com", u.Host)
}
