package wstransport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/leandrodaf/paramrelay/internal/logger"
	"github.com/leandrodaf/paramrelay/sdk/contracts"
	"github.com/leandrodaf/paramrelay/sdk/engine"
	"github.com/leandrodaf/paramrelay/sdk/relay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const waitFor = 2 * time.Second

func nopClient() contracts.Option {
	return contracts.WithLogger(logger.NewNopLogger())
}

func nop() Option {
	return WithClientOptions(nopClient())
}

type testServer struct {
	srv *Server
	hs  *httptest.Server
	url string
}

func startServer(t *testing.T, onConnect SessionFunc) *testServer {
	t.Helper()
	srv, err := NewServer(onConnect, nop())
	require.NoError(t, err)

	hs := httptest.NewServer(srv)
	t.Cleanup(func() {
		_ = srv.Close()
		hs.Close()
	})
	return &testServer{srv: srv, hs: hs, url: "ws" + strings.TrimPrefix(hs.URL, "http")}
}

func startEngine(t *testing.T) (*testServer, *engine.Registry) {
	t.Helper()
	reg := engine.DefaultLayout()
	ts := startServer(t, func(c *Conn) func() {
		host, err := engine.NewHost(c, reg, nopClient())
		if err != nil {
			t.Error(err)
			return nil
		}
		return host.Close
	})
	return ts, reg
}

func run(t *testing.T, c *Conn) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()
	return done
}

func wait[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(waitFor):
		t.Fatal("timed out")
	}
	var zero T
	return zero
}

func TestConn_HandshakeRoundTrip(t *testing.T) {
	ts, reg := startEngine(t)

	client, err := Dial(context.Background(), ts.url, nop())
	require.NoError(t, err)
	assert.NotEmpty(t, client.SessionID())

	output, err := relay.NewContinuous(client, "output", nopClient())
	require.NoError(t, err)
	done := run(t, client)

	ready := make(chan contracts.CurveProperties, 1)
	require.NoError(t, client.Post(func() {
		output.AddReadyListener(func() { ready <- output.Properties() })
		output.RequestInitialUpdate()
	}))

	props := wait(t, ready)
	assert.Equal(t, -12.0, props.Start)
	assert.Equal(t, 12.0, props.End)
	assert.Equal(t, "dB", props.Label)

	param, err := reg.Float("output")
	require.NoError(t, err)

	require.NoError(t, client.Post(func() { output.SetScaledValue(6) }))
	assert.Eventually(t, func() bool { return param.Value() == 6 }, waitFor, 5*time.Millisecond)

	values := make(chan float64, 1)
	require.NoError(t, client.Post(func() {
		output.AddValueListener(func() { values <- output.ScaledValue() })
	}))
	// The listener is registered once the post has run.
	flushed := make(chan struct{})
	require.NoError(t, client.Post(func() { close(flushed) }))
	wait(t, flushed)

	param.Set(-3)
	assert.Equal(t, -3.0, wait(t, values))

	require.NoError(t, client.Close())
	assert.NoError(t, wait(t, done))
}

func TestServer_RejectsSecondClient(t *testing.T) {
	ts, _ := startEngine(t)

	first, err := Dial(context.Background(), ts.url, nop())
	require.NoError(t, err)
	done := run(t, first)
	assert.Eventually(t, func() bool { return ts.srv.Active() != nil }, waitFor, 5*time.Millisecond)

	httpClient := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := httpClient.Get(ts.hs.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	require.NoError(t, first.Close())
	assert.NoError(t, wait(t, done))
	assert.Eventually(t, func() bool { return ts.srv.Active() == nil }, waitFor, 5*time.Millisecond)
}

func TestConn_DropsMalformedFrames(t *testing.T) {
	received := make(chan contracts.Event, 4)
	ts := startServer(t, func(c *Conn) func() {
		sub := c.Subscribe("relayContinuousx", func(e contracts.Event) { received <- e })
		return sub.Unsubscribe
	})

	ctx := context.Background()
	raw, _, err := websocket.Dial(ctx, ts.url, nil)
	require.NoError(t, err)

	require.NoError(t, raw.Write(ctx, websocket.MessageText, []byte("not json")))
	require.NoError(t, raw.Write(ctx, websocket.MessageText, []byte(`{"channel":"relayContinuousx","payload":{"eventType":"valueChanged"}}`)))
	require.NoError(t, raw.Write(ctx, websocket.MessageText, []byte(`{"channel":"relayContinuousx","payload":{"eventType":"valueChanged","value":0.25}}`)))

	assert.Equal(t, contracts.NumberValue(0.25), wait(t, received))
	assert.Empty(t, received)

	require.NoError(t, raw.Close(websocket.StatusNormalClosure, ""))
}

func TestConn_ServerPublishesToSurface(t *testing.T) {
	ts := startServer(t, func(c *Conn) func() {
		if err := c.Publish(contracts.MeterChannel, contracts.MeterUpdate{Levels: contracts.MeterLevels{OutL: 0.5}}); err != nil {
			t.Error(err)
		}
		return nil
	})

	client, err := Dial(context.Background(), ts.url, nop())
	require.NoError(t, err)

	levels := make(chan contracts.MeterLevels, 1)
	client.Subscribe(contracts.MeterChannel, func(e contracts.Event) {
		levels <- e.(contracts.MeterUpdate).Levels
	})
	done := run(t, client)

	assert.Equal(t, contracts.MeterLevels{OutL: 0.5}, wait(t, levels))

	require.NoError(t, client.Close())
	assert.NoError(t, wait(t, done))
}

func TestConn_AfterClose(t *testing.T) {
	ts, _ := startEngine(t)

	client, err := Dial(context.Background(), ts.url, nop())
	require.NoError(t, err)
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	assert.ErrorIs(t, client.Post(func() {}), ErrClosed)
	assert.ErrorIs(t, client.Publish("relayBooleanbypass", contracts.FlagValue(true)), ErrClosed)
	assert.NoError(t, client.Run(context.Background()))

	select {
	case <-client.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestConn_RunOnlyOnce(t *testing.T) {
	ts, _ := startEngine(t)

	client, err := Dial(context.Background(), ts.url, nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	assert.Eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.running
	}, waitFor, 5*time.Millisecond)
	assert.ErrorIs(t, client.Run(ctx), ErrAlreadyRunning)

	cancel()
	assert.NoError(t, wait(t, done))
}

func TestDial_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	hs := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(hs.URL, "http")
	hs.Close()

	_, err := Dial(ctx, url, nop())
	assert.Error(t, err)
}
