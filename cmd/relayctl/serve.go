package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/leandrodaf/paramrelay/internal/config"
	"github.com/leandrodaf/paramrelay/sdk/contracts"
	"github.com/leandrodaf/paramrelay/sdk/engine"
	"github.com/leandrodaf/paramrelay/sdk/meter"
	"github.com/leandrodaf/paramrelay/sdk/transport"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine simulator",
	Long: `Serve the configured engine parameters on transport.listen.

One surface may connect at a time. Values it sends are clamped and snapped
by the engine; corrections are echoed back. Meter levels are derived from a
test tone shaped by the parameters.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), cfg, log)
	},
}

func runServe(ctx context.Context, cfg config.Config, log contracts.Logger) error {
	srv, _, err := newEngineServer(cfg, log, time.Now)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Transport.Path, srv)
	httpSrv := &http.Server{
		Addr:              cfg.Transport.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("engine listening",
			log.Field().String("addr", cfg.Transport.Listen),
			log.Field().String("path", cfg.Transport.Path))
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("engine shutting down")
		return multierr.Combine(srv.Close(), httpSrv.Shutdown(shutdownCtx))
	})
	return g.Wait()
}

// newEngineServer binds an engine host and a meter broadcaster to every session.
func newEngineServer(cfg config.Config, log contracts.Logger, now func() time.Time) (*transport.Server, *engine.Registry, error) {
	reg, err := cfg.Registry()
	if err != nil {
		return nil, nil, err
	}
	clientOpts := contracts.WithLogger(log)

	srv, err := transport.NewServer(func(c *transport.Conn) func() {
		host, err := engine.NewHost(c, reg, clientOpts)
		if err != nil {
			log.Error("engine host failed", log.Field().Error("error", err))
			_ = c.Close()
			return nil
		}
		host.OnGesture(func(id contracts.Identity, active bool) {
			log.Debug("gesture", log.Field().String("control", id.String()), log.Field().Bool("active", active))
		})

		b, err := meter.NewBroadcaster(c, syntheticSource(reg, now),
			meter.WithRate(cfg.Meter.RateHz),
			meter.WithDecay(cfg.Meter.Decay),
			meter.WithClientOptions(clientOpts))
		if err != nil {
			log.Error("meter broadcaster failed", log.Field().Error("error", err))
			return host.Close
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = b.Run(ctx)
		}()

		return func() {
			cancel()
			<-done
			host.Close()
		}
	},
		transport.WithClientOptions(clientOpts),
		transport.WithWriteTimeout(cfg.WriteTimeout()),
	)
	if err != nil {
		return nil, nil, err
	}
	return srv, reg, nil
}

const toneHz = 0.5

// syntheticSource meters a slow test tone through the gain stages of the
// registry: inputGain and output in dB, drive as a soft clipper, mix as the
// dry/wet balance and bypass. Missing parameters are treated as neutral.
func syntheticSource(reg *engine.Registry, now func() time.Time) meter.Source {
	float := func(name string, def float64) func() float64 {
		p, err := reg.Float(name)
		if err != nil {
			return func() float64 { return def }
		}
		return p.Value
	}
	inputGain := float("inputGain", 0)
	output := float("output", 0)
	drive := float("drive", 0)
	mix := float("mix", 1)
	bypassed := func() bool { return false }
	if p, err := reg.Bool("bypass"); err == nil {
		bypassed = p.Value
	}

	start := now()
	return meter.SourceFunc(func() contracts.MeterLevels {
		phase := 2 * math.Pi * toneHz * now().Sub(start).Seconds()
		inL := 0.7 * math.Abs(math.Sin(phase)) * dbToGain(inputGain())
		inR := 0.7 * math.Abs(math.Sin(phase+math.Pi/3)) * dbToGain(inputGain())
		if bypassed() {
			return contracts.MeterLevels{InL: inL, InR: inR, OutL: inL, OutR: inR}
		}
		shape := func(x float64) float64 {
			k := 1 + 9*drive()
			wet := math.Tanh(k*x) / math.Tanh(k)
			return (mix()*wet + (1-mix())*x) * dbToGain(output())
		}
		return contracts.MeterLevels{InL: inL, InR: inR, OutL: shape(inL), OutR: shape(inR)}
	})
}

func dbToGain(db float64) float64 {
	return math.Pow(10, db/20)
}
