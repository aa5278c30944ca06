package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/leandrodaf/paramrelay/internal/config"
	"github.com/leandrodaf/paramrelay/sdk/contracts"
	"github.com/leandrodaf/paramrelay/sdk/transport"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

var errHandshakeTimeout = errors.New("handshake timed out")

var setTimeout time.Duration

var setCmd = &cobra.Command{
	Use:   "set <control> <normalized>",
	Short: "Set one control to a normalized position and exit",
	Long: `Dial transport.url, wait for the handshake of the named control, move it
to the given position in [0,1] and exit. Toggles switch on from 0.5;
choices take the nearest index.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("position %q: %w", args[1], err)
		}
		return runSet(cmd.Context(), cfg, log, args[0], value, setTimeout)
	},
}

func init() {
	setCmd.Flags().DurationVar(&setTimeout, "timeout", 5*time.Second, "how long to wait for the handshake")
}

func runSet(ctx context.Context, cfg config.Config, log contracts.Logger, name string, value float64, timeout time.Duration) error {
	def, err := findControl(cfg.Controls, name)
	if err != nil {
		return err
	}

	conn, err := transport.Dial(ctx, cfg.Transport.URL,
		transport.WithClientOptions(contracts.WithLogger(log)),
		transport.WithWriteTimeout(cfg.WriteTimeout()))
	if err != nil {
		return err
	}
	defer conn.Close()

	s, err := buildSurface(conn, []config.ControlConfig{def}, contracts.WithLogger(log))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := make(chan error, 1)
	if err := conn.Post(func() {
		s.onAllReady(func() {
			result <- s.setNormalized(name, value)
			cancel()
		})
		s.requestAll()
	}); err != nil {
		return err
	}

	runErr := conn.Run(ctx)
	select {
	case err := <-result:
		if err == nil {
			log.Info("control set", log.Field().String("control", name), log.Field().Float64("normalized", value))
		}
		return multierr.Append(runErr, err)
	default:
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", errHandshakeTimeout, timeout)
	}
	if runErr != nil {
		return runErr
	}
	return fmt.Errorf("connection closed before %q was ready", name)
}
