package main

import (
	"context"
	"fmt"

	"github.com/leandrodaf/paramrelay/internal/config"
	"github.com/leandrodaf/paramrelay/sdk/contracts"
	"github.com/leandrodaf/paramrelay/sdk/meter"
	"github.com/leandrodaf/paramrelay/sdk/midi"
	"github.com/leandrodaf/paramrelay/sdk/transport"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const midiBufferSize = 256

var (
	midiDevice  int
	watchMeters bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Connect as a control surface and log every update",
	Long: `Dial transport.url, create a relay for every configured control and log
every value and properties update until interrupted.

With --midi-device, Control Change messages from that input drive the
controls that have a midi section.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd.Context(), cfg, log, midiDevice, watchMeters)
	},
}

func init() {
	watchCmd.Flags().IntVar(&midiDevice, "midi-device", -1, "MIDI input device index (see the log of available devices)")
	watchCmd.Flags().BoolVar(&watchMeters, "meters", false, "log meter levels at debug level")
}

func runWatch(ctx context.Context, cfg config.Config, log contracts.Logger, device int, meters bool) error {
	conn, err := transport.Dial(ctx, cfg.Transport.URL,
		transport.WithClientOptions(contracts.WithLogger(log)),
		transport.WithWriteTimeout(cfg.WriteTimeout()))
	if err != nil {
		return err
	}
	defer conn.Close()

	s, err := buildSurface(conn, cfg.Controls, contracts.WithLogger(log))
	if err != nil {
		return err
	}
	s.logUpdates(log)

	if meters {
		sub := meter.Watch(conn, func(l contracts.MeterLevels) {
			log.Debug("meter",
				log.Field().Float64("inL", l.InL),
				log.Field().Float64("inR", l.InR),
				log.Field().Float64("outL", l.OutL),
				log.Field().Float64("outR", l.OutR))
		})
		defer sub.Unsubscribe()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return conn.Run(gctx)
	})

	if device >= 0 {
		events, stop, err := openMIDI(log, device)
		if err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
		defer stop()

		bridge, err := midi.NewBridge(conn.Post, midi.WithBridgeClientOptions(contracts.WithLogger(log)))
		if err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
		if err := s.bindMIDI(bridge); err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
		g.Go(func() error { return bridge.Run(gctx, events) })
	}

	if err := conn.Post(func() {
		s.onAllReady(func() { log.Info("all controls ready") })
		s.requestAll()
	}); err != nil {
		cancel()
		_ = g.Wait()
		return err
	}

	return g.Wait()
}

func openMIDI(log contracts.Logger, device int) (<-chan contracts.MIDI, func(), error) {
	client, err := midi.NewMIDIClient(
		contracts.WithLogger(log),
		contracts.WithMIDIEventFilter(contracts.MIDIEventFilter{
			Commands: []contracts.MIDICommand{contracts.ControlChange},
		}),
	)
	if err != nil {
		return nil, nil, err
	}

	devices, err := client.ListDevices()
	if err != nil {
		_ = client.Stop()
		return nil, nil, err
	}
	for i, d := range devices {
		log.Info("MIDI device",
			log.Field().Int("index", i),
			log.Field().String("name", d.Name),
			log.Field().String("manufacturer", d.Manufacturer))
	}
	if err := client.SelectDevice(device); err != nil {
		_ = client.Stop()
		return nil, nil, fmt.Errorf("select MIDI device %d: %w", device, err)
	}

	events := make(chan contracts.MIDI, midiBufferSize)
	client.StartCapture(events)
	return events, func() { _ = client.Stop() }, nil
}
