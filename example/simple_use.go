package main

import (
	"fmt"

	"github.com/leandrodaf/paramrelay/internal/logger"
	"github.com/leandrodaf/paramrelay/sdk/contracts"
	"github.com/leandrodaf/paramrelay/sdk/engine"
	"github.com/leandrodaf/paramrelay/sdk/meter"
	"github.com/leandrodaf/paramrelay/sdk/relay"
	"github.com/leandrodaf/paramrelay/sdk/transport"
)

func main() {
	log := logger.NewZapLogger()
	log.SetLevel(contracts.DebugLevel)
	opts := contracts.WithLogger(log)

	loop, err := transport.NewLoopback(opts)
	if err != nil {
		log.Error("Failed to create loopback transport", log.Field().Error("error", err))
		return
	}

	layout := engine.DefaultLayout()
	host, err := engine.NewHost(loop.Engine(), layout, opts)
	if err != nil {
		log.Error("Failed to start engine host", log.Field().Error("error", err))
		return
	}
	defer host.Close()

	drive, err := relay.NewContinuous(loop.Surface(), "drive", opts)
	if err != nil {
		log.Error("Failed to create relay", log.Field().Error("error", err))
		return
	}
	drive.AddValueListener(func() {
		fmt.Printf("drive: %.2f (normalized %.2f)\n", drive.ScaledValue(), drive.NormalizedValue())
	})
	drive.AddReadyListener(func() {
		fmt.Printf("drive ready: %+v\n", drive.Properties())
	})

	meter.Watch(loop.Surface(), func(l contracts.MeterLevels) {
		fmt.Printf("meters: in %.2f/%.2f out %.2f/%.2f\n", l.InL, l.InR, l.OutL, l.OutR)
	})

	drive.RequestInitialUpdate()
	flush(log, loop)

	// A surface gesture, then engine automation pushed back to the surface.
	drive.GestureStart()
	drive.SetNormalizedValue(0.8)
	drive.GestureEnd()
	flush(log, loop)

	param, _ := layout.Float("drive")
	fmt.Printf("engine drive: %.2f\n", param.Value())
	param.Set(0.25)
	flush(log, loop)

	b, err := meter.NewBroadcaster(loop.Engine(), meter.SourceFunc(func() contracts.MeterLevels {
		return contracts.MeterLevels{InL: 0.6, InR: 0.5, OutL: 0.9, OutR: 0.8}
	}), meter.WithClientOptions(opts))
	if err != nil {
		log.Error("Failed to create meter broadcaster", log.Field().Error("error", err))
		return
	}
	b.Tick()
	flush(log, loop)
}

func flush(log contracts.Logger, loop *transport.Loopback) {
	if err := loop.Flush(); err != nil {
		log.Error("Loopback did not settle", log.Field().Error("error", err))
	}
}
