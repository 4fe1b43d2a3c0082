// Package ppsgen implements the PPS generator service itself.
//
// This package is used by gitlab.com/ppsgen/ppsgen/cmd, which is the cli
// that wraps around the service and the client.
package ppsgen

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"gitlab.com/ppsgen/ppsgen/gpioline"
	"gitlab.com/ppsgen/ppsgen/hostclock"
	"gitlab.com/ppsgen/ppsgen/rt"
	"gitlab.com/ppsgen/ppsgen/timing"
)

// Run the ppsgen service: bind the configured GPIO line, calibrate, and
// emit one pulse per second until ctx is cancelled.
func ExecuteService(ctx context.Context, readyFd *os.File) error {
	log.SetFlags(log.Lshortfile)

	config, err := ReadConfig()
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}

	// Page faults during a spin-wait are as bad as preemption.
	rt.LockMemory()

	line, err := gpioline.Open(config.Line)
	if err != nil {
		return fmt.Errorf("could not bind output line: %v", err)
	}
	defer line.Close()

	engine, err := timing.NewEngine(
		config.Delay,
		hostclock.Clock{},
		&hostclock.Alarm{},
		line,
		&rt.Region{Priority: config.RTPriority},
	)
	if err != nil {
		return err
	}

	var server *ServerHandle
	if config.DBusServer {
		log.Println("Running with D-Bus server.")
		server, err = NewDbusServer(engine)
		if err != nil {
			return err
		}
		defer server.Close()
		engine.OnMiss(server.NotifyMiss)
	} else {
		log.Println("Running without D-Bus server.")
	}

	engine.Calibrate()
	engine.Start()
	defer engine.Stop()
	log.Printf("Emitting PPS on %v (delay %dns).", line.Name(), config.Delay)

	if server != nil {
		go refreshStats(ctx, server)
	}

	if readyFd != nil {
		if _, err = readyFd.Write([]byte("\n")); err != nil {
			return fmt.Errorf("error writing to ready-fd: %v", err)
		}
		if err = readyFd.Close(); err != nil {
			return fmt.Errorf("error closing ready-fd: %v", err)
		}
	}

	// Run until explicitly stopped.
	<-ctx.Done()

	return nil
}

// refreshStats republishes the engine stats on the bus once per second.
func refreshStats(ctx context.Context, server *ServerHandle) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			server.Refresh()
		}
	}
}
