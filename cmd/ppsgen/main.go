package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/integrii/flaggy"

	"gitlab.com/ppsgen/ppsgen"
	"gitlab.com/ppsgen/ppsgen/libppsgen"
)

var Version = "0.0.0-dev"

func NewSubcommand(name, description string) *flaggy.Subcommand {
	cmd := flaggy.NewSubcommand(name)
	cmd.Description = description

	flaggy.AttachSubcommand(cmd, 1)
	return cmd
}

func runService() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-signals
		log.Println("Got signal:", sig)
		cancel()
	}()

	return ppsgen.ExecuteService(ctx, nil)
}

func printStatus() error {
	stats, err := libppsgen.GetStats()
	if err != nil {
		return err
	}

	fmt.Println("running:", stats.Running)
	fmt.Printf("write latency: %dns\n", stats.WriteLatency)
	fmt.Printf("scheduling error: %dns\n", stats.SchedulingError)
	fmt.Println("pulses emitted:", stats.PulsesEmitted)
	fmt.Println("pulses missed:", stats.PulsesMissed)
	return nil
}

func main() {
	status := NewSubcommand("status", "Print the state of the running service")
	run := NewSubcommand("run", "Run the ppsgen service")

	run.AdditionalHelpPrepend = strings.Join([]string{
		"",
		"This command starts the ppsgen service itself.",
		"It should only be used by a service manager, by a session init script or alike.",
		"",
		"The service will run in foreground.",
	}, "\n")

	flaggy.SetName("ppsgen")
	flaggy.SetVersion(Version)
	flaggy.SetDescription("Generate a PPS signal on a GPIO line")
	flaggy.Parse()

	var err error
	switch {
	case status.Used:
		err = printStatus()
	case run.Used:
		err = runService()
	default:
		flaggy.ShowHelpAndExit("No command specified")
	}

	if err != nil {
		log.Fatal(err)
	}
}
