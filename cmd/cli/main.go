// Command drive-sim reads a ScenarioInput JSON from a file argument (or stdin),
// runs the scenario, and writes the PoseLog JSON to stdout.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/cxd309/drive-engine/internal/engine"
	"github.com/cxd309/drive-engine/internal/logging"
)

func main() {
	logLevel := pflag.String("log-level", "warn", "stderr log level (trace, debug, info, warn, error)")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] [scenario.json]\n", os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(logging.ParseLevel(*logLevel)).With().Timestamp().Logger()

	var (
		data []byte
		err  error
	)
	if pflag.NArg() > 0 {
		data, err = os.ReadFile(pflag.Arg(0))
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading input: %v\n", err)
		os.Exit(1)
	}

	result, err := engine.RunJSONWithLogger(string(data), log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scenario error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(result)
}
