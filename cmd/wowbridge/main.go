// wowbridge runs the automation bridge against a simulated host process:
// frame loop, present hook, scripting engine, and the controller pipe.
// Usage: wowbridge [--version] [--offsets <file>] [--pipe <name>] [--frame-ms <n>] [--verbose]
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/nathoo/wowbridge/bridge"
	"github.com/nathoo/wowbridge/host/sim"
	"github.com/nathoo/wowbridge/ipc"
	"github.com/nathoo/wowbridge/offsets"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	verbose := false
	pipeName := ipc.PipeName
	frameMs := 16
	var offsetsFile string

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version":
			fmt.Printf("wowbridge %s (commit %s, built %s)\n", version, commit, date)
			return
		case "--verbose":
			verbose = true
		case "--offsets":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "--offsets requires a file path\n")
				os.Exit(1)
			}
			i++
			offsetsFile = args[i]
		case "--pipe":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "--pipe requires a name\n")
				os.Exit(1)
			}
			i++
			pipeName = args[i]
		case "--frame-ms":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "--frame-ms requires a number\n")
				os.Exit(1)
			}
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil || n < 1 {
				fmt.Fprintf(os.Stderr, "--frame-ms: invalid interval %q\n", args[i])
				os.Exit(1)
			}
			frameMs = n
		default:
			fmt.Fprintf(os.Stderr, "Usage: wowbridge [--version] [--offsets <file>] [--pipe <name>] [--frame-ms <n>] [--verbose]\n")
			os.Exit(1)
		}
	}

	if verbose {
		commonlog.Configure(2, nil)
	} else {
		commonlog.Configure(0, nil)
	}

	offs := offsets.Default()
	if offsetsFile != "" {
		loaded, err := offsets.Load(offsetsFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading offsets: %v\n", err)
			os.Exit(1)
		}
		offs = loaded
	}

	h := sim.New(offs)
	defer h.Close()

	b := bridge.New(bridge.Config{PipeName: pipeName, Offsets: offs}, h, h)
	if err := b.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting bridge: %v\n", err)
		os.Exit(1)
	}

	stopFrames := h.RunFrames(time.Duration(frameMs) * time.Millisecond)
	fmt.Printf("wowbridge listening on %s (frame every %dms)\n", pipeName, frameMs)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	fmt.Println("shutting down")
	stopFrames()
	b.Stop()
}
