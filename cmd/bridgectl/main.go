// bridgectl is the controller console for a running bridge.
// Usage: bridgectl [--version] [--pipe <name>] [--plain] [--cmd <command>]
package main

import (
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/nathoo/wowbridge/ctl"
	"github.com/nathoo/wowbridge/ipc"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	plain := false
	pipeName := ipc.PipeName
	var oneShot string

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version":
			fmt.Printf("bridgectl %s (commit %s, built %s)\n", version, commit, date)
			return
		case "--plain":
			plain = true
		case "--pipe":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "--pipe requires a name\n")
				os.Exit(1)
			}
			i++
			pipeName = args[i]
		case "--cmd":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "--cmd requires a command\n")
				os.Exit(1)
			}
			i++
			oneShot = args[i]
		default:
			fmt.Fprintf(os.Stderr, "Usage: bridgectl [--version] [--pipe <name>] [--plain] [--cmd <command>]\n")
			os.Exit(1)
		}
	}

	commonlog.Configure(0, nil)

	dial := func(name string) (ctl.Conn, error) { return ipc.Dial(name) }

	// One-shot mode: expand, send, print, exit. The exit code reflects
	// transport failures, not protocol-level errors.
	if oneShot != "" {
		cmd, err := ctl.Expand(oneShot)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		conn, err := dial(pipeName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error connecting to %s: %v\n", pipeName, err)
			os.Exit(1)
		}
		defer conn.Close()
		resp, err := conn.Roundtrip(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(resp)
		return
	}

	// Use the plain console if --plain or stdout is not a terminal.
	if plain || !isTerminal() {
		c := ctl.NewConsole(pipeName, dial)
		if err := c.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := ctl.Run(pipeName, dial); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// isTerminal returns true if stdout is a terminal (not piped/redirected).
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
