package ctl

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Console is the plain line-oriented front end, suitable for dumb
// terminals and scripted playback.
type Console struct {
	PipeName  string
	Dial      Dialer
	In        io.Reader
	Out       io.Writer
	Latency   bool   // print roundtrip time after each response
	EchoInput bool   // echo each input line after the prompt (for script playback)
	lastCmd   string // for "again"/"g" repeat

	conn Conn
}

// NewConsole creates a console that will dial the given endpoint.
func NewConsole(pipeName string, dial Dialer) *Console {
	return &Console{
		PipeName: pipeName,
		Dial:     dial,
		In:       os.Stdin,
		Out:      os.Stdout,
	}
}

// Run connects and starts the loop: prompt → input → roundtrip → output.
// It returns when the input stream ends or /quit is entered.
func (c *Console) Run() error {
	conn, err := c.Dial(c.PipeName)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", c.PipeName, err)
	}
	c.conn = conn
	defer c.conn.Close()
	c.printSystem(fmt.Sprintf("Connected to %s.", c.PipeName))

	scanner := bufio.NewScanner(c.In)
	for {
		c.print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		// Skip comment lines (for script files).
		if strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		// Meta-commands start with '/'.
		if strings.HasPrefix(input, "/") {
			if c.handleMeta(input) {
				return nil // /quit
			}
			continue
		}

		// "again" / "g" repeats the last bridge command.
		lower := strings.ToLower(input)
		if lower == "again" || lower == "g" {
			if c.lastCmd == "" {
				c.printLine("Nothing to repeat.")
				continue
			}
			input = c.lastCmd
		} else {
			c.lastCmd = input
		}

		c.send(input)
	}
}

// send expands one console command, runs the roundtrip, and prints the
// outcome.
func (c *Console) send(input string) {
	cmd, err := Expand(input)
	if err != nil {
		c.printSystem(err.Error())
		return
	}

	start := time.Now()
	resp, err := c.conn.Roundtrip(cmd)
	elapsed := time.Since(start)
	if err != nil {
		c.printSystem(fmt.Sprintf("Roundtrip failed: %v", err))
		return
	}

	if c.Latency {
		c.printLine(fmt.Sprintf("%s  (%s)", resp, elapsed.Round(time.Millisecond)))
	} else {
		c.printLine(resp)
	}
}

// handleMeta dispatches meta-commands. Returns true if the console should
// exit.
func (c *Console) handleMeta(input string) bool {
	parts := strings.Fields(input)
	cmd := parts[0]

	switch cmd {
	case "/quit", "/exit":
		c.printSystem("Goodbye.")
		return true

	case "/help":
		for _, line := range helpLines() {
			c.printLine(line)
		}

	case "/reconnect":
		c.cmdReconnect()

	case "/lat":
		c.Latency = !c.Latency
		if c.Latency {
			c.printSystem("Latency display enabled.")
		} else {
			c.printSystem("Latency display disabled.")
		}

	default:
		c.printSystem(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
	}

	return false
}

func (c *Console) cmdReconnect() {
	c.conn.Close()
	conn, err := c.Dial(c.PipeName)
	if err != nil {
		c.printSystem(fmt.Sprintf("Reconnect failed: %v", err))
		return
	}
	c.conn = conn
	c.printSystem(fmt.Sprintf("Reconnected to %s.", c.PipeName))
}

func (c *Console) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *Console) print(text string) {
	fmt.Fprint(c.Out, text)
}

func (c *Console) printSystem(text string) {
	fmt.Fprintf(c.Out, "[%s]\n", text)
}
