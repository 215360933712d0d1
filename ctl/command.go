// Package ctl is the controller console for the bridge: a plain REPL and a
// Bubble Tea UI over the pipe protocol, with shorthand for the wire
// commands.
package ctl

import (
	"fmt"
	"strconv"
	"strings"
)

// Conn is the transport the console drives; ipc.Client satisfies it.
type Conn interface {
	Roundtrip(cmd string) (string, error)
	Close() error
}

// Dialer opens a new connection to an endpoint, for startup and /reconnect.
type Dialer func(pipeName string) (Conn, error)

// Expand turns console shorthand into a wire command. Uppercase input is
// taken as an already-formed wire command and passed through verbatim.
func Expand(input string) (string, error) {
	verb, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	switch verb {
	case "ping":
		return "ping", nil
	case "time":
		return "GET_TIME_MS", nil
	case "target":
		return "GET_TARGET_GUID", nil
	case "combo":
		return "GET_COMBO_POINTS", nil
	case "lua":
		if rest == "" {
			return "", fmt.Errorf("usage: lua <code>")
		}
		return "EXEC_LUA:" + rest, nil
	case "cd":
		if _, err := strconv.ParseUint(rest, 10, 31); err != nil {
			return "", fmt.Errorf("usage: cd <spell-id>")
		}
		return "GET_CD:" + rest, nil
	case "spell":
		if _, err := strconv.ParseUint(rest, 10, 31); err != nil {
			return "", fmt.Errorf("usage: spell <spell-id>")
		}
		return "GET_SPELL_INFO:" + rest, nil
	case "cast":
		id, guid, hasGUID := strings.Cut(rest, " ")
		if _, err := strconv.ParseUint(id, 10, 31); err != nil {
			return "", fmt.Errorf("usage: cast <spell-id> [guid]")
		}
		if hasGUID {
			return "CAST_SPELL:" + id + "," + strings.TrimSpace(guid), nil
		}
		return "CAST_SPELL:" + id, nil
	case "range":
		id, unit, hasUnit := strings.Cut(rest, " ")
		if _, err := strconv.ParseUint(id, 10, 31); err != nil || !hasUnit {
			return "", fmt.Errorf("usage: range <spell-id> <unit>")
		}
		return "IS_IN_RANGE:" + id + "," + strings.TrimSpace(unit), nil
	case "behind":
		if rest == "" {
			return "", fmt.Errorf("usage: behind <guid>")
		}
		return "CHECK_BACKSTAB_POS:" + rest, nil
	}

	// Raw wire commands are all-caps; anything else is a typo worth
	// flagging rather than sending.
	if input == strings.ToUpper(input) && input != "" {
		return input, nil
	}
	return "", fmt.Errorf("unknown command %q, type /help", verb)
}

// helpLines is shared by both console front ends.
func helpLines() []string {
	return []string{
		"Console:",
		"  /quit             — Exit",
		"  /help             — Show this help",
		"  /reconnect        — Drop and redial the pipe",
		"",
		"Bridge commands:",
		"  ping              — Liveness check (answered off-frame)",
		"  time              — Host clock in milliseconds",
		"  lua <code>        — Run a script chunk, print its results",
		"  cd <id>           — Spell cooldown (start, duration, enabled)",
		"  spell <id>        — Spell info tuple",
		"  range <id> <unit> — Range check against a unit token",
		"  cast <id> [guid]  — Cast, optionally at a GUID",
		"  target            — Current target GUID",
		"  combo             — Combo points on the target",
		"  behind <guid>     — Positional check against a GUID",
		"",
		"Any ALL-CAPS line is sent to the pipe verbatim.",
	}
}
