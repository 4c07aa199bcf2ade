// Command towerctl drives a tower defense application server: it sends
// signed commands, queries state, replays the classic demo sequence, manages
// signing keys and can serve an in-process game engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
)

type command struct {
	summary string
	run     func(ctx context.Context, env *env, args []string) error
}

var commands = map[string]command{
	"mint":    {"mint a tower: -id N", runMint},
	"claim":   {"claim a minted tower: -id N", runClaim},
	"place":   {"place an inventory tower: -kind N -x X -y Y", runPlace},
	"drop":    {"drop the tower on a tile: -tile N", runDrop},
	"upgrade": {"upgrade an inventory slot: -slot N", runUpgrade},
	"batch":   {"dispatch a YAML list of calls in the configured mode: -file F", runBatch},
	"state":   {"query account state: -keys 0,1,2", runState},
	"config":  {"query the server configuration", runConfig},
	"demo":    {"mint, claim, query and place in sequence: -id N -x X -y Y", runDemo},
	"serve":   {"serve an in-process game engine: -listen ADDR", runServe},
	"key":     {"manage signing keys: key import|new|list|delete", runKey},
	"journal": {"inspect the transaction journal: journal list|prove", runJournal},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		usage(stderr)
		return 2
	}

	err := cmd.run(ctx, &env{name: args[0], stdout: stdout, stderr: stderr}, args[1:])
	var ue usageError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.As(err, &ue):
		fmt.Fprintf(stderr, "%s: %v\n", args[0], err)
		return 2
	default:
		fmt.Fprintf(stderr, "%s: %v\n", args[0], err)
		return 1
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: towerctl <command> [flags]")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-8s %s\n", name, commands[name].summary)
	}
}

// usageError marks a bad invocation (exit status 2).
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}
