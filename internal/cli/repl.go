package cli

import (
	"bufio"
	"context"
	"fmt"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	execute(ctx context.Context, args []string) error
}

// runREPL starts a simple read–eval–print loop for the admin console.
//
// It reads a line from the provided scanner, splits it into words (quotes
// group words) and hands them to a.execute. The loop exits on scanner EOF
// or when the user types "exit" or "quit".
//
// Command errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("userkit %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}

		args, err := splitLine(scanner.Text())
		if err != nil {
			printlnFn("Error:", err)
			continue
		}
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "exit", "quit":
			printlnFn("Bye!")
			return
		}

		if err := a.execute(ctx, args); err != nil {
			printlnFn("Error:", err)
		}
	}
}

// Root prints a greeting and runs the REPL on the app's input.
func (a *App) Root(ctx context.Context) {
	printlnFn("Welcome to the userkit console (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.in))
}
