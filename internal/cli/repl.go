package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// execIface is the minimal command surface the REPL needs. *App satisfies
// it; tests provide a stub.
type execIface interface {
	isUnlocked() bool
	Unlock(ctx context.Context) error
	Write(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	List(ctx context.Context) error
	Delete(ctx context.Context, args []string) error
	Chat(ctx context.Context) error
	Query(ctx context.Context, args []string) error
	Reindex(ctx context.Context) error
	LockVault(ctx context.Context) error
}

// runREPL reads commands line by line and dispatches to a. It exits on EOF
// or "exit"/"quit". Command handlers report their own errors; the loop keeps
// going regardless.
func runREPL(ctx context.Context, a execIface, scanner *bufio.Scanner) {
	for {
		printlnFn("mv> ")
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isUnlocked() {
				printlnFn("Available commands: write [date], show [date], list, delete <date>, chat, query <text>, reindex, lock, exit")
			} else {
				printlnFn("Available commands: unlock, exit")
			}
		case "unlock":
			_ = a.Unlock(ctx)
		case "write", "w":
			_ = a.Write(ctx, args)
		case "show":
			_ = a.Show(ctx, args)
		case "list", "l":
			_ = a.List(ctx)
		case "delete":
			_ = a.Delete(ctx, args)
		case "chat":
			_ = a.Chat(ctx)
		case "query", "q":
			_ = a.Query(ctx, args)
		case "reindex":
			_ = a.Reindex(ctx)
		case "lock":
			_ = a.LockVault(ctx)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command: " + cmd)
		}
	}
}
