// kvshell is a REPL for exercising a single storage engine directory
// from a terminal.
//
// Usage:
//
//	kvshell --dir <path> [--memtable-bytes N]
//
// Commands (in REPL):
//
//	put <key> <value>   Insert or overwrite a key
//	get <key>           Retrieve a key
//	del <key>           Delete a key
//	flush               Force the current memtable to disk
//	stats               Show the engine's directory
//	help                Show this help
//	exit / quit / q     Exit
//
// Grounded on calvinalkan-agent-task's cmd/sloty REPL (command dispatch over
// a switch, liner-backed prompt and history, "Bye!" on exit).
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/bobboyms/kvengine/internal/engine"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "kvshell:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("kvshell", flag.ExitOnError)
	dir := fs.String("dir", "", "directory the engine is (or will be) rooted at")
	memtableBytes := fs.Uint64("memtable-bytes", engine.DefaultMemtableMaxBytes, "memtable byte budget before a flush is triggered")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: kvshell --dir <path> [--memtable-bytes N]\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dir == "" {
		fs.Usage()
		return fmt.Errorf("--dir is required")
	}

	opts := engine.DefaultOptions(*dir)
	opts.MemtableMaxBytes = *memtableBytes

	e, err := engine.Open(opts)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer e.Close()

	repl := &REPL{engine: e}
	return repl.Run()
}

// REPL is the interactive command loop.
type REPL struct {
	engine *engine.Engine
	liner  *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".kvshell_history")
}

func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("kvshell - engine at %s\n", r.engine.Dir())
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("kvshell> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")
			r.saveHistory()
			return nil

		case "help", "?":
			r.printHelp()

		case "put":
			r.cmdPut(args)

		case "get":
			r.cmdGet(args)

		case "del", "delete":
			r.cmdDelete(args)

		case "flush":
			r.cmdFlush()

		case "stats":
			r.cmdStats()

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()
	return nil
}

func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *REPL) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  put <key> <value>   Insert or overwrite a key")
	fmt.Println("  get <key>           Retrieve a key")
	fmt.Println("  del <key>           Delete a key")
	fmt.Println("  flush               Force the current memtable to disk")
	fmt.Println("  stats               Show the engine's directory")
	fmt.Println("  help                Show this help")
	fmt.Println("  exit / quit / q     Exit")
}

func (r *REPL) cmdPut(args []string) {
	if len(args) < 2 {
		fmt.Println("usage: put <key> <value>")
		return
	}
	key, value := args[0], strings.Join(args[1:], " ")
	_, hadPrev, err := r.engine.Put([]byte(key), []byte(value))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if hadPrev {
		fmt.Println("OK (overwrote)")
	} else {
		fmt.Println("OK")
	}
}

func (r *REPL) cmdGet(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: get <key>")
		return
	}
	v, ok, err := r.engine.Get([]byte(args[0]))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if !ok {
		fmt.Println("(not found)")
		return
	}
	fmt.Println(string(v))
}

func (r *REPL) cmdDelete(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: del <key>")
		return
	}
	_, hadPrev, err := r.engine.Delete([]byte(args[0]))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	if hadPrev {
		fmt.Println("OK (deleted)")
	} else {
		fmt.Println("OK (was not present)")
	}
}

func (r *REPL) cmdFlush() {
	if err := r.engine.Flush(); err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("OK")
}

func (r *REPL) cmdStats() {
	fmt.Printf("dir: %s\n", r.engine.Dir())
}
