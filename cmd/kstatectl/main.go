// Command kstatectl is a small command-line tool for inspecting and
// poking at kstate shared-memory regions from the shell, the way a
// developer would otherwise have to write a throwaway Go program to do.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kynesim/kstate"
	"github.com/kynesim/kstate/internal/config"
	"github.com/kynesim/kstate/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	verbose := false
	args := os.Args[2:]
	for i, a := range args {
		if a == "-v" {
			verbose = true
			args = append(args[:i:i], args[i+1:]...)
			break
		}
	}

	logConfig := logging.DefaultConfig()
	if level, ok := config.LogLevel(); ok {
		logConfig.Level = level
	}
	if verbose {
		logConfig.Level = logging.LevelDebug
	}
	logging.SetDefault(logging.NewLogger(logConfig))

	var err error
	switch os.Args[1] {
	case "create":
		err = runCreate(args)
	case "dump":
		err = runDump(args)
	case "set":
		err = runSet(args)
	case "watch":
		err = runWatch(args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "kstatectl: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: kstatectl [-v] <command> [args]")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  create -name NAME            create (or open) a state and print it; the name is unlinked on exit")
	fmt.Fprintln(os.Stderr, "  dump   -name NAME            print a state's current bytes as hex")
	fmt.Fprintln(os.Stderr, "  set    -name NAME -at N -byte B   write a single byte into a state")
	fmt.Fprintln(os.Stderr, "  watch  -name NAME [-interval DUR]  poll and print a state's bytes on change")
}

func runCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	name := fs.String("name", "", "state name to create")
	fs.Parse(args)
	if *name == "" {
		return fmt.Errorf("-name is required")
	}

	s := kstate.NewState()
	defer s.Free()
	if err := s.Subscribe(*name, kstate.PermRead|kstate.PermWrite); err != nil {
		return err
	}
	fmt.Printf("created %s\n", s)
	return nil
}

func runDump(args []string) error {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	name := fs.String("name", "", "state name to dump")
	fs.Parse(args)
	if *name == "" {
		return fmt.Errorf("-name is required")
	}

	s := kstate.NewState()
	defer s.Free()
	if err := s.Subscribe(*name, kstate.PermRead); err != nil {
		return err
	}
	printHexDump(s.Data())
	return nil
}

func runSet(args []string) error {
	fs := flag.NewFlagSet("set", flag.ExitOnError)
	name := fs.String("name", "", "state name to modify")
	at := fs.Int("at", 0, "byte offset to write")
	value := fs.Int("byte", 0, "byte value to write (0-255)")
	fs.Parse(args)
	if *name == "" {
		return fmt.Errorf("-name is required")
	}
	if *value < 0 || *value > 0xff {
		return fmt.Errorf("-byte must be in [0, 255], got %d", *value)
	}

	s := kstate.NewState()
	defer s.Free()
	if err := s.Subscribe(*name, kstate.PermRead|kstate.PermWrite); err != nil {
		return err
	}
	if *at < 0 || *at >= len(s.Data()) {
		return fmt.Errorf("-at %d is out of range [0, %d)", *at, len(s.Data()))
	}

	for {
		tx := kstate.NewTransaction()
		if err := tx.Start(s, kstate.PermRead|kstate.PermWrite); err != nil {
			tx.Free()
			return err
		}
		tx.Data()[*at] = byte(*value)
		err := tx.Commit()
		tx.Free()
		if err == nil {
			return nil
		}
		if !kstate.IsConflict(err) {
			return err
		}
		// Another writer committed between Start and Commit; the
		// retry loop here is kstatectl's own policy, not kstate's
		// retry/backoff is left to the caller.
	}
}

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	name := fs.String("name", "", "state name to watch")
	interval := fs.Duration("interval", 200*time.Millisecond, "poll interval")
	fs.Parse(args)
	if *name == "" {
		return fmt.Errorf("-name is required")
	}

	s := kstate.NewState()
	defer s.Free()
	if err := s.Subscribe(*name, kstate.PermRead); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	var last []byte
	for {
		select {
		case <-sigCh:
			return nil
		case <-ticker.C:
			cur := s.Data()
			if last == nil || !bytesEqual(last, cur) {
				fmt.Printf("[%s] %s changed:\n", time.Now().Format(time.RFC3339), s)
				printHexDump(cur)
				last = append(last[:0], cur...)
			}
		}
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func printHexDump(data []byte) {
	for offset := 0; offset < len(data); offset += 16 {
		end := offset + 16
		if end > len(data) {
			end = len(data)
		}
		fmt.Printf("%08x  ", offset)
		for i := offset; i < end; i++ {
			fmt.Printf("%02x ", data[i])
		}
		fmt.Println()
	}
}
