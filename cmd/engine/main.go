// engine runs the referral crawl: it keeps crawl jobs, extracts support
// resources for the ones that are due, and merges them into listings.
//
// Usage:
//
//	engine <command> [flags]
//
// Commands: serve, run, upsert-job, delete-job, delete-listing,
// delete-record, ingest, set-api-key, init-config.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/spf13/pflag"
)

type command struct {
	summary string
	run     func(args []string) error
}

var commands = map[string]command{
	"serve":          {"run the HTTP API and the cron-driven crawl", cmdServe},
	"run":            {"run one crawl batch and exit", cmdRun},
	"upsert-job":     {"create or update the crawl job for a domain", cmdUpsertJob},
	"delete-job":     {"delete a crawl job and its listing", cmdDeleteJob},
	"delete-listing": {"delete a listing and its records", cmdDeleteListing},
	"delete-record":  {"delete one record by name", cmdDeleteRecord},
	"ingest":         {"extract resources from a text document into a listing", cmdIngest},
	"set-api-key":    {"store the generator API key in the OS keychain", cmdSetAPIKey},
	"init-config":    {"write the default config and prompt files", cmdInitConfig},
}

// exitError carries a process exit code without printing anything extra.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func (e *exitError) ExitCode() int { return e.code }

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := run(os.Args[1:]); err != nil {
		var coder interface{ ExitCode() int }
		if errors.As(err, &coder) {
			if inner := errors.Unwrap(err); inner != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", inner)
			}
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage()
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
	return cmd.run(args[1:])
}

func printUsage() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(os.Stderr, "Usage: engine <command> [flags]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-15s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Run 'engine <command> --help' for command flags.")
}

// parseFlags parses a subcommand's flags. It returns done=true after
// printing help so the caller can return nil.
func parseFlags(fs *pflag.FlagSet, args []string) (done bool, err error) {
	fs.BoolP("help", "h", false, "show help")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return true, nil
		}
		return false, err
	}
	if help, _ := fs.GetBool("help"); help {
		fmt.Fprintf(os.Stderr, "Usage of engine %s:\n", fs.Name())
		fs.PrintDefaults()
		return true, nil
	}
	if extra := fs.Args(); len(extra) > 0 {
		return false, fmt.Errorf("unexpected argument: %s", extra[0])
	}
	return false, nil
}
