package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/navapbc/labs-referral-pilot/internal/ingest"
	"github.com/navapbc/labs-referral-pilot/internal/lock"
	"github.com/navapbc/labs-referral-pilot/internal/poll"
	"github.com/navapbc/labs-referral-pilot/internal/prompts"
	"github.com/navapbc/labs-referral-pilot/internal/secrets"
	"github.com/navapbc/labs-referral-pilot/internal/store"
)

// Exit codes for run.
const (
	exitOK             = 0
	exitPartialFailure = 1
	exitMergeFailed    = 2
	exitLockHeld       = 3
)

func exitCodeFor(outcome string) int {
	switch outcome {
	case poll.OutcomeOK, poll.OutcomeNoJobsDue:
		return exitOK
	case poll.OutcomeMergeFailed:
		return exitMergeFailed
	default:
		return exitPartialFailure
	}
}

func cmdRun(args []string) error {
	var common commonFlags
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	common.add(fs)
	if done, err := parseFlags(fs, args); done || err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx, common)
	if err != nil {
		return err
	}
	defer a.Close()

	pl, lk, err := a.pipeline(ctx)
	if err != nil {
		return err
	}
	defer lk.Close()

	sum, err := pl.ProcessAllDueJobs(ctx)
	if errors.Is(err, lock.ErrHeld) {
		return &exitError{code: exitLockHeld, err: err}
	}
	if err != nil {
		return &exitError{code: exitMergeFailed, err: err}
	}

	for _, j := range sum.Jobs {
		if j.Error != "" {
			fmt.Printf("%-40s %-8s %s\n", j.Domain, j.Stage, j.Error)
		}
	}
	fmt.Printf("outcome=%s attempted=%d succeeded=%d failed=%d merge_failed=%d\n",
		sum.Outcome(), sum.Attempted, sum.Succeeded, sum.Failed, sum.MergeFailed)

	if code := exitCodeFor(sum.Outcome()); code != exitOK {
		return &exitError{code: code}
	}
	return nil
}

func cmdUpsertJob(args []string) error {
	var common commonFlags
	var host, promptName string
	var interval int

	fs := pflag.NewFlagSet("upsert-job", pflag.ContinueOnError)
	common.add(fs)
	fs.StringVar(&host, "domain", "", "domain to crawl, e.g. foodbank.org")
	fs.IntVar(&interval, "interval-hours", 24, "hours between refreshes")
	fs.StringVar(&promptName, "prompt-name", prompts.CrawlSupports, "prompt used to crawl the domain; empty for non-generative")
	if done, err := parseFlags(fs, args); done || err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx, common)
	if err != nil {
		return err
	}
	defer a.Close()

	if promptName != "" && !a.prompts.Has(promptName) {
		return fmt.Errorf("prompt %q: %w (known: %s)", promptName, prompts.ErrUnknownPrompt, strings.Join(a.prompts.Names(), ", "))
	}

	job, created, err := store.UpsertJob(ctx, a.store, host, interval, promptName, time.Now().UTC())
	if err != nil {
		return err
	}
	verb := "updated"
	if created {
		verb = "created"
	}
	fmt.Printf("%s crawl job %s (%s) every %dh\n", verb, job.Domain, job.ID, job.IntervalHours)
	return nil
}

func cmdDeleteJob(args []string) error {
	var common commonFlags
	var host string

	fs := pflag.NewFlagSet("delete-job", pflag.ContinueOnError)
	common.add(fs)
	fs.StringVar(&host, "domain", "", "domain of the crawl job")
	if done, err := parseFlags(fs, args); done || err != nil {
		return err
	}

	ctx := context.Background()
	a, err := openApp(ctx, common)
	if err != nil {
		return err
	}
	defer a.Close()

	listingDeleted, err := store.DeleteJob(ctx, a.store, host)
	if err != nil {
		return err
	}
	fmt.Printf("deleted crawl job %s (listing deleted: %v)\n", host, listingDeleted)
	return nil
}

func cmdDeleteListing(args []string) error {
	var common commonFlags
	var name string

	fs := pflag.NewFlagSet("delete-listing", pflag.ContinueOnError)
	common.add(fs)
	fs.StringVar(&name, "name", "", "listing name")
	if done, err := parseFlags(fs, args); done || err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return errors.New("--name is required")
	}

	ctx := context.Background()
	a, err := openApp(ctx, common)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := store.DeleteListingByName(ctx, a.store, name)
	if err != nil {
		return err
	}
	fmt.Printf("deleted listing %q with %d records\n", name, n)
	return nil
}

func cmdDeleteRecord(args []string) error {
	var common commonFlags
	var name string

	fs := pflag.NewFlagSet("delete-record", pflag.ContinueOnError)
	common.add(fs)
	fs.StringVar(&name, "name", "", "record name")
	if done, err := parseFlags(fs, args); done || err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return errors.New("--name is required")
	}

	ctx := context.Background()
	a, err := openApp(ctx, common)
	if err != nil {
		return err
	}
	defer a.Close()

	listingDeleted, err := store.DeleteRecordByName(ctx, a.store, name)
	if err != nil {
		return err
	}
	fmt.Printf("deleted record %q (empty listing deleted: %v)\n", name, listingDeleted)
	return nil
}

func cmdIngest(args []string) error {
	var common commonFlags
	var name, path string

	fs := pflag.NewFlagSet("ingest", pflag.ContinueOnError)
	common.add(fs)
	fs.StringVar(&name, "name", "", "listing to create or replace")
	fs.StringVar(&path, "file", "", "plain-text document to extract from")
	if done, err := parseFlags(fs, args); done || err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" || strings.TrimSpace(path) == "" {
		return errors.New("--name and --file are required")
	}

	ctx := context.Background()
	a, err := openApp(ctx, common)
	if err != nil {
		return err
	}
	defer a.Close()

	x, err := a.extractor()
	if err != nil {
		return err
	}
	in := &ingest.Ingester{
		Store:            a.store,
		Extractor:        x,
		Prompts:          a.prompts,
		InstructionRef:   a.cfg.Ingest.InstructionRef,
		PassagesPerChunk: a.cfg.Ingest.PassagesPerChunk,
		Overlap:          a.cfg.Ingest.Overlap,
		Concurrency:      a.cfg.Crawl.Concurrency,
		Hub:              a.hub,
	}
	res, err := in.Ingest(ctx, name, path)
	if err != nil {
		return err
	}
	fmt.Printf("listing %q: removed=%d added=%d\n", res.Listing.Name, res.Removed, res.Added)
	return nil
}

func cmdSetAPIKey(args []string) error {
	var common commonFlags
	var remove bool

	fs := pflag.NewFlagSet("set-api-key", pflag.ContinueOnError)
	common.add(fs)
	fs.BoolVar(&remove, "delete", false, "remove the stored key instead")
	if done, err := parseFlags(fs, args); done || err != nil {
		return err
	}

	cfg, _, err := loadConfig(common)
	if err != nil {
		return err
	}
	account := secrets.KeyringAccount(cfg.Generator.BaseURL)

	if remove {
		if err := secrets.DeleteAPIKey(account); err != nil {
			return err
		}
		fmt.Printf("deleted key for %s\n", account)
		return nil
	}

	fmt.Fprint(os.Stderr, "API key: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("read key: %w", err)
	}
	if err := secrets.SetAPIKey(account, strings.TrimSpace(line)); err != nil {
		return err
	}
	fmt.Printf("stored key for %s\n", account)
	return nil
}

func cmdInitConfig(args []string) error {
	var common commonFlags
	fs := pflag.NewFlagSet("init-config", pflag.ContinueOnError)
	common.add(fs)
	if done, err := parseFlags(fs, args); done || err != nil {
		return err
	}

	cfg, path, err := loadConfig(common)
	if err != nil {
		return err
	}
	promptPath := cfg.Resolve(cfg.Prompts.Path)
	if err := prompts.EnsureDefault(promptPath); err != nil {
		return err
	}
	log.Printf("[engine] config=%s prompts=%s", path, promptPath)
	fmt.Println(path)
	fmt.Println(promptPath)
	return nil
}
