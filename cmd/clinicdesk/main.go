// Command clinicdesk manages the clinic's patients, doctors, appointments,
// charges and notes from the command line. Every command prints JSON.
//
//	clinicdesk patient add --first-name Ann --last-name Lee --dob 1990-02-03 --gender F --phone 555-0100
//	clinicdesk appointment list --status Scheduled --from 2024-01-01 --to 2024-01-31
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"clinicdesk/internal/blob"
	"clinicdesk/internal/config"
	"clinicdesk/internal/core"
	"clinicdesk/pkg/domain"
	"clinicdesk/pkg/logger"
)

// Exit codes.
const (
	exitOK      = 0
	exitUsage   = 1
	exitStorage = 2
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

func cli(args []string, stdout, stderr io.Writer) int {
	name, cmd, rest, ok := lookup(args)
	if !ok {
		printUsage(stderr)
		return exitUsage
	}

	fs := pflag.NewFlagSet("clinicdesk "+name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	config.RegisterFlags(fs)
	if cmd.flags != nil {
		cmd.flags(fs)
	}
	if err := fs.Parse(rest); err != nil {
		return exitUsage
	}
	if fs.NArg() != cmd.args {
		fmt.Fprintf(stderr, "usage: clinicdesk %s\n", cmd.usage)
		return exitUsage
	}

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitUsage
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: stderr})

	ctx := core.WithActor(context.Background(), cfg.Actor)
	store, err := core.OpenPersistentStore(ctx, storageConfig(cfg, log), nil)
	if err != nil {
		fmt.Fprintf(stderr, "storage: %v\n", err)
		return exitStorage
	}
	opts := []core.Option{core.WithLogger(log)}
	if path := cfg.Metrics.Textfile; path != "" {
		reg := prometheus.NewRegistry()
		opts = append(opts, core.WithMetrics(core.NewPrometheusRecorder(reg)))
		defer func() {
			if err := prometheus.WriteToTextfile(path, reg); err != nil {
				log.Error().Err(err).Str("path", path).Msg("write metrics")
			}
		}()
	}
	svc := core.NewService(store, opts...)
	defer func() {
		if err := svc.Close(); err != nil {
			log.Error().Err(err).Msg("close storage")
		}
	}()

	out, err := cmd.run(ctx, svc, fs)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitCode(err)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(stderr, "write output: %v\n", err)
		return exitUsage
	}
	return exitOK
}

func exitCode(err error) int {
	if errors.Is(err, domain.ErrPersist) {
		return exitStorage
	}
	return exitUsage
}

func storageConfig(cfg config.Config, log zerolog.Logger) core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(cfg.Storage.Driver),
		Dir:         cfg.Storage.Dir,
		Document:    cfg.Storage.Document,
		SQLitePath:  cfg.Storage.SQLitePath,
		PostgresDSN: cfg.Storage.PostgresDSN,
		S3: blob.S3Config{
			Bucket:          cfg.Storage.S3.Bucket,
			Region:          cfg.Storage.S3.Region,
			Endpoint:        cfg.Storage.S3.Endpoint,
			PathStyle:       cfg.Storage.S3.PathStyle,
			AccessKeyID:     cfg.Storage.S3.AccessKeyID,
			SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
		},
		Log: log,
	}
}

// lookup resolves "group action" or single-word commands.
func lookup(args []string) (string, command, []string, bool) {
	if len(args) == 0 {
		return "", command{}, nil, false
	}
	if cmd, ok := commands[args[0]]; ok {
		return args[0], cmd, args[1:], true
	}
	if len(args) < 2 {
		return "", command{}, nil, false
	}
	name := args[0] + " " + args[1]
	cmd, ok := commands[name]
	return name, cmd, args[2:], ok
}

func printUsage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString("usage: clinicdesk <command> [flags]\n\ncommands:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %s\n", commands[name].usage)
	}
	fmt.Fprint(w, b.String())
}
