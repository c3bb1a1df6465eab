// Command vidmeta tags downloaded generated videos with their prompts and
// gives them stable grouped names (grok_video_<id>_P<g>_v<v>.mp4).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"vidmeta/internal/audit"
	"vidmeta/internal/config"
	"vidmeta/internal/logging"
	"vidmeta/internal/output"
)

// version is set at build time via -ldflags.
var version = "dev"

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1 // some assets failed, or the command failed
	exitUsage  = 2 // bad flags or invalid configuration
)

const usage = `Usage: vidmeta [command] [flags] [ffmpeg_path] [input_dir] [output_dir]

Commands:
  run       tag every sidecar/video pair into the output directory (default)
  plan      print the naming plan without touching the filesystem
  watch     run, then re-run whenever sidecars or videos are added
  history   list previous runs
  undo      remove the outputs of a run: undo <run-id|latest>
  check     report ffmpeg, extended attribute support and the effective configuration
`

var commands = map[string]func(ctx context.Context, e *env, args []string) int{
	"run":     runCmd,
	"plan":    planCmd,
	"watch":   watchCmd,
	"history": historyCmd,
	"undo":    undoCmd,
	"check":   checkCmd,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// env is what every command gets after flag parsing and setup.
type env struct {
	cfg       *config.Configuration
	log       *zap.Logger
	out       *output.Output
	stdout    io.Writer
	machineID string
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	name := "run"
	if len(args) > 0 {
		if _, ok := commands[args[0]]; ok {
			name, args = args[0], args[1:]
		}
	}

	fs := flag.NewFlagSet("vidmeta "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fmt.Fprintln(stderr, "\nFlags:")
		fs.PrintDefaults()
	}
	configPath := fs.String("config", "", "configuration file (.toml or .json); default config.toml, then config.json")
	verbose := fs.Bool("v", false, "verbose output and debug logging")
	logLevel := fs.String("log-level", "", "override log.level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "override log.format (console, json)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "vidmeta: %v\n", err)
		return exitUsage
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}

	log, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		fmt.Fprintf(stderr, "vidmeta: %v\n", err)
		return exitUsage
	}
	defer log.Sync()

	outCfg := output.DefaultConfig()
	outCfg.Writer, outCfg.ErrWriter, outCfg.Verbose = stdout, stderr, *verbose
	if f, ok := stdout.(*os.File); !ok || f != os.Stdout {
		outCfg.IsTTY = false
	}

	machineID, _ := os.Hostname()
	e := &env{
		cfg:       cfg,
		log:       log,
		out:       output.New(outCfg),
		stdout:    stdout,
		machineID: machineID,
	}
	return commands[name](ctx, e, fs.Args())
}

// applyPositional applies [ffmpeg_path] [input_dir] [output_dir] over the
// configuration. Empty arguments keep the configured value.
func applyPositional(cfg *config.Configuration, args []string) error {
	if len(args) > 3 {
		return fmt.Errorf("too many arguments: %v", args[3:])
	}
	fields := []*string{&cfg.FFmpegPath, &cfg.DefaultInputDir, &cfg.DefaultOutputDir}
	for i, arg := range args {
		if arg != "" {
			*fields[i] = arg
		}
	}
	return nil
}

// validate reports configuration findings and returns false on any error.
func (e *env) validate() bool {
	result := config.ValidateConfig(e.cfg)
	for _, w := range result.Warnings {
		e.out.Warn("%s: %s", w.Field, w.Message)
	}
	for _, err := range result.Errors {
		e.out.Error("config error: %s: %s", err.Field, err.Message)
	}
	return result.Valid
}

// auditWriter opens the audit log, or returns nil when auditing is disabled.
func (e *env) auditWriter() (*audit.AuditWriter, error) {
	if !e.cfg.Audit.Enabled {
		return nil, nil
	}
	return audit.NewAuditWriter(e.cfg.Audit.LogDirectory)
}

func (e *env) auditReader() *audit.AuditReader {
	return audit.NewAuditReader(e.cfg.Audit.LogDirectory)
}
