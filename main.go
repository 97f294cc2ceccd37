package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"

	"github.com/lepinkainen/exrmatte/cmd"
	"github.com/lepinkainen/exrmatte/config"
	"github.com/lepinkainen/exrmatte/exr"
	"github.com/lepinkainen/exrmatte/types"
	"github.com/lepinkainen/exrmatte/ui"
)

var Version = "dev"

type CLI struct {
	ConfigFile string           `name:"config" help:"Config file (default: $EXRMATTE_CONFIG or the user config directory)" type:"path" placeholder:"PATH"`
	LogLevel   string           `name:"log-level" help:"Log level: debug, info, warn or error" default:"${log_level}"`
	Version    kong.VersionFlag `help:"Show version and exit"`

	Scan   cmd.ScanCmd   `cmd:"" help:"Report the base and matte sequences under a folder"`
	Embed  cmd.EmbedCmd  `cmd:"" help:"Embed matte sequences into their base sequences"`
	Verify cmd.VerifyCmd `cmd:"" help:"Check embedded frames for matte channels"`
	Config cmd.ConfigCmd `cmd:"" help:"Show or initialise the configuration file"`
}

// vars feeds the loaded configuration into flag defaults.
func vars(cfg *config.Config) kong.Vars {
	return kong.Vars{
		"version":           Version,
		"log_level":         cfg.LogLevel,
		"compression":       cfg.Compression,
		"compressions":      exr.CompressionNames(),
		"matte_channel":     cfg.MatteChannelName,
		"workers":           strconv.Itoa(cfg.Workers),
		"replace_originals": strconv.FormatBool(cfg.ReplaceOriginals),
		"last_folder":       cfg.LastFolder(),
	}
}

func newParser(cli *CLI, cfg *config.Config, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("exrmatte"),
		kong.Description("Embed EXR matte sequences into their base sequences as extra channels."),
		kong.UsageOnError(),
		vars(cfg),
	}, options...)
	return kong.New(cli, options...)
}

// configPathFromArgs finds --config before kong runs, since the config
// provides the flag defaults.
func configPathFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--" {
			break
		}
		if value, ok := strings.CutPrefix(arg, "--config="); ok {
			return value
		}
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *cmd.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return cmd.ExitIssues
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "exrmatte"})

	cfg, cfgPath, _, err := config.Load(configPathFromArgs(args))
	if err != nil {
		fmt.Fprintln(os.Stderr, ui.ErrorStyle.Render(fmt.Sprintf("❌ %v", err)))
		return cmd.ExitIssues
	}

	var cli CLI
	parser, err := newParser(&cli, cfg)
	if err != nil {
		panic(err)
	}
	ctx, err := parser.Parse(args)
	parser.FatalIfErrorf(err)

	level, err := log.ParseLevel(cli.LogLevel)
	if err != nil {
		parser.Fatalf("--log-level: %v", err)
	}
	logger.SetLevel(level)

	appCtx := &types.AppContext{
		Version:    Version,
		Logger:     logger,
		Config:     cfg,
		ConfigPath: cfgPath,
	}

	err = ctx.Run(appCtx)
	var exitErr *cmd.ExitError
	if err != nil && (!errors.As(err, &exitErr) || exitErr.Err != nil) {
		fmt.Fprintln(os.Stderr, ui.ErrorStyle.Render(fmt.Sprintf("❌ %v", err)))
	}
	return exitCode(err)
}
