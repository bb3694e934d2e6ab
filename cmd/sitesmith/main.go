package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"sitesmith.yaml"`
	Source  string `short:"s" help:"Site source root" default:"."`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Output   string `short:"o" help:"Output directory (overrides config)"`
		Force    bool   `short:"f" help:"Rebuild everything, ignoring the manifest"`
		FailFast bool   `help:"Stop dispatching after the first render failure"`
		Workers  int    `short:"w" help:"Render worker count (overrides config)"`
	} `cmd:"" help:"Build the site incrementally"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Watch struct {
		Debounce  string `help:"Quiet window for bursts of file events" default:"500ms"`
		FullEvery string `help:"Interval between scheduled full rebuilds (0 disables)" default:"0"`
		Output    string `short:"o" help:"Output directory (overrides config)"`
	} `cmd:"" help:"Watch the source tree and rebuild on change"`

	History struct {
		Limit int `short:"n" help:"Number of builds to show" default:"10"`
	} `cmd:"" help:"Show recent build reports"`
}

func main() {
	// A .env next to the invocation is optional.
	_ = godotenv.Load()

	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	var err error
	switch ctx.Command() {
	case "build":
		err = runBuild()
	case "init":
		err = runInit()
	case "watch":
		err = runWatch()
	case "history":
		err = runHistory()
	}
	if err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
