package main

import (
	"github.com/Gonanf/gabinator-desktop-remaster/internal/config"

	"github.com/spf13/pflag"
)

type initOptions struct {
	configFile    string
	logfile       string
	verbose       bool
	statusAddress string
	noStatus      bool
	source        string
	quality       int
	framing       string
}

func bindFlags(fs *pflag.FlagSet, options *initOptions) {
	def := config.Default()
	fs.StringVar(
		&(options.configFile),
		"config",
		"gabinator.toml",
		"TOML config file, missing file means defaults",
	)
	fs.StringVarP(
		&(options.logfile),
		"log-file",
		"l",
		"",
		"Log into a file, rotating after 20MB",
	)
	fs.BoolVarP(
		&(options.verbose),
		"verbose",
		"v",
		false,
		"Write verbose logs to either stderr or logfile",
	)
	fs.StringVar(
		&(options.statusAddress),
		"status-address",
		def.Status.Address,
		"Address of the status page and metrics",
	)
	fs.BoolVar(
		&(options.noStatus),
		"no-status",
		false,
		"Do not run the status server",
	)
	fs.StringVar(
		&(options.source),
		"source",
		def.Capture.Source,
		"Frame source: pattern or testdata",
	)
	fs.IntVar(
		&(options.quality),
		"quality",
		def.Stream.Quality,
		"JPEG quality of captured frames, 1-100",
	)
	fs.StringVar(
		&(options.framing),
		"framing",
		def.Stream.Framing,
		"Frame boundaries on the wire: raw or length-prefixed",
	)
}

// apply copies the flags set on the command line over cfg; flags left
// at their default never override the config file.
func (o *initOptions) apply(fs *pflag.FlagSet, cfg *config.Config) {
	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "status-address":
			cfg.Status.Address = o.statusAddress
		case "no-status":
			cfg.Status.Enabled = !o.noStatus
		case "source":
			cfg.Capture.Source = o.source
		case "quality":
			cfg.Stream.Quality = o.quality
		case "framing":
			cfg.Stream.Framing = o.framing
		}
	})
}
