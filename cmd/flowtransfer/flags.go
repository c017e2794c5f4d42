package main

import (
	"os"

	"github.com/dukex/flowtransfer/pkg/config"
	"github.com/dukex/flowtransfer/pkg/transfer"
	cli "github.com/urfave/cli/v3"
)

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML or JSON config file",
			Sources: cli.EnvVars("FLOWTRANSFER_CONFIG"),
		},
		&cli.StringFlag{
			Name:    "source-url",
			Usage:   "Base URL of the source instance",
			Sources: cli.EnvVars("SOURCE_URL"),
		},
		&cli.StringFlag{
			Name:    "source-api-key",
			Usage:   "API key of the source instance",
			Sources: cli.EnvVars("SOURCE_API_KEY"),
		},
		&cli.StringFlag{
			Name:    "target-url",
			Usage:   "Base URL of the target instance",
			Sources: cli.EnvVars("TARGET_URL"),
		},
		&cli.StringFlag{
			Name:    "target-api-key",
			Usage:   "API key of the target instance",
			Sources: cli.EnvVars("TARGET_API_KEY"),
		},
		&cli.StringFlag{
			Name:    "plugins-path",
			Usage:   "Path to the directory containing plugin shared objects",
			Sources: cli.EnvVars("PLUGINS_PATH"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Shortcut for --log-level debug",
		},
		&cli.StringSliceFlag{
			Name:  "workflow-id",
			Usage: "Only workflows with this id (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "workflow-name",
			Usage: "Only workflows with this exact name (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "tag",
			Usage: "Only workflows carrying at least one of these tags (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tag",
			Usage: "Skip workflows carrying any of these tags (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "validator",
			Usage: "Validator plugin to run (repeatable, defaults to " + transfer.DefaultValidator + ")",
		},
		&cli.StringFlag{
			Name:  "options-file",
			Usage: "JSON file with transfer options, replacing the config file's transfer section",
		},
		&cli.BoolFlag{
			Name:  "no-validators",
			Usage: "Disable validation",
		},
	}
}

func transferFlags() []cli.Flag {
	return append(commonFlags(),
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Run the whole pipeline without writing to the target",
		},
		&cli.IntFlag{
			Name:    "parallelism",
			Aliases: []string{"p"},
			Usage:   "Number of concurrent target writes (1-10)",
		},
		&cli.StringFlag{
			Name:  "deduplicator",
			Usage: "Deduplicator plugin (defaults to " + transfer.DefaultDeduplicator + ")",
		},
		&cli.StringSliceFlag{
			Name:  "reporter",
			Usage: "Reporter plugin to run (repeatable, defaults to " + transfer.DefaultReporter + ")",
		},
		&cli.BoolFlag{
			Name:  "no-reports",
			Usage: "Do not generate any report",
		},
		&cli.BoolFlag{
			Name:  "skip-credentials",
			Usage: "Skip workflows whose nodes reference credentials",
		},
		&cli.StringFlag{
			Name:    "output-dir",
			Aliases: []string{"o"},
			Usage:   "Directory reports are written to",
			Sources: cli.EnvVars("OUTPUT_DIR"),
		},
		&cli.StringFlag{
			Name:    "schedule",
			Usage:   "Cron expression; when set, transfers run repeatedly until interrupted",
			Sources: cli.EnvVars("SCHEDULE"),
		},
		&cli.IntFlag{
			Name:    "status-port",
			Usage:   "Serve the status API on this port (0 disables it)",
			Sources: cli.EnvVars("STATUS_PORT"),
		},
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus for progress events (none, gochannel, kafka)",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
		&cli.BoolFlag{
			Name:    "tracing",
			Usage:   "Export traces over OTLP/HTTP",
			Sources: cli.EnvVars("TRACING_ENABLED"),
		},
	)
}

// loadConfig reads the config file, then lets explicitly set flags win.
func loadConfig(command *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(command.String("config"))
	if err != nil {
		return nil, err
	}

	setString(command, "source-url", &cfg.Source.URL)
	setString(command, "source-api-key", &cfg.Source.APIKey)
	setString(command, "target-url", &cfg.Target.URL)
	setString(command, "target-api-key", &cfg.Target.APIKey)
	setString(command, "plugins-path", &cfg.PluginsPath)
	setString(command, "output-dir", &cfg.OutputDir)
	setString(command, "schedule", &cfg.Schedule)
	setString(command, "event-bus", &cfg.EventBus)
	setString(command, "kafka-brokers", &cfg.Brokers)

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// buildOptions starts from the config file options and applies the flags that were set.
func buildOptions(command *cli.Command, cfg *config.Config) (transfer.Options, error) {
	opts := cfg.Transfer

	if path := command.String("options-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return opts, err
		}

		opts, err = transfer.ParseOptions(data)
		if err != nil {
			return opts, err
		}
	}

	setSlice(command, "workflow-id", &opts.Filters.WorkflowIDs)
	setSlice(command, "workflow-name", &opts.Filters.WorkflowNames)
	setSlice(command, "tag", &opts.Filters.Tags)
	setSlice(command, "exclude-tag", &opts.Filters.ExcludeTags)
	setSlice(command, "validator", &opts.Validators)
	setSlice(command, "reporter", &opts.Reporters)
	setString(command, "deduplicator", &opts.Deduplicator)

	if command.IsSet("dry-run") {
		opts.DryRun = command.Bool("dry-run")
	}

	if command.IsSet("skip-credentials") {
		opts.SkipCredentials = command.Bool("skip-credentials")
	}

	if command.IsSet("parallelism") {
		opts.Parallelism = int(command.Int("parallelism"))
	}

	if command.Bool("no-validators") {
		opts.Validators = []string{}
	}

	if command.Bool("no-reports") {
		opts.Reporters = []string{}
	}

	return opts, nil
}

func setString(command *cli.Command, flag string, target *string) {
	if command.IsSet(flag) {
		*target = command.String(flag)
	}
}

func setSlice(command *cli.Command, flag string, target *[]string) {
	if command.IsSet(flag) {
		*target = command.StringSlice(flag)
	}
}

func logLevel(command *cli.Command) string {
	if command.Bool("verbose") {
		return "debug"
	}

	return command.String("log-level")
}

