// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// configFlag is shared by every command that reads configuration.
func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// planFlag overrides the configured plan snapshot path.
func planFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:  "plan",
		Usage: "Path to the plan snapshot file",
	}
}

// downloadCommand runs the full pipeline: generate, optimize, execute.
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "download",
		Aliases: []string{"dl"},
		Usage:   "Generate a plan from configured sources and execute it",
		Flags: []cli.Flag{
			configFlag(),
			planFlag(),
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Number of concurrent downloads (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the run summary as JSON",
			},
		},
		Action: r.Download,
	}
}

// planCommand handles plan inspection without execution.
func planCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "plan",
		Usage: "Generate and inspect download plans",
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Resolve sources into a plan and persist it without downloading",
				Flags: []cli.Flag{
					configFlag(),
					planFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the plan as JSON",
					},
				},
				Action: r.PlanGenerate,
			},
			{
				Name:  "show",
				Usage: "Print the persisted plan",
				Flags: []cli.Flag{
					configFlag(),
					planFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output the plan as JSON",
					},
				},
				Action: r.PlanShow,
			},
		},
	}
}

// resumeCommand continues a previously interrupted run.
func resumeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "resume",
		Usage: "Resume a persisted plan, executing its remaining pending items",
		Flags: []cli.Flag{
			configFlag(),
			planFlag(),
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Number of concurrent downloads (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the run summary as JSON",
			},
		},
		Action: r.Resume,
	}
}

// statusCommand prints the track tally of the persisted plan.
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the status of the persisted plan",
		Flags: []cli.Flag{
			configFlag(),
			planFlag(),
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output stats as JSON",
			},
		},
		Action: r.Status,
	}
}

// serveCommand runs the HTTP status server over the persisted plan.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve plan status over HTTP",
		Flags: []cli.Flag{
			configFlag(),
			planFlag(),
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (overrides config host/port)",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand initializes configuration and the metadata cache.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create a config file and initialize the metadata cache",
		Flags: []cli.Flag{
			configFlag(),
		},
		Action: r.Setup,
	}
}
