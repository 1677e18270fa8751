package main

import (
	"github.com/urfave/cli/v2"
)

func collectCommand() *cli.Command {
	return &cli.Command{
		Name:  "collect",
		Usage: "poll the configured stops and stations and store their readings",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "once",
				Usage: "run a single poll and exit",
			},
		},
		Action: func(c *cli.Context) error {
			collector, _, err := newCollector(c)
			if err != nil {
				return err
			}
			return collector.Run(c.Context)
		},
	}
}
