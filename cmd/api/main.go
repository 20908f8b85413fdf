package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "planner",
		Usage: "Journey planner over a GTFS timetable",
		Flags: globalFlags(),
		Commands: []*cli.Command{
			serveCommand(),
			planCommand(),
			statsCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
