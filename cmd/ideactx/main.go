package main

import (
	"fmt"
	"os"

	"github.com/dshills/ideactx-mcp/cmd/ideactx/commands"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	root := commands.NewRootCommand(commands.BuildInfo{Version: version, BuildTime: buildTime})
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
