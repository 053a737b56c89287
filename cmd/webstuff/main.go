package main

import "github.com/lodego/webstuff/internal/cli"

// Set by -ldflags at build time.
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cli.Execute(version, buildTime)
}
