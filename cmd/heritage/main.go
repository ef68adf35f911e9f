// Package main is the single-binary entrypoint for heritage.
package main

import "github.com/heritage-dao/heritage/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
