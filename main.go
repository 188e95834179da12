// Package main is the entry point for the toxicrawl application
package main

import (
	"github.com/toxicrawl/toxicrawl/cmd"
)

func main() {
	cmd.Execute()
}
