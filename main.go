// main package for stlcrunch command-line tool
// Package main is the entry point for the stlcrunch CLI.
package main

import "stlcrunch.dev/pkg/stlcrunch/cmd"

func main() {
	cmd.Execute()
}
