// Package main provides the vexo playback agent CLI.
//
// Usage:
//
//	vexo [flags] <command> [args]
//
// Commands:
//
//	run      - start the playback agent for a guild
//	trace    - run one selection round and explain the pick
//	vote     - record a listener's reaction to a track
//	history  - show a guild's recent plays
//	config   - manage configuration
//	version  - show version information
//
// Configuration:
//
//	Settings live in the OS config directory under vexo/.
//	Use 'vexo config init' to create the default layout.
package main

import (
	"fmt"
	"os"

	"github.com/vexolabs/vexo/cmd/vexo/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
