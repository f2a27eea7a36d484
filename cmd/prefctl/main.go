// Command prefctl reads and changes EcoLife display preferences from the
// command line. Preferences live in a per-profile YAML file or a shared
// badger database; the terminal background stands in for the system theme.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(defaultApp()).Execute(); err != nil {
		os.Exit(1)
	}
}
