// Command printer-updater downloads a printer build and installs it in place
// of the current one.
package main

import "github.com/arpitkhare33/maxshapez-printer-update/cmd/printer-updater/cmd"

func main() {
	cmd.Execute()
}
