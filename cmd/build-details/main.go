// Command build-details prints the build catalogue published by the server.
package main

import "github.com/arpitkhare33/maxshapez-printer-update/cmd/build-details/cmd"

func main() {
	cmd.Execute()
}
