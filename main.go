// The main package for the igbot executable.
package main

import (
	"github.com/igwatch/igbot/cmd"
)

func main() {
	cmd.Execute()
}
