// The main package for the hygiened executable.
package main

import (
	"github.com/compace/hygiene/cmd"
)

func main() {
	cmd.Execute()
}
