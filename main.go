// The main package for the fabtrack executable.
package main

import (
	"github.com/JakeFAU/fabtrack/cmd"
)

func main() {
	cmd.Execute()
}
