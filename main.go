package main

import (
	"github.com/maristed/tether/cmd"
)

func main() {
	cmd.Execute()
}
