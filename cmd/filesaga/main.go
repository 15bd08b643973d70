package main

import (
	"fmt"
	"os"

	"github.com/hupe1980/filesaga/cmd/filesaga/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
