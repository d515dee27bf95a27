package main

import (
	"fmt"
	"os"

	"github.com/example/gmpsched/internal/cli"
	"github.com/example/gmpsched/internal/wire"
)

func main() {
	err := cli.RootCmd().Execute()
	if cerr := wire.Shutdown(); cerr != nil {
		fmt.Fprintln(os.Stderr, cerr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
