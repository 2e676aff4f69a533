package main

import (
	"context"
	"fmt"
	"os"

	"go.hopcount.dev/overbench/cmd/overbench"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := overbench.App.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
