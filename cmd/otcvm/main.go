// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/luxfi/otcvm/cmd/otcvm/serve"
	"github.com/luxfi/otcvm/cmd/otcvm/version"
)

func main() {
	cmd := &cobra.Command{
		Use:   "otcvm",
		Short: "Runs and inspects an OTC VM node",
	}
	cmd.AddCommand(
		serve.Command(),
		version.Command(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "command failed %v\n", err)
		os.Exit(1)
	}
}
