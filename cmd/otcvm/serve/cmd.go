// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package serve

import (
	"github.com/luxfi/log"
	"github.com/spf13/cobra"
)

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Short: "Runs a single OTC VM node backed by an in-memory database",
		RunE:  serveFunc,
	}
	AddFlags(c.Flags())
	return c
}

func serveFunc(c *cobra.Command, args []string) error {
	cfg, err := ParseFlags(c.Flags(), args)
	if err != nil {
		return err
	}

	logger := log.Root()
	node, err := NewNode(c.Context(), cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("serving OTC VM",
		"address", node.Addr(),
	)
	return node.Run(c.Context())
}
