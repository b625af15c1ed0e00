package main

import (
	"github.com/cuemby/burrow/pkg/om"
	"github.com/spf13/cobra"
)

func (a *app) omCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "om",
		Short: "Run a namespace manager",
		Long: `Run a namespace manager. It holds volumes, buckets and keys and serves the
namespace API that bucket commands talk to.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return unknownOption(cmd, args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.OM.BindAddr, _ = cmd.Flags().GetString("addr")
			}
			return om.NewService(a.cfg).Run(cmd.Context())
		},
	}

	cmd.Flags().String("addr", "", "Address to serve the namespace API on (overrides om.bindAddr)")
	return cmd
}
