package main

import (
	"github.com/cuemby/burrow/pkg/datanode"
	"github.com/spf13/cobra"
)

func (a *app) datanodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datanode",
		Short: "Run a datanode",
		Long: `Run a datanode. It registers with the SCM at datanode.scmAddr, loads the
containers found on its volume and serves block and chunk traffic until
interrupted.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return unknownOption(cmd, args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("node-id") {
				a.cfg.NodeID, _ = cmd.Flags().GetString("node-id")
			}
			if cmd.Flags().Changed("scm") {
				a.cfg.Datanode.SCMAddr, _ = cmd.Flags().GetString("scm")
			}
			if cmd.Flags().Changed("api-addr") {
				a.cfg.Datanode.APIAddr, _ = cmd.Flags().GetString("api-addr")
			}
			if cmd.Flags().Changed("data-dir") {
				a.cfg.DataDir, _ = cmd.Flags().GetString("data-dir")
			}

			svc, err := datanode.NewService(a.cfg)
			if err != nil {
				return err
			}
			return svc.Run(cmd.Context())
		},
	}

	cmd.Flags().String("node-id", "", "Unique datanode id (overrides nodeId)")
	cmd.Flags().String("scm", "", "SCM gRPC address (overrides datanode.scmAddr)")
	cmd.Flags().String("api-addr", "", "Address to serve and advertise (overrides datanode.apiAddr)")
	cmd.Flags().String("data-dir", "", "Data directory (overrides dataDir)")
	return cmd
}
