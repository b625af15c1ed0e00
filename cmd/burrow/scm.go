package main

import (
	"errors"

	"github.com/cuemby/burrow/pkg/scm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	errMutuallyExclusive    = errors.New("--init, --bootstrap and --genclusterid are mutually exclusive")
	errClusterIDWithoutInit = errors.New("--clusterid is only valid with --init")
)

func (a *app) scmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scm [--init [--clusterid=ID] | --bootstrap | --genclusterid]",
		Short: "Run or prepare a storage container manager",
		Long: `Run a storage container manager (SCM), or prepare its storage.

Without flags the SCM starts and serves until interrupted. The node must have
been prepared with exactly one of:

  --init         create a new cluster with this node as primary SCM
  --bootstrap    adopt the cluster id of the primary at scm.primaryAddr

--genclusterid prints a new cluster id and exits.`,
		Example: `  # Create a cluster with a chosen id, then start the primary
  burrow scm --init --clusterid=CID-prod
  burrow scm

  # Add a second SCM
  burrow scm --bootstrap --config scm2.yaml
  burrow scm --config scm2.yaml`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return unknownOption(cmd, args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			command, err := parseSCMCommand(cmd.Flags())
			if err != nil {
				return &usageError{cmd: cmd, msg: err.Error()}
			}
			controller := scm.NewController(a.starter, a.cfg, cmd.OutOrStdout())
			return controller.Run(cmd.Context(), command)
		},
	}

	cmd.Flags().Bool("init", false, "Initialize this SCM as the primary of a new cluster")
	cmd.Flags().String("clusterid", "", "Cluster id to initialize with (only with --init); generated when empty")
	cmd.Flags().Bool("bootstrap", false, "Join the cluster of the primary SCM at scm.primaryAddr")
	cmd.Flags().Bool("genclusterid", false, "Print a new cluster id and exit")
	return cmd
}

// parseSCMCommand maps the action flags onto one Command. At most one
// action may be given; none means start.
func parseSCMCommand(flags *pflag.FlagSet) (scm.Command, error) {
	initFlag, _ := flags.GetBool("init")
	bootstrap, _ := flags.GetBool("bootstrap")
	genClusterID, _ := flags.GetBool("genclusterid")
	clusterID, _ := flags.GetString("clusterid")

	var actions []scm.Action
	if initFlag {
		actions = append(actions, scm.ActionInit)
	}
	if bootstrap {
		actions = append(actions, scm.ActionBootstrap)
	}
	if genClusterID {
		actions = append(actions, scm.ActionGenerateClusterID)
	}

	command := scm.Command{Action: scm.ActionStart}
	switch len(actions) {
	case 0:
	case 1:
		command.Action = actions[0]
	default:
		return scm.Command{}, errMutuallyExclusive
	}

	if flags.Changed("clusterid") {
		if command.Action != scm.ActionInit {
			return scm.Command{}, errClusterIDWithoutInit
		}
		command.ClusterID = clusterID
	}
	return command, command.Validate()
}
