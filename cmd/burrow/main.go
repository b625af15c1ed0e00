package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cuemby/burrow/pkg/api"
	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/scm"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(execute(newApp(os.Stdout, os.Stderr), os.Args[1:]))
}

// app carries what the commands share; tests swap the starter and streams
type app struct {
	out     io.Writer
	errOut  io.Writer
	starter scm.Starter
	cfg     *config.Config
}

func newApp(out, errOut io.Writer) *app {
	return &app{
		out:     out,
		errOut:  errOut,
		starter: scm.ServiceStarter{},
	}
}

// usageError is printed with the usage of the command that failed
type usageError struct {
	cmd *cobra.Command
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

// unknownOption reports an unrecognized flag or argument
func unknownOption(cmd *cobra.Command, option string) error {
	return &usageError{cmd: cmd, msg: fmt.Sprintf("Unknown option: '%s'", option)}
}

// flagError turns pflag parse failures into usage errors
func flagError(cmd *cobra.Command, err error) error {
	msg := err.Error()
	for _, prefix := range []string{"unknown flag: ", "unknown shorthand flag: "} {
		if strings.HasPrefix(msg, prefix) {
			return unknownOption(cmd, strings.TrimPrefix(msg, prefix))
		}
	}
	return &usageError{cmd: cmd, msg: msg}
}

// execute runs the command line and returns the process exit code
func execute(a *app, args []string) int {
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var ue *usageError
	if errors.As(err, &ue) {
		fmt.Fprintf(a.errOut, "%s\n%s", ue.msg, ue.cmd.UsageString())
		return 1
	}
	fmt.Fprintf(a.errOut, "Error: %v\n", err)
	return 1
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "burrow",
		Short: "Burrow - replicated block storage",
		Long: `Burrow stores blocks in replicated containers on datanodes. A storage
container manager (SCM) places containers on pipelines of datanodes and
drives replicas to agree on a block commit sequence id when they close.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetVersionTemplate(fmt.Sprintf(
		"Burrow version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))
	root.SetFlagErrorFunc(flagError)

	root.PersistentFlags().String("config", "", "Path to the YAML configuration file")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides the config file")
	root.PersistentFlags().Bool("log-json", false, "Log JSON instead of console output")

	root.AddCommand(a.scmCmd())
	root.AddCommand(a.datanodeCmd())
	root.AddCommand(a.omCmd())
	root.AddCommand(a.bucketCmd())
	root.AddCommand(a.debugCmd())
	return root
}

// setup loads the configuration and initializes logging. Logs go to the
// error stream so command output stays machine readable.
func (a *app) setup(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if jsonOut, _ := cmd.Flags().GetBool("log-json"); jsonOut {
		cfg.Log.JSON = true
	}

	log.Init(log.Config{
		Level:      log.ParseLevel(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
		Output:     a.errOut,
	})
	api.Version = Version
	a.cfg = cfg
	return nil
}
