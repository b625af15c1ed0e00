package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/cuemby/burrow/pkg/api"
	"github.com/cuemby/burrow/pkg/client"
	"github.com/cuemby/burrow/pkg/types"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

func (a *app) bucketCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bucket",
		Short: "Manage buckets",
		Long: `Create, inspect, change and delete buckets on a namespace manager.
Buckets are named VOLUME/BUCKET.`,
	}
	cmd.PersistentFlags().String("om", "", "Namespace manager address (defaults to om.bindAddr)")

	cmd.AddCommand(a.bucketCreateCmd())
	cmd.AddCommand(a.bucketInfoCmd())
	cmd.AddCommand(a.bucketListCmd())
	cmd.AddCommand(a.bucketUpdateCmd())
	cmd.AddCommand(a.bucketSetQuotaCmd())
	cmd.AddCommand(a.bucketDeleteCmd())
	return cmd
}

// namespaceClient dials --om, or om.bindAddr with a wildcard host replaced
// by loopback
func (a *app) namespaceClient(cmd *cobra.Command) (*client.NamespaceClient, error) {
	addr, _ := cmd.Flags().GetString("om")
	if addr == "" {
		addr = a.cfg.OM.BindAddr
		if host, port, err := net.SplitHostPort(addr); err == nil {
			if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
				addr = net.JoinHostPort("127.0.0.1", port)
			}
		}
	}
	return client.NewNamespaceClient(addr)
}

// parseBucketPath splits VOLUME/BUCKET; a leading slash is allowed
func parseBucketPath(cmd *cobra.Command, arg string) (string, string, error) {
	parts := strings.Split(strings.TrimPrefix(arg, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", &usageError{cmd: cmd, msg: fmt.Sprintf("Invalid bucket path: '%s'", arg)}
	}
	return parts[0], parts[1], nil
}

// parseReplication accepts STANDALONE, RATIS (factor 3) and TYPE/FACTOR
func parseReplication(s string) (types.ReplicationConfig, error) {
	typ, factor, hasFactor := strings.Cut(strings.ToUpper(s), "/")
	switch types.ReplicationType(typ) {
	case types.ReplicationStandalone:
		if hasFactor && factor != "1" && factor != "ONE" {
			return types.ReplicationConfig{}, fmt.Errorf("standalone replication has factor 1, got %q", factor)
		}
		return types.StandaloneReplication(), nil
	case types.ReplicationRatis:
		if !hasFactor {
			return types.RatisReplication(3), nil
		}
		n, err := strconv.Atoi(factor)
		if err != nil || n < 1 {
			return types.ReplicationConfig{}, fmt.Errorf("invalid replication factor %q", factor)
		}
		return types.RatisReplication(n), nil
	default:
		return types.ReplicationConfig{}, fmt.Errorf("unknown replication type %q", typ)
	}
}

func parseQuota(s string) (int64, error) {
	size, err := datasize.ParseString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid quota %q: %w", s, err)
	}
	return int64(size.Bytes()), nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) bucketCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create VOLUME/BUCKET",
		Short: "Create a bucket",
		Example: `  burrow bucket create vol1/logs
  burrow bucket create vol1/data --layout FILE_SYSTEM_OPTIMIZED --replication RATIS/3 --quota 10GB`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			volume, bucket, err := parseBucketPath(cmd, args[0])
			if err != nil {
				return err
			}
			layout, _ := cmd.Flags().GetString("layout")
			info := types.BucketInfo{
				Volume:      volume,
				Name:        bucket,
				Layout:      types.BucketLayout(strings.ToUpper(layout)),
				Replication: a.cfg.SCM.Replication(),
			}
			if s, _ := cmd.Flags().GetString("replication"); s != "" {
				if info.Replication, err = parseReplication(s); err != nil {
					return &usageError{cmd: cmd, msg: err.Error()}
				}
			}
			if s, _ := cmd.Flags().GetString("quota"); s != "" {
				if info.QuotaBytes, err = parseQuota(s); err != nil {
					return &usageError{cmd: cmd, msg: err.Error()}
				}
			}

			c, err := a.namespaceClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			created, err := c.CreateBucket(cmd.Context(), info)
			if err != nil {
				return err
			}
			return printJSON(cmd, created)
		},
	}
	cmd.Flags().String("layout", "", "Bucket layout: LEGACY, OBJECT_STORE or FILE_SYSTEM_OPTIMIZED (default LEGACY)")
	cmd.Flags().String("replication", "", "Replication, e.g. RATIS/3 or STANDALONE (defaults to the scm replication)")
	cmd.Flags().String("quota", "", "Space quota, e.g. 10GB")
	return cmd
}

func (a *app) bucketInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info VOLUME/BUCKET",
		Short: "Print a bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			volume, bucket, err := parseBucketPath(cmd, args[0])
			if err != nil {
				return err
			}
			c, err := a.namespaceClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			info, err := c.GetBucket(cmd.Context(), volume, bucket)
			if err != nil {
				return err
			}
			return printJSON(cmd, info)
		},
	}
}

func (a *app) bucketListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list VOLUME",
		Short: "List the buckets of a volume",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.namespaceClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			buckets, err := c.ListBuckets(cmd.Context(), strings.Trim(args[0], "/"))
			if err != nil {
				return err
			}
			if buckets == nil {
				buckets = []types.BucketInfo{}
			}
			return printJSON(cmd, buckets)
		},
	}
}

func (a *app) bucketUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update VOLUME/BUCKET",
		Short: "Change the replication or quota of a bucket",
		Long: `Change the replication or quota of a bucket. A replication change gives the
bucket a new id; writes opened before it fail at commit and must be retried.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			volume, bucket, err := parseBucketPath(cmd, args[0])
			if err != nil {
				return err
			}
			req := &api.UpdateBucketRequest{Volume: volume, Bucket: bucket}
			if s, _ := cmd.Flags().GetString("replication"); s != "" {
				repl, err := parseReplication(s)
				if err != nil {
					return &usageError{cmd: cmd, msg: err.Error()}
				}
				req.Replication = &repl
			}
			if s, _ := cmd.Flags().GetString("quota"); s != "" {
				quota, err := parseQuota(s)
				if err != nil {
					return &usageError{cmd: cmd, msg: err.Error()}
				}
				req.QuotaBytes = &quota
			}
			if req.Replication == nil && req.QuotaBytes == nil {
				return &usageError{cmd: cmd, msg: "Nothing to update: give --replication or --quota"}
			}
			return a.updateBucket(cmd, req)
		},
	}
	cmd.Flags().String("replication", "", "New replication, e.g. RATIS/3 or STANDALONE")
	cmd.Flags().String("quota", "", "New space quota, e.g. 10GB; 0 clears it")
	return cmd
}

func (a *app) bucketSetQuotaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-quota VOLUME/BUCKET --quota SIZE",
		Short: "Set the space quota of a bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			volume, bucket, err := parseBucketPath(cmd, args[0])
			if err != nil {
				return err
			}
			s, _ := cmd.Flags().GetString("quota")
			quota, err := parseQuota(s)
			if err != nil {
				return &usageError{cmd: cmd, msg: err.Error()}
			}
			return a.updateBucket(cmd, &api.UpdateBucketRequest{Volume: volume, Bucket: bucket, QuotaBytes: &quota})
		},
	}
	cmd.Flags().String("quota", "", "Space quota, e.g. 10GB (required)")
	_ = cmd.MarkFlagRequired("quota")
	return cmd
}

func (a *app) updateBucket(cmd *cobra.Command, req *api.UpdateBucketRequest) error {
	c, err := a.namespaceClient(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	updated, err := c.UpdateBucket(cmd.Context(), req)
	if err != nil {
		return err
	}
	return printJSON(cmd, updated)
}

func (a *app) bucketDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete VOLUME/BUCKET",
		Short: "Delete an empty bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			volume, bucket, err := parseBucketPath(cmd, args[0])
			if err != nil {
				return err
			}
			c, err := a.namespaceClient(cmd)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.DeleteBucket(cmd.Context(), volume, bucket); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Bucket /%s/%s deleted\n", volume, bucket)
			return nil
		},
	}
}
