package main

import (
	"fmt"
	"strings"

	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

func (a *app) debugCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Inspect on-disk state",
	}
	cmd.AddCommand(a.debugContainerCmd())
	return cmd
}

// containerDump is the JSON form of debug container output
type containerDump struct {
	Path                  string             `json:"path"`
	BlockCount            int64              `json:"blockCount"`
	BlockCommitSequenceID int64              `json:"blockCommitSequenceId"`
	BytesUsed             int64              `json:"bytesUsed"`
	Blocks                []*types.BlockData `json:"blocks"`
}

func (a *app) debugContainerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "container --db PATH",
		Short: "Print the counters and blocks of a container block table",
		Long: `Open a container block table read-only and print its counters and blocks.
Stop the datanode first: a running datanode holds the table lock.`,
		Example: `  burrow debug container --db /var/lib/burrow/hdds/CID-1/current/containerDir0/1/metadata/1-dn-container.db
  burrow debug container --db 1-dn-container.db --start 100 --count 10 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("db")
			start, _ := cmd.Flags().GetInt64("start")
			count, _ := cmd.Flags().GetInt("count")
			asJSON, _ := cmd.Flags().GetBool("json")

			store, err := storage.OpenBoltBlockStoreReadOnly(path)
			if err != nil {
				return err
			}
			defer store.Close()

			counters, err := store.Counters()
			if err != nil {
				return err
			}
			blocks, err := store.ListBlocks(start, count)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(containerDump{
					Path:                  path,
					BlockCount:            counters.BlockCount,
					BlockCommitSequenceID: counters.BlockCommitSequenceID,
					BytesUsed:             counters.BytesUsed,
					Blocks:                blocks,
				})
			}

			fmt.Fprintf(out, "Container table: %s\n", path)
			fmt.Fprintf(out, "  Blocks: %d\n", counters.BlockCount)
			fmt.Fprintf(out, "  Commit sequence id: %d\n", counters.BlockCommitSequenceID)
			fmt.Fprintf(out, "  Bytes used: %d\n", counters.BytesUsed)
			fmt.Fprintln(out)
			for _, b := range blocks {
				fmt.Fprintf(out, "%s bcsId: %d size: %d chunks: %d", b.BlockID, b.BlockCommitSequenceID, b.Size(), len(b.Chunks))
				if len(b.Metadata) > 0 {
					pairs := make([]string, 0, len(b.Metadata))
					for _, k := range b.MetadataKeys() {
						pairs = append(pairs, k+"="+b.Metadata[k])
					}
					fmt.Fprintf(out, " metadata: %s", strings.Join(pairs, ","))
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().String("db", "", "Path to the container block table (required)")
	cmd.Flags().Int64("start", 0, "List blocks with a local id greater than this")
	cmd.Flags().Int("count", 100, "Maximum number of blocks to print")
	cmd.Flags().Bool("json", false, "Print JSON")
	_ = cmd.MarkFlagRequired("db")
	return cmd
}
