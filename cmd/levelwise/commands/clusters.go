package commands

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nachokelkar/audio-semantics/pkg/cli"
	"github.com/nachokelkar/audio-semantics/pkg/cluster"
)

var (
	flagClustersTop    int
	flagClustersFormat string
)

var clustersCmd = &cobra.Command{
	Use:   "clusters [flags] clusters.txt",
	Short: "Summarize a cluster file",
	Long: `Summarize a cluster file: cluster and unit counts and the largest
clusters with their first members.

Example:
  levelwise clusters out/level1/clusters.txt --top 20`,
	Args: cobra.ExactArgs(1),
	RunE: runClusters,
}

func init() {
	clustersCmd.Flags().IntVar(&flagClustersTop, "top", 10, "Number of clusters to list (0: all)")
	clustersCmd.Flags().StringVarP(&flagClustersFormat, "format", "o", "table", "Output format (table, yaml, json)")
}

// clusterSummary describes a cluster file.
type clusterSummary struct {
	Clusters   int            `json:"clusters" yaml:"clusters"`
	Units      int            `json:"units" yaml:"units"`
	Singletons int            `json:"singletons" yaml:"singletons"`
	Largest    []clusterEntry `json:"largest" yaml:"largest"`
}

type clusterEntry struct {
	ID      string   `json:"id" yaml:"id"`
	Size    int      `json:"size" yaml:"size"`
	Members []string `json:"members" yaml:"members"`
}

func (s clusterSummary) Header() []string {
	return []string{"id", "size", "members"}
}

func (s clusterSummary) Rows() [][]string {
	rows := make([][]string, 0, len(s.Largest))
	for _, c := range s.Largest {
		members := c.Members
		more := ""
		if len(members) > 8 {
			members, more = members[:8], " ..."
		}
		rows = append(rows, []string{c.ID, strconv.Itoa(c.Size), strings.Join(members, " ") + more})
	}
	return rows
}

func summarizeClusters(x *cluster.Index, top int) clusterSummary {
	s := clusterSummary{Clusters: x.Len(), Units: x.Units()}
	for _, id := range x.IDs() {
		m := x.Members(id)
		if len(m) == 1 {
			s.Singletons++
		}
		s.Largest = append(s.Largest, clusterEntry{ID: id.String(), Size: len(m), Members: m})
	}
	// Stable keeps identifier order among equal sizes.
	slices.SortStableFunc(s.Largest, func(a, b clusterEntry) int {
		return cmp.Compare(b.Size, a.Size)
	})
	if top > 0 && len(s.Largest) > top {
		s.Largest = s.Largest[:top]
	}
	return s
}

func runClusters(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(flagClustersFormat)
	if err != nil {
		return err
	}
	x, err := cluster.Load(args[0])
	if err != nil {
		return err
	}
	s := summarizeClusters(x, flagClustersTop)
	if format == cli.FormatTable {
		fmt.Fprintf(cmd.OutOrStdout(), "%d clusters, %d units, %d singletons\n", s.Clusters, s.Units, s.Singletons)
	}
	return cli.Output(cmd.OutOrStdout(), s, format)
}
