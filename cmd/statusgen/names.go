package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"statusgen/internal/status"
)

func newNamesCmd() *cobra.Command {
	var (
		count int
		pool  string
		seed  int64
	)
	cmd := &cobra.Command{
		Use:   "names",
		Short: "Print a batch of generated viewer names as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 || count > 50 {
				return fmt.Errorf("--count must be between 1 and 50, got %d", count)
			}
			if !status.ValidPool(pool) {
				return fmt.Errorf("--type must be one of %s", poolList())
			}
			gen := status.NewRandomGenerator()
			if cmd.Flags().Changed("seed") {
				gen = status.NewGenerator(seed)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"names": gen.Generate(count, pool)})
		},
	}
	cmd.Flags().IntVar(&count, "count", 10, "number of names (1-50)")
	cmd.Flags().StringVar(&pool, "type", string(status.PoolFrench), "name pool: "+poolList())
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed for a reproducible batch")
	return cmd
}

func poolList() string {
	tags := make([]string, 0, len(status.Pools()))
	for _, p := range status.Pools() {
		tags = append(tags, string(p))
	}
	return strings.Join(tags, ", ")
}
