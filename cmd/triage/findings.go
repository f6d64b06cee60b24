package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/triage/pkg/triage/findings"
)

var findingsCmd = &cobra.Command{
	Use:   "findings",
	Short: "List recorded findings",
	Long: `Display findings recorded by previous runs. Use --set to search the
index for one rule set.`,
	RunE: runFindings,
}

func init() {
	findingsCmd.Flags().String("set", "", "show only findings for this rule set")
	rootCmd.AddCommand(findingsCmd)
}

// runFindings prints stored findings, optionally filtered by rule set.
func runFindings(cmd *cobra.Command, args []string) error {
	store, err := findings.Open(viper.GetString("data_dir"))
	if err != nil {
		return fmt.Errorf("opening findings store: %w", err)
	}
	defer func() { _ = store.Close() }()

	setName := cmd.Flag("set").Value.String()

	var results []*findings.Finding
	if setName != "" {
		results, err = store.BySet(setName)
	} else {
		results, err = store.All()
	}
	if err != nil {
		return err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].FilePath < results[j].FilePath
	})

	for _, f := range results {
		fmt.Printf("%s\t%s\t%s\n", f.SetName(), f.Condition(), f.FilePath)
	}
	return nil
}
