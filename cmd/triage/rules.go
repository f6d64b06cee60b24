package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/triage/pkg/triage/ruledefs"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List defined rule sets",
	Long:  `Display the rule sets defined in the rule definitions file.`,
	RunE:  runRules,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}

// runRules prints the defined rule sets.
func runRules(cmd *cobra.Command, args []string) error {
	manager := ruledefs.NewManager(viper.GetString("rules_path"))
	sets, err := manager.InterestingRuleSets()
	if err != nil {
		return err
	}

	names := make([]string, 0, len(sets))
	for name := range sets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Printf("%s (%d rules)\n", name, sets[name].Len())
	}
	return nil
}
