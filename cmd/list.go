package cmd

import (
	"fmt"
	"os"

	"autograder/internal/config"
	"autograder/internal/rubric"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the rubric documents in the configured directory",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigAndLogging(cmd)
	if err != nil {
		return err
	}

	defs, err := config.LoadPipelineDefinitions(cfg.Rubrics.Dir)
	if err != nil {
		return err
	}
	if len(defs) == 0 {
		fmt.Printf("No rubric documents in %s\n", cfg.Rubrics.Dir)
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("PIPELINE"),
		text.FgHiCyan.Sprint("TEMPLATE"),
		text.FgHiCyan.Sprint("TESTS"),
		text.FgHiCyan.Sprint("FEEDBACK"),
		text.FgHiCyan.Sprint("EXPORT"),
	})

	for _, def := range defs {
		feedback := "off"
		if def.Feedback != nil && def.Feedback.Enabled {
			feedback = def.Feedback.Mode
			if feedback == "" {
				feedback = "structured"
			}
		}
		export := "off"
		if def.ExportEnabled {
			export = "on"
		}
		t.AppendRow(table.Row{def.Name, def.Template, countConfiguredTests(def.Criteria), feedback, export})
	}
	t.Render()

	return nil
}

// countConfiguredTests counts test entries in the raw criteria, without
// resolving them against the template.
func countConfiguredTests(criteria rubric.Config) int {
	total := 0
	for _, node := range []*rubric.NodeConfig{criteria.Base, criteria.Bonus, criteria.Penalty} {
		total += countNodeTests(node)
	}
	return total
}

func countNodeTests(node *rubric.NodeConfig) int {
	if node == nil {
		return 0
	}
	total := len(node.Tests)
	for _, child := range node.Subjects {
		total += countNodeTests(child)
	}
	return total
}
