package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lyndonlyu/pysetup/internal/template"
)

var listFormat string
var listSearch string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available templates",
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listFormat, "format", "", "Output format (json)")
	listCmd.Flags().StringVar(&listSearch, "search", "", "Filter by name, slug, or tag")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	reg, err := template.Builtin()
	if err != nil {
		return err
	}
	templates := reg.List()
	if listSearch != "" {
		templates = reg.Search(listSearch)
	}

	if listFormat == "json" {
		out, err := template.FormatListJSON(templates)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}
	fmt.Print(template.FormatList(templates))
	return nil
}
