package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lyndonlyu/pysetup/internal/template"
)

var showCmd = &cobra.Command{
	Use:   "show [slug]",
	Short: "Show template details",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	reg, err := template.Builtin()
	if err != nil {
		return err
	}
	tpl, err := reg.Get(args[0])
	if err != nil {
		return err
	}
	fmt.Println(template.FormatDetail(tpl))
	if tpl.Docs != "" {
		fmt.Println(renderMarkdown(tpl.Docs))
	}
	if tpl.DocsURL != "" {
		fmt.Println(styleDim.Render("Docs: " + tpl.DocsURL))
	}
	return nil
}
