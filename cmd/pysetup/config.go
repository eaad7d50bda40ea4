package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage saved preferences",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show saved preferences",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a preference (template, backend, python)",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	store := openPrefs()
	if store == nil {
		return fmt.Errorf("cannot resolve the user config directory")
	}
	p, err := store.Load()
	if err != nil {
		return err
	}
	fmt.Printf("template: %s\n", orNone(p.LastTemplate))
	fmt.Printf("backend:  %s\n", orNone(p.LastBackend))
	fmt.Printf("python:   %s\n", orNone(p.LastPython))
	fmt.Printf("setups:   %d\n", p.SetupCount)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	store := openPrefs()
	if store == nil {
		return fmt.Errorf("cannot resolve the user config directory")
	}
	p, err := store.Load()
	if err != nil {
		return err
	}
	switch args[0] {
	case "template":
		p.LastTemplate = args[1]
	case "backend":
		p.LastBackend = args[1]
	case "python":
		p.LastPython = args[1]
	default:
		return fmt.Errorf("unknown preference %q (template, backend, python)", args[0])
	}
	if err := store.Save(p); err != nil {
		return err
	}
	fmt.Println(styleSuccess.Render(fmt.Sprintf("%s = %s", args[0], args[1])))
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
