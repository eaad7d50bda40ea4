package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lyndonlyu/pysetup/internal/setup"
	"github.com/lyndonlyu/pysetup/internal/state"
	"github.com/lyndonlyu/pysetup/internal/template"
)

var setupCmd = &cobra.Command{
	Use:   "setup [path]",
	Short: "Set up a Python project environment",
	Long:  "Create the virtualenv, install dependencies, and generate editor configuration for the target directory. Any failure rolls every change back.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSetup,
}

var (
	setupTemplate   string
	setupBackend    string
	setupPython     string
	setupSkipGroups []string
	setupTimeout    time.Duration
	setupYes        bool
)

func init() {
	setupCmd.Flags().StringVarP(&setupTemplate, "template", "t", "", "Template slug (see 'pysetup list')")
	setupCmd.Flags().StringVarP(&setupBackend, "backend", "b", "", "Preferred package manager (pip, uv, poetry)")
	setupCmd.Flags().StringVar(&setupPython, "python", "", "Override the template's python version constraint")
	setupCmd.Flags().StringSliceVar(&setupSkipGroups, "skip-groups", nil, "Dependency groups to skip")
	setupCmd.Flags().DurationVar(&setupTimeout, "timeout", 10*time.Minute, "Per-attempt install timeout")
	setupCmd.Flags().BoolVarP(&setupYes, "yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	dir, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create target directory: %w", err)
	}

	prefs := openPrefs()

	slug := setupTemplate
	if slug == "" && prefs != nil {
		if p, err := prefs.Load(); err == nil {
			slug = p.LastTemplate
		}
	}
	if slug == "" {
		return errors.New("no template selected, pass --template (see 'pysetup list')")
	}

	reg, err := template.Builtin()
	if err != nil {
		return err
	}
	tpl, err := reg.Get(slug)
	if err != nil {
		return err
	}
	if setupPython != "" {
		tpl.PythonVersion = setupPython
	}

	fmt.Println(styleBanner.Render("pysetup"))
	fmt.Printf("Target:   %s\n", dir)
	fmt.Printf("Template: %s (%s)\n", tpl.Name, tpl.Slug)
	fmt.Printf("Python:   %s\n", tpl.PythonVersion)
	fmt.Printf("Packages: %s\n", strings.Join(tpl.Packages(selectedGroups(tpl)), ", "))

	if !setupYes {
		fmt.Print("Proceed? (y/n): ")
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	orch, err := setup.NewOrchestrator(setup.Options{
		ProjectDir: dir,
		Template:   tpl,
		Backend:    setupBackend,
		SkipGroups: setupSkipGroups,
		Timeout:    setupTimeout,
		History:    openHistory(),
		Prefs:      prefs,
		Progress: func(name string, ordinal, total int) {
			fmt.Printf("[%d/%d] %s...\n", ordinal, total, name)
		},
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, runErr := orch.Run(ctx)
	if report == nil {
		return runErr
	}
	printReport(report)
	if runErr != nil {
		return fmt.Errorf("setup %s", report.State)
	}
	return nil
}

func printReport(r *setup.Report) {
	for _, w := range r.Warnings {
		fmt.Println(styleWarn.Render("warning: " + w))
	}
	if r.State == setup.Committed {
		fmt.Println(styleSuccess.Render(fmt.Sprintf("Committed in %s (backend %s, python %s)", r.Duration.Round(time.Millisecond), r.Backend, r.Python)))
		for _, p := range r.Installed {
			fmt.Println(styleDim.Render(fmt.Sprintf("  installed %s %s", p.Name, p.Version)))
		}
		return
	}
	fmt.Println(styleError.Render(fmt.Sprintf("Failed during %s: %s", r.FailedPhase, r.Reason)))
	if r.CleanupComplete {
		fmt.Println(styleDim.Render("All changes were rolled back; the directory is as it was."))
	} else {
		fmt.Println(styleWarn.Render("Cleanup was incomplete; see warnings above."))
	}
}

func selectedGroups(tpl template.Template) []string {
	skip := make(map[string]bool, len(setupSkipGroups))
	for _, g := range setupSkipGroups {
		skip[g] = true
	}
	var groups []string
	for _, g := range tpl.Groups() {
		if !skip[g] {
			groups = append(groups, g)
		}
	}
	return groups
}

func openHistory() *state.History {
	path, err := state.DefaultHistoryPath()
	if err != nil {
		return nil
	}
	return state.NewHistory(path)
}

func openPrefs() *state.PrefStore {
	path, err := state.DefaultPrefsPath()
	if err != nil {
		return nil
	}
	return state.NewPrefStore(path)
}
