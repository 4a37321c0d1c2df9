package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/talkgen/internal/cli/config"
	"github.com/leapstack-labs/talkgen/internal/cli/output"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a talkgen.yaml template",
		Long: `Write a commented talkgen.yaml and a .gitignore for the run history and
job work directories.

Run it inside the MultiTalk checkout, or set generator_dir afterwards.`,
		Example: `  # Initialize in the current directory
  talkgen init

  # Initialize in another directory
  talkgen init ~/MultiTalk

  # Overwrite an existing config
  talkgen init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), initOutputMode(cmd))
			return runInit(r, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")

	return cmd
}

// initOutputMode reads the output flag directly; init must work before a
// valid config exists.
func initOutputMode(cmd *cobra.Command) output.Mode {
	if f := cmd.Flags().Lookup("output"); f != nil && f.Changed {
		return output.Mode(f.Value.String())
	}
	return output.ModeAuto
}

var initNextSteps = []string{
	"Point generator_dir and the weight paths at your MultiTalk checkout",
	"Run 'talkgen doctor' to check the environment",
	"Run 'talkgen run --dry-run' to see the generator command",
	"Run 'talkgen run' or 'talkgen run lowvram' to generate",
}

func runInit(r *output.Renderer, dir string, force bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, config.ConfigFileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", config.ConfigFileName)
	}

	if err := copyTemplate("project", dir, force); err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}

	files, _ := listTemplateFiles("project")
	for _, f := range files {
		r.StatusLine(f, "success", "")
	}

	r.Println("")
	r.Success("talkgen initialized!")
	if abs, err := filepath.Abs(configPath); err == nil {
		r.KeyValue("Config", r.Styles().Path.Render(abs))
	}
	r.Println("")
	r.Println("Next steps:")
	for i, step := range initNextSteps {
		r.Printf("  %d. %s\n", i+1, step)
	}

	return nil
}
