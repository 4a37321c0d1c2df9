package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/talkgen/internal/cli/output"
	"github.com/leapstack-labs/talkgen/internal/generator"
)

// NewProfilesCommand creates the profiles command.
func NewProfilesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profiles",
		Aliases: []string{"profile"},
		Short:   "List invocation profiles",
		Long: `List the builtin invocation profiles merged with those defined in
talkgen.yaml.`,
		Example: `  # List profiles
  talkgen profiles

  # Show one profile as YAML
  talkgen profiles show lowvram`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runProfilesList(cmd)
		},
	}

	cmd.AddCommand(newProfilesShowCommand())
	return cmd
}

func newProfilesShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show one profile as YAML",
		Args:  cobra.ExactArgs(1),
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			cfg, err := getConfig()
			if err != nil {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return cfg.ProfileSet().Names(), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfilesShow(cmd, args[0])
		},
	}
}

func runProfilesList(cmd *cobra.Command) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer
	profiles := cmdCtx.Cfg.ProfileSet().Sorted()

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(profiles)
	}

	rows := make([][]string, 0, len(profiles))
	for _, p := range profiles {
		name := p.Name
		if name == cmdCtx.Cfg.Profile {
			name += " (default)"
		}
		rows = append(rows, []string{
			name,
			strconv.Itoa(p.Params.SampleSteps),
			p.Params.Mode,
			strconv.FormatInt(p.Params.NumPersistentParamInDiT, 10),
			p.Params.InputJSON,
			p.Params.AudioSaveDir,
			p.Description,
		})
	}
	r.Table([]string{"Name", "Steps", "Mode", "Persistent params", "Input JSON", "Audio dir", "Description"}, rows)
	return nil
}

func runProfilesShow(cmd *cobra.Command, name string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer

	p, err := cmdCtx.Cfg.ProfileSet().Get(name)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(p)
	}
	return writeProfileYAML(r, p)
}

func writeProfileYAML(r *output.Renderer, p generator.Profile) error {
	enc := yaml.NewEncoder(r.Writer())
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("failed to encode profile %s: %w", p.Name, err)
	}
	return enc.Close()
}
