// Package cli provides the command-line interface for talkgen.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/talkgen/internal/cli/commands"
	"github.com/leapstack-labs/talkgen/internal/cli/config"
	"github.com/leapstack-labs/talkgen/internal/generator"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "talkgen",
		Short: "talkgen - talking-avatar video generation launcher",
		Long: `talkgen launches the MultiTalk video generator with a fixed set of
invocation profiles.

It sets up the generator environment, builds the command line for the
selected profile, runs the generator and records every run in a local
history database.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help, completion and init
			switch cmd.Name() {
			case "help", "completion", "__complete", "init":
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(config.WithLogger(ctx, logger))

			if cfg.Verbose {
				if configFile := config.GetConfigFileUsed(); configFile != "" {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", configFile)
				}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} {{.Version}} (commit %s, built %s)\n", GitCommit, BuildDate))

	// Global persistent flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: talkgen.yaml, searched upward)")
	pf.String("generator-dir", "", "Path to the MultiTalk checkout")
	pf.String("python", "", "Python interpreter used to run the generator")
	pf.String("ckpt-dir", "", "Path to the Wan2.1 checkpoint directory")
	pf.String("wav2vec-dir", "", "Path to the wav2vec2 checkpoint directory")
	pf.String("avatar-dir", "", "Path to the avatar asset directory (job)")
	pf.String("state", "", "Path to the run history database")
	pf.Duration("timeout", 0, "Abort the generator after this long (0 = no limit)")
	pf.BoolP("verbose", "v", false, "Verbose output")
	pf.StringP("output", "o", "", "Output format (auto|text|markdown|json)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "text", "markdown", "json"}, cobra.ShellCompDirectiveNoFileComp
	})
	for _, name := range []string{"generator-dir", "ckpt-dir", "wav2vec-dir", "avatar-dir"} {
		_ = rootCmd.MarkPersistentFlagDirname(name)
	}

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewJobCommand())
	rootCmd.AddCommand(commands.NewProfilesCommand())
	rootCmd.AddCommand(commands.NewDoctorCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(commands.NewInitCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context, which stops a running generator.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// ExitCode maps an Execute error to a process exit code. A generator
// failure exits with the generator's own code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *generator.ExitError
	if errors.As(err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}
	return 1
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for talkgen.

To load completions:

Bash:
  $ source <(talkgen completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ talkgen completion bash > /etc/bash_completion.d/talkgen
  # macOS:
  $ talkgen completion bash > $(brew --prefix)/etc/bash_completion.d/talkgen

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ talkgen completion zsh > "${fpath[1]}/_talkgen"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ talkgen completion fish | source

  # To load completions for each session, execute once:
  $ talkgen completion fish > ~/.config/fish/completions/talkgen.fish

PowerShell:
  PS> talkgen completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> talkgen completion powershell > talkgen.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
