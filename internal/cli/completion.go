package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aryankumar/testfleet/internal/discovery"
)

// newCompletionCmd creates the completion command for generating shell completions
func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for testfleet.

The completion script must be sourced to provide completions. After generating the
completion script, follow the instructions for your shell:

Bash:
  $ source <(testfleet completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ testfleet completion bash > /etc/bash_completion.d/testfleet
  # macOS:
  $ testfleet completion bash > $(brew --prefix)/etc/bash_completion.d/testfleet

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ testfleet completion zsh > "${fpath[1]}/_testfleet"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ testfleet completion fish | source

  # To load completions for each session, execute once:
  $ testfleet completion fish > ~/.config/fish/completions/testfleet.fish

PowerShell:
  PS> testfleet completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> testfleet completion powershell > testfleet.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompletion(cmd, args[0])
		},
	}

	return cmd
}

// runCompletion generates the completion script for the specified shell
func runCompletion(cmd *cobra.Command, shell string) error {
	out := cmd.OutOrStdout()
	switch shell {
	case "bash":
		return cmd.Root().GenBashCompletionV2(out, true)
	case "zsh":
		return cmd.Root().GenZshCompletion(out)
	case "fish":
		return cmd.Root().GenFishCompletion(out, true)
	case "powershell":
		return cmd.Root().GenPowerShellCompletionWithDesc(out)
	default:
		return fmt.Errorf("unsupported shell type %q", shell)
	}
}

// completeBinaries offers the discovered test binaries not yet on the command line
func completeBinaries(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		slog.Debug("completion could not load config", "error", err)
		return nil, cobra.ShellCompDirectiveDefault
	}

	binaries, err := discovery.Find(cfg.Discovery.Dir, cfg.Discovery.Patterns)
	if err != nil {
		return nil, cobra.ShellCompDirectiveDefault
	}

	seen := make(map[string]bool, len(args))
	for _, a := range args {
		seen[a] = true
	}

	var out []string
	for _, b := range binaries {
		if !seen[b] && strings.HasPrefix(b, toComplete) {
			out = append(out, b)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
