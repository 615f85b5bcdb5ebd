package cli

import (
	"github.com/spf13/cobra"
)

// completionCmd generates shell completion scripts.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for coffer.

Bash:
  To load completions for each session, write the script to your
  bash_completion.d directory, e.g. /etc/bash_completion.d/coffer.

Zsh:
  Completion must be enabled in your environment ("autoload -U compinit;
  compinit" in ~/.zshrc). Write the script to a directory on $fpath as
  _coffer and start a new shell.

Fish:
  Write the script to ~/.config/fish/completions/coffer.fish.

PowerShell:
  Write the script to coffer.ps1 and source it from your profile.`,
	Example: `  source <(coffer completion bash)
  coffer completion zsh > "${fpath[1]}/_coffer"
  coffer completion fish | source
  coffer completion powershell | Out-String | Invoke-Expression`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(w)
		case "zsh":
			return cmd.Root().GenZshCompletion(w)
		case "fish":
			return cmd.Root().GenFishCompletion(w, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(w)
		}
		return nil
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	completionCmd.GroupID = groupConfig
	rootCmd.AddCommand(completionCmd)
}
