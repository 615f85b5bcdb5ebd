package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// subcommandHeader starts the generated listing in a parent's Long text.
const subcommandHeader = "\n\nSubcommands:\n"

// walkCommands calls fn for cmd and then for each descendant.
func walkCommands(cmd *cobra.Command, fn func(*cobra.Command)) {
	fn(cmd)
	for _, sub := range cmd.Commands() {
		walkCommands(sub, fn)
	}
}

// listSubcommands appends the usage of each visible subcommand to every
// parent below root. The root keeps cobra's grouped listing. Calling it
// again leaves already listed parents unchanged.
func listSubcommands(root *cobra.Command) {
	walkCommands(root, func(cmd *cobra.Command) {
		if cmd == root || !cmd.HasAvailableSubCommands() || strings.Contains(cmd.Long, subcommandHeader) {
			return
		}
		cmd.Long = subcommandHelp(cmd)
	})
}

// subcommandHelp returns cmd's Long text followed by one line per subcommand.
func subcommandHelp(cmd *cobra.Command) string {
	width := 0
	for _, sub := range cmd.Commands() {
		if sub.IsAvailableCommand() && len(sub.Use) > width {
			width = len(sub.Use)
		}
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimRight(cmd.Long, "\n"))
	sb.WriteString(subcommandHeader)
	for _, sub := range cmd.Commands() {
		if sub.IsAvailableCommand() {
			_, _ = fmt.Fprintf(&sb, "  %-*s  %s\n", width, sub.Use, sub.Short)
		}
	}
	return sb.String()
}
