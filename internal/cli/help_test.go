package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAllCommandsHaveShortDescription walks the entire command tree and
// verifies that every command has a non-empty Short description.
func TestAllCommandsHaveShortDescription(t *testing.T) {
	walkCommands(rootCmd, func(cmd *cobra.Command) {
		t.Run(cmd.CommandPath(), func(t *testing.T) {
			assert.NotEmpty(t, cmd.Short,
				"%s: missing Short description", cmd.CommandPath())
		})
	})
}

// TestAllCommandsHaveLongDescription walks the entire command tree and
// verifies that every command has a non-empty Long description.
func TestAllCommandsHaveLongDescription(t *testing.T) {
	walkCommands(rootCmd, func(cmd *cobra.Command) {
		t.Run(cmd.CommandPath(), func(t *testing.T) {
			assert.NotEmpty(t, cmd.Long,
				"%s: missing Long description", cmd.CommandPath())
		})
	})
}

// TestLeafCommandsHaveExamples verifies that every leaf command (one
// with RunE or Run) has a non-empty Example field.
func TestLeafCommandsHaveExamples(t *testing.T) {
	walkCommands(rootCmd, func(cmd *cobra.Command) {
		if cmd.RunE == nil && cmd.Run == nil {
			return // parent/group command; not required to have examples
		}
		t.Run(cmd.CommandPath(), func(t *testing.T) {
			assert.NotEmpty(t, cmd.Example,
				"%s: leaf command missing Example field", cmd.CommandPath())
		})
	})
}

// TestNoEmbeddedExamplesInLong ensures no command embeds "Example:" or
// "Examples:" text inside the Long field. Examples should use the
// dedicated Example field so Cobra renders them in a separate section.
func TestNoEmbeddedExamplesInLong(t *testing.T) {
	walkCommands(rootCmd, func(cmd *cobra.Command) {
		t.Run(cmd.CommandPath(), func(t *testing.T) {
			assert.False(t,
				strings.Contains(cmd.Long, "\nExample:") ||
					strings.Contains(cmd.Long, "\nExamples:"),
				"%s: Long contains embedded examples; move to Example field",
				cmd.CommandPath())
		})
	})
}

// TestAllFlagsHaveDescriptions verifies every registered flag across all
// commands has a non-empty usage description string.
func TestAllFlagsHaveDescriptions(t *testing.T) {
	walkCommands(rootCmd, func(cmd *cobra.Command) {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			t.Run(cmd.CommandPath()+"/--"+f.Name, func(t *testing.T) {
				assert.NotEmpty(t, f.Usage,
					"flag --%s on %s has no description", f.Name, cmd.CommandPath())
			})
		})
	})
}

// TestCommandGroupsAssigned verifies all top-level commands (direct
// children of the root) have a GroupID set for organized help output.
func TestCommandGroupsAssigned(t *testing.T) {
	for _, cmd := range rootCmd.Commands() {
		if !cmd.IsAvailableCommand() {
			continue
		}
		t.Run(cmd.Name(), func(t *testing.T) {
			assert.NotEmpty(t, cmd.GroupID,
				"top-level command %q missing GroupID", cmd.Name())
		})
	}
}

// TestRootHelpContainsGroups verifies the root --help output shows the
// command groups rather than a flat "Available Commands:" list.
func TestRootHelpContainsGroups(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"--help"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Bank Operations:")
	assert.Contains(t, output, "Wallet Operations:")
	assert.Contains(t, output, "Configuration:")
}

// TestParentCommandsShowSubcommandsInHelp verifies that parent commands
// show their subcommands in the rendered help output via Cobra's built-in
// "Available Commands:" section.
func TestParentCommandsShowSubcommandsInHelp(t *testing.T) {
	parentCmds := []struct {
		name string
		cmd  *cobra.Command
	}{
		{"wallet", walletCmd},
		{"config", configCmd},
	}

	for _, pc := range parentCmds {
		t.Run(pc.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			pc.cmd.SetOut(buf)
			t.Cleanup(func() { pc.cmd.SetOut(nil) })
			require.NoError(t, pc.cmd.Help())
			helpOutput := buf.String()

			assert.Contains(t, helpOutput, "Available Commands:",
				"parent command %q missing Available Commands section", pc.name)

			for _, sub := range pc.cmd.Commands() {
				if sub.IsAvailableCommand() {
					assert.Contains(t, helpOutput, sub.Name(),
						"parent %q missing subcommand %q in help", pc.name, sub.Name())
				}
			}
		})
	}
}

// TestLeafCommandHelpShowsExamplesSection verifies the rendered help
// output of representative leaf commands includes a labeled "Examples:"
// section from the Example field.
func TestLeafCommandHelpShowsExamplesSection(t *testing.T) {
	cmds := []*cobra.Command{
		walletCreateCmd,
		balanceCmd,
		depositCmd,
		withdrawCmd,
		eventsCmd,
	}

	for _, cmd := range cmds {
		t.Run(cmd.CommandPath(), func(t *testing.T) {
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			t.Cleanup(func() { cmd.SetOut(nil) })

			require.NoError(t, cmd.Help())
			helpOutput := buf.String()

			assert.Contains(t, helpOutput, "Examples:")
			assert.Contains(t, helpOutput, "coffer")
		})
	}
}

// TestWalkCommandsVisitsAll verifies walkCommands discovers every command.
func TestWalkCommandsVisitsAll(t *testing.T) {
	var visited []string
	walkCommands(rootCmd, func(cmd *cobra.Command) {
		visited = append(visited, cmd.CommandPath())
	})

	expectedPaths := []string{
		"coffer",
		"coffer deposit",
		"coffer withdraw",
		"coffer balance",
		"coffer events",
		"coffer history",
		"coffer watch",
		"coffer wallet",
		"coffer wallet create",
		"coffer wallet import",
		"coffer wallet show",
		"coffer config",
		"coffer config init",
		"coffer config show",
		"coffer config get",
		"coffer config set",
		"coffer config path",
		"coffer completion",
		"coffer version",
	}

	for _, expected := range expectedPaths {
		assert.Contains(t, visited, expected,
			"walkCommands did not visit %q", expected)
	}
}

// newNoopRun returns a no-op Run function to make test commands "runnable" in Cobra.
func newNoopRun() func(*cobra.Command, []string) {
	return func(_ *cobra.Command, _ []string) {}
}

// TestListSubcommands verifies parents below the root get a usage listing.
func TestListSubcommands(t *testing.T) {
	root := &cobra.Command{Use: "root", Long: "Root description."}
	parent := &cobra.Command{Use: "parent", Short: "Parent", Long: "Base description."}
	child1 := &cobra.Command{Use: "get <path>", Short: "First subcommand", Run: newNoopRun()}
	child2 := &cobra.Command{Use: "set <path> <value>", Short: "Second subcommand", Run: newNoopRun()}
	parent.AddCommand(child1, child2)
	root.AddCommand(parent)

	listSubcommands(root)

	assert.Equal(t, "Root description.", root.Long)
	assert.Contains(t, parent.Long, "Base description.")
	assert.Contains(t, parent.Long, "Subcommands:")
	assert.Contains(t, parent.Long, "  get <path>          First subcommand\n")
	assert.Contains(t, parent.Long, "  set <path> <value>  Second subcommand\n")

	listSubcommands(root)
	assert.Equal(t, 1, strings.Count(parent.Long, "Subcommands:"))
}

// TestListSubcommands_Leaf verifies leaf commands keep their Long text.
func TestListSubcommands_Leaf(t *testing.T) {
	root := &cobra.Command{Use: "root"}
	leaf := &cobra.Command{Use: "leaf", Short: "A leaf", Long: "Leaf description.", Run: newNoopRun()}
	root.AddCommand(leaf)

	listSubcommands(root)

	assert.Equal(t, "Leaf description.", leaf.Long)
}

// TestListSubcommands_HiddenSubcommands verifies hidden subcommands are
// left out of the listing.
func TestListSubcommands_HiddenSubcommands(t *testing.T) {
	root := &cobra.Command{Use: "root"}
	parent := &cobra.Command{Use: "parent", Short: "Parent", Long: "Parent desc."}
	visible := &cobra.Command{Use: "visible", Short: "Visible command", Run: newNoopRun()}
	hidden := &cobra.Command{Use: "hidden", Short: "Hidden command", Hidden: true, Run: newNoopRun()}
	parent.AddCommand(visible, hidden)
	root.AddCommand(parent)

	listSubcommands(root)

	assert.Contains(t, parent.Long, "visible")
	assert.NotContains(t, parent.Long, "hidden")
}

// TestExecute_ParentHelpListsSubcommands verifies the listing through the
// real command tree.
func TestExecute_ParentHelpListsSubcommands(t *testing.T) {
	out, err := executeRoot(t, "config", "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Subcommands:")
	assert.Contains(t, out, "set <path> <value>")

	out, err = executeRoot(t, "--help")
	require.NoError(t, err)
	assert.NotContains(t, out, "Subcommands:")
}

// TestCommandShortDescriptionsAreReasonableLength verifies Short
// descriptions are concise (under 80 chars) for clean help output.
func TestCommandShortDescriptionsAreReasonableLength(t *testing.T) {
	const maxShortLen = 80

	walkCommands(rootCmd, func(cmd *cobra.Command) {
		t.Run(cmd.CommandPath(), func(t *testing.T) {
			assert.LessOrEqual(t, len(cmd.Short), maxShortLen,
				"%s: Short description too long (%d chars): %q",
				cmd.CommandPath(), len(cmd.Short), cmd.Short)
		})
	})
}

// TestExamplesContainCommandName verifies that Example fields reference
// the actual coffer command for clarity.
func TestExamplesContainCommandName(t *testing.T) {
	walkCommands(rootCmd, func(cmd *cobra.Command) {
		if cmd.Example == "" {
			return
		}
		t.Run(cmd.CommandPath(), func(t *testing.T) {
			assert.Contains(t, cmd.Example, "coffer",
				"%s: Example should contain 'coffer' to show full command invocation",
				cmd.CommandPath())
		})
	})
}

// TestRequiredFlagsDocumented verifies that flags marked as required
// include "(required)" in their usage description or the command's
// required annotation matches.
func TestRequiredFlagsDocumented(t *testing.T) {
	walkCommands(rootCmd, func(cmd *cobra.Command) {
		annotations := cmd.Annotations
		_ = annotations // Cobra stores required flag names internally

		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			// Check if flag is in the required list
			requiredAnnotation := f.Annotations
			if requiredAnnotation == nil {
				return
			}
			if _, isRequired := requiredAnnotation[cobra.BashCompOneRequiredFlag]; !isRequired {
				return
			}

			t.Run(cmd.CommandPath()+"/--"+f.Name, func(t *testing.T) {
				assert.Contains(t, f.Usage, "required",
					"required flag --%s on %s should mention 'required' in its description",
					f.Name, cmd.CommandPath())
			})
		})
	})
}

// TestMutuallyExclusiveAccountAllOnEvents verifies --account and --all
// are declared mutually exclusive on the events command.
func TestMutuallyExclusiveAccountAllOnEvents(t *testing.T) {
	require.NoError(t, eventsCmd.Flags().Set("account", testAccount))
	require.NoError(t, eventsCmd.Flags().Set("all", "true"))
	t.Cleanup(func() {
		eventsAccount = ""
		eventsAll = false
		eventsCmd.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
	})

	err := eventsCmd.ValidateFlagGroups()
	require.Error(t, err, "expected error for --account and --all together")
	assert.Contains(t, err.Error(), "none of the others can be")
}

// TestHelpOutputContainsGlobalFlags verifies the rendered help for a
// leaf command includes inherited global flags.
func TestHelpOutputContainsGlobalFlags(t *testing.T) {
	buf := new(bytes.Buffer)
	walletCreateCmd.SetOut(buf)
	_ = walletCreateCmd.Help()
	output := buf.String()

	assert.Contains(t, output, "--home")
	assert.Contains(t, output, "--output")
	assert.Contains(t, output, "--verbose")
}

// TestCommandUseLinesAreSet verifies every command has a Use field.
func TestCommandUseLinesAreSet(t *testing.T) {
	walkCommands(rootCmd, func(cmd *cobra.Command) {
		t.Run(cmd.CommandPath(), func(t *testing.T) {
			assert.NotEmpty(t, cmd.Use,
				"%s: missing Use field", cmd.CommandPath())
		})
	})
}
