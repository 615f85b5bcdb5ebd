package cli

import (
	"github.com/spf13/cobra"

	"github.com/mrz1836/coffer/internal/output"
	"github.com/mrz1836/coffer/internal/version"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var versionCheck bool

// newVersionChecker builds the release checker; tests point it at a fake server.
//
//nolint:gochecknoglobals // test seam
var newVersionChecker = func() *version.Checker { return version.NewChecker() }

// versionCmd prints build information.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long: `Print the coffer version, commit and build date.

With --check the latest published release is looked up and compared with
the running build.`,
	Example: `  coffer version
  coffer version --check -o json`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

// VersionResponse is the output of the version command.
type VersionResponse struct {
	version.Build

	Update *version.Update `json:"update,omitempty"`
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	versionCmd.GroupID = groupConfig
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().BoolVar(&versionCheck, "check", false, "check for a newer release")
}

func runVersion(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	resp := VersionResponse{Build: version.Current()}

	if versionCheck {
		ctx, cancel := contextWithTimeout(cmd, version.DefaultTimeout)
		defer cancel()
		update, err := newVersionChecker().Check(ctx, resp.Version)
		if err != nil {
			return err
		}
		resp.Update = update
	}

	if cc.Fmt.IsJSON() {
		return cc.Fmt.Print(resp)
	}

	w := cmd.OutOrStdout()
	out(w, "coffer %s\n", resp.Version)
	out(w, "  commit:     %s\n", resp.Commit)
	out(w, "  built:      %s\n", resp.BuildDate)
	out(w, "  go:         %s\n", resp.GoVersion)
	out(w, "  platform:   %s\n", resp.Platform)

	if resp.Update != nil {
		outln(w)
		if resp.Update.Available {
			output.Warnf("coffer %s is available: %s", resp.Update.Latest, resp.Update.URL)
		} else {
			output.Successf("coffer %s is the latest release", resp.Update.Current)
		}
	}
	return nil
}
