package cli

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/coffer/internal/config"
	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

// configCmd is the parent command for configuration operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and modify Coffer configuration settings.`,
}

// configInitCmd initializes the configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long: `Create a default configuration file at ~/.coffer/config.yaml.

If a configuration file already exists, this command will not overwrite it
unless --force is specified.`,
	Example: `  coffer config init
  coffer config init --force`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// configShowCmd shows the effective configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the effective configuration: the file merged with defaults,
environment variables and flags.`,
	Example: `  coffer config show
  coffer config show -o json`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// configGetCmd gets a specific configuration value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Get a configuration value",
	Long: `Get a configuration value by its dot-separated path.

A path naming a section prints the whole section.`,
	Example: `  coffer config get network.rpc
  coffer config get tx.debounce
  coffer config get bank`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

// configSetCmd sets a configuration value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configSetCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value by its dot-separated path.

The updated configuration is validated before the file is written.`,
	Example: `  coffer config set network.rpc https://sepolia.example.org
  coffer config set bank.address 0x5FbDB2315678afecb367f032d93F642f64180aa3
  coffer config set tx.gas_speed fast`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

// configPathCmd prints the configuration file path.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Long: `Print the path of the configuration file in use. It honors --home and
COFFER_HOME.`,
	Example: `  coffer config path
  coffer config path --home /tmp/coffer`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		outln(cmd.OutOrStdout(), config.Path(GetCmdContext(cmd).Cfg.Home))
		return nil
	},
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var configForce bool

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	configCmd.GroupID = groupConfig
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configGetCmd, configSetCmd, configPathCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite existing configuration")
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	configPath := config.Path(cc.Cfg.Home)

	if _, err := os.Stat(configPath); err == nil && !configForce {
		return coffererr.WithSuggestion(
			coffererr.WithDetails(coffererr.ErrGeneral, map[string]string{"path": configPath}),
			"configuration already exists; use --force to overwrite",
		)
	}

	defaults := config.Defaults()
	defaults.Home = cc.Cfg.Home
	if err := config.Save(defaults, configPath); err != nil {
		return coffererr.Wrap(err, "writing config file")
	}

	w := cmd.OutOrStdout()
	out(w, "Configuration initialized at %s\n", configPath)
	outln(w)
	outln(w, "Edit this file or use 'coffer config set' to configure:")
	outln(w, "  - network.rpc: your Ethereum node endpoint")
	outln(w, "  - bank.address: the Bank contract address")
	outln(w, "  - bank.genesis_block: the block the Bank was deployed in")
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := GetCmdContext(cmd)
	root, err := configNode(cc.Cfg)
	if err != nil {
		return err
	}

	if cc.Fmt.IsJSON() {
		var generic map[string]any
		if err = root.Decode(&generic); err != nil {
			return err
		}
		return cc.Fmt.Print(generic)
	}
	return printNode(cmd, root)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cc := GetCmdContext(cmd)
	root, err := configNode(cc.Cfg)
	if err != nil {
		return err
	}

	node, err := lookupNode(root, args[0], false)
	if err != nil {
		return err
	}
	if node.Kind == yaml.ScalarNode {
		outln(cmd.OutOrStdout(), node.Value)
		return nil
	}
	return printNode(cmd, node)
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cc := GetCmdContext(cmd)
	path, value := args[0], args[1]
	configPath := config.Path(cc.Cfg.Home)

	current, err := config.Load(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		current = config.Defaults()
		current.Home = cc.Cfg.Home
	} else if err != nil {
		return coffererr.WithCause(coffererr.ErrConfigInvalid, err)
	}

	updated, err := setConfigValue(current, path, value)
	if err != nil {
		return err
	}
	if err = updated.Validate(); err != nil {
		return err
	}
	if err = config.Save(updated, configPath); err != nil {
		return coffererr.Wrap(err, "saving config")
	}

	out(cmd.OutOrStdout(), "Set %s = %s\n", path, value)
	return nil
}

// setConfigValue returns a copy of c with the value at path replaced.
// Unknown paths and values of the wrong type are rejected.
func setConfigValue(c *config.Config, path, value string) (*config.Config, error) {
	root, err := configNode(c)
	if err != nil {
		return nil, err
	}
	node, err := lookupNode(root, path, true)
	if err != nil {
		return nil, err
	}
	if node.Kind != yaml.ScalarNode {
		return nil, coffererr.WithSuggestion(
			coffererr.WithDetails(coffererr.ErrInvalidInput, map[string]string{"path": path}),
			"set individual values, e.g. '"+path+".<key>'",
		)
	}
	node.Value = value
	node.Style = 0
	if node.Tag == "!!str" || node.Tag == "!!null" {
		node.Tag = "!!str"
	}

	data, err := yaml.Marshal(root)
	if err != nil {
		return nil, err
	}
	updated := config.Defaults()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err = dec.Decode(updated); err != nil {
		return nil, coffererr.WithDetails(coffererr.ErrConfigInvalid, map[string]string{
			"path":   path,
			"value":  value,
			"reason": err.Error(),
		})
	}
	return updated, nil
}

// configNode encodes c as a YAML document tree.
func configNode(c *config.Config) (*yaml.Node, error) {
	var node yaml.Node
	if err := node.Encode(c); err != nil {
		return nil, err
	}
	return &node, nil
}

// lookupNode walks a dot-separated path through mapping nodes. With create,
// a missing leaf key is added as an empty string so omitted optional
// settings can be set; the caller's decode rejects keys Config lacks.
func lookupNode(root *yaml.Node, path string, create bool) (*yaml.Node, error) {
	notFound := coffererr.WithSuggestion(
		coffererr.WithDetails(coffererr.ErrNotFound, map[string]string{"path": path}),
		"run 'coffer config show' to list the available settings",
	)

	parts := strings.Split(path, ".")
	node := root
	for i, part := range parts {
		if node.Kind != yaml.MappingNode || part == "" {
			return nil, notFound
		}
		next := mappingValue(node, part)
		if next == nil {
			if !create || i != len(parts)-1 {
				return nil, notFound
			}
			next = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str"}
			node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: part}, next)
		}
		node = next
	}
	return node, nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func printNode(cmd *cobra.Command, node *yaml.Node) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return err
	}
	return enc.Close()
}
