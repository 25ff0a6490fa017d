package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/tutor/configs"
	"github.com/Aman-CERP/tutor/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create configuration files",
		Long: `Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/tutor/config.yaml)
  3. Project config (.tutor.yaml)
  4. Environment variables (TUTOR_*, or a .env file in the project)`,
		Example: `  # Create .tutor.yaml in the current project
  tutor config init

  # Show the effective configuration
  tutor config show`,
		// Subcommands load what they need so a broken file can still be inspected or replaced.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	}

	cmd.AddCommand(newConfigShowCmd(a))
	cmd.AddCommand(newConfigInitCmd(a))
	cmd.AddCommand(newConfigPathCmd(a))

	return cmd
}

func newConfigShowCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := config.FindProjectRoot(a.dir)
			if err != nil {
				return err
			}
			cfg, err := config.Load(root)
			if err != nil {
				return err
			}
			if jsonOutput {
				return a.out(cmd).JSON(cfg)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigInitCmd(a *app) *cobra.Command {
	var (
		user  bool
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented configuration file with the default settings",
		Long: `Write the default configuration template to .tutor.yaml in the project
directory, or with --user to the user configuration file. An existing user
config is backed up before --force replaces it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, a, user, force)
		},
	}

	cmd.Flags().BoolVar(&user, "user", false, "Write the user configuration instead of the project one")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}

func runConfigInit(cmd *cobra.Command, a *app, user, force bool) error {
	out := a.out(cmd)

	path, template := config.GetUserConfigPath(), configs.UserConfigTemplate
	if !user {
		template = configs.ProjectConfigTemplate
		root, err := config.FindProjectRoot(a.dir)
		if err != nil {
			return err
		}
		path = filepath.Join(root, config.ProjectConfigName)
	}

	if _, err := os.Stat(path); err == nil {
		if !force {
			out.Warningf("%s already exists (use --force to overwrite)", path)
			return nil
		}
		if user {
			backup, err := config.BackupUserConfig()
			if err != nil {
				return err
			}
			out.Status("", "Backed up to "+backup)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(template), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	out.Successf("Wrote %s", path)
	return nil
}

func newConfigPathCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := config.FindProjectRoot(a.dir)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "user:    %s\nproject: %s\n",
				config.GetUserConfigPath(), filepath.Join(root, config.ProjectConfigName))
			return err
		},
	}
}
