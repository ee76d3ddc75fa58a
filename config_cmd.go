package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/forgepush/internal/config"
)

var (
	flagShowJSON  bool
	flagInitForce bool
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}

	cmd.Flags().BoolVar(&flagShowJSON, "json", false, "output in JSON format")

	return cmd
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if resolvedCfg == nil {
		return errors.New("no configuration loaded")
	}

	if flagShowJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		return enc.Encode(resolvedCfg)
	}

	return config.RenderEffective(resolvedCfg, cmd.OutOrStdout())
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a commented default config file",
		Long: "Writes the default configuration, with every setting commented out, to\n" +
			"the --config path or the platform default location.",
		Args: cobra.NoArgs,
		RunE: runConfigInit,
	}

	cmd.Flags().BoolVar(&flagInitForce, "force", false, "overwrite an existing config file")

	return cmd
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	path := configInitPath()
	if path == "" {
		return errors.New("cannot determine config path; pass --config")
	}

	logger, closer := buildLogger(nil, cmd.ErrOrStderr())
	if closer != nil {
		defer closer.Close()
	}

	if err := config.WriteTemplate(path, flagInitForce, logger); err != nil {
		if errors.Is(err, config.ErrConfigExists) {
			return fmt.Errorf("%w (use --force to overwrite)", err)
		}

		return err
	}

	statusf(cmd.OutOrStdout(), flagQuiet, "Wrote %s\n", path)

	return nil
}

// configInitPath picks the target of config init with the same precedence
// as config loading: --config, then FORGEPUSH_CONFIG, then the default.
func configInitPath() string {
	if flagConfigPath != "" {
		return flagConfigPath
	}

	if env := config.ReadEnvOverrides(); env.ConfigPath != "" {
		return env.ConfigPath
	}

	return config.DefaultConfigPath()
}
