package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/runsheets/internal/api"
	"github.com/jackzampolin/runsheets/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage runsheets configuration",
}

var configInitForce bool

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config into the home directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}

		path := cfgFile
		if path == "" {
			path = h.ConfigPath()
		}
		exists := h.ConfigExists()
		if path != h.ConfigPath() {
			_, statErr := os.Stat(path)
			exists = statErr == nil
		}
		if exists && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and RUNSHEETS_*
environment variables are applied. The mail password is masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgMgr, err := loadConfig()
		if err != nil {
			return err
		}

		cfg := *cfgMgr.Get()
		if cfg.Mail.Resolved().Password != "" {
			cfg.Mail.Password = "********"
		}
		return api.Output(cfg)
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the mail settings are complete and policies are known",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgMgr, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := cfgMgr.Get()
		if err := cfg.CheckPolicies(); err != nil {
			return err
		}
		if err := cfg.Mail.Validate(); err != nil {
			return err
		}
		fmt.Println("Mail configuration complete")
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configCheckCmd)

	rootCmd.AddCommand(configCmd)
}
