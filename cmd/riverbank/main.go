package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"riverbank/internal/app"
	"riverbank/internal/config"
	"riverbank/internal/database"
	"riverbank/internal/encryption"
	"riverbank/internal/riverbank"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and the secrets from the environment
// (and the optional env file next to the config).
func loadConfig() (*config.Config, config.Secrets, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, config.Secrets{}, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, config.Secrets{}, fmt.Errorf("reading config: %w", err)
	}

	secrets, err := config.LoadSecrets(defaults["env_file"])
	if err != nil {
		return nil, config.Secrets{}, fmt.Errorf("reading secrets: %w", err)
	}
	return cfg, secrets, nil
}

// newApp reads the config and creates a RiverbankApp. The caller must defer app.Close().
func newApp(ctx context.Context) (*app.RiverbankApp, error) {
	cfg, secrets, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewRiverbankApp(ctx, cfg, secrets)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pass), nil
}

var rootCmd = &cobra.Command{
	Use:          "riverbank",
	Short:        "Anonymous message-in-a-bottle exchange",
	SilenceUsage: true,
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Serve(ctx)
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		instanceID := uuid.New().String()
		cfg := config.NewConfig(instanceID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Instance ID: %s\n", instanceID)
		fmt.Printf("Base Dir:    %s\n", defaults["base_dir"])
		fmt.Printf("Secrets are read from the environment or %s\n", defaults["env_file"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Instance ID: %s\n", cfg.InstanceID)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Listen:      %s%s\n", cfg.Server.Addr, cfg.Server.PathPrefix)
		fmt.Printf("Database:    %s\n", cfg.Database.Type)
		fmt.Printf("Moderation:  %s\n", cfg.Moderation.Type)
		fmt.Printf("Rate limit:  %s\n", cfg.RateLimit.Type)
		fmt.Printf("Sealing:     %s\n", cfg.Sealing.Type)
		fmt.Printf("Vault:       %s (%s)\n", cfg.Vault.Name, cfg.Vault.Type)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage origin sealing keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the key pair used to seal origin addresses",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		keys := encryption.NewAgeKeys(cfg.Sealing)
		if keys.IsConfigured() {
			return fmt.Errorf("keys already exist at %s", cfg.Sealing.PublicKeyPath)
		}

		pass, err := readPassphrase("Passphrase: ")
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		if pass != confirm {
			return errors.New("passphrases do not match")
		}

		if err := keys.Setup(pass); err != nil {
			return err
		}
		fmt.Printf("Public key:  %s\n", cfg.Sealing.PublicKeyPath)
		fmt.Printf("Private key: %s (passphrase protected)\n", cfg.Sealing.PrivateKeyPath)
		if cfg.Sealing.Type != "age" {
			fmt.Println(`Set type = "age" in the [sealing] section to start sealing origins.`)
		}
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the bottle database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.InstanceID)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		version, _, err := db.SchemaVersion()
		if err != nil {
			return err
		}
		fmt.Printf("Database %s is at schema version %d\n", db.Path(), version)
		return nil
	},
}

var dbSnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Upload a consistent copy of the database to the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		name, err := a.Snapshot(cmd.Context())
		if err != nil {
			return fmt.Errorf("snapshot failed: %w", err)
		}
		fmt.Printf("Stored snapshot %s\n", name)
		return nil
	},
}

var dbSnapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List snapshots stored in the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		snaps, err := a.Snapshots(cmd.Context())
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Println("No snapshots stored.")
			return nil
		}
		for _, s := range snaps {
			fmt.Printf("%s  %d\n", s.Name, s.Size)
		}
		return nil
	},
}

// bottle command
var bottleCmd = &cobra.Command{
	Use:   "bottle",
	Short: "Inspect bottles",
}

var bottleOriginCmd = &cobra.Command{
	Use:   "origin ID",
	Short: "Reveal the origin address of a bottle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		origin, err := a.RevealOrigin(cmd.Context(), args[0], func() (string, error) {
			return readPassphrase("Passphrase: ")
		})
		if errors.Is(err, riverbank.ErrNotFound) {
			return fmt.Errorf("no bottle with id %s", args[0])
		}
		if err != nil {
			return err
		}
		fmt.Println(origin)
		return nil
	},
}

var bottleStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show bottle counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Active bottles:         %d\n", st.ActiveBottles)
		fmt.Printf("Reported bottles:       %d\n", st.ReportedBottles)
		fmt.Printf("False-positive reports: %d\n", st.FalsePositiveReports)
		fmt.Printf("Last sequence number:   %d\n", st.LastSequenceNumber)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	keysCmd.AddCommand(keysInitCmd)

	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbSnapshotCmd)
	dbCmd.AddCommand(dbSnapshotsCmd)

	bottleCmd.AddCommand(bottleOriginCmd)
	bottleCmd.AddCommand(bottleStatsCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(bottleCmd)
}
