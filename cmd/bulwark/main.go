package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/five82/bulwark/internal/app"
)

const envPrefix = "BULWARK"

// Flags and their viper keys. Each is also read from BULWARK_<KEY>.
const (
	keyConfig   = "config"
	keyPrefs    = "prefs"
	keyAdminURL = "admin-url"
	keyLogLevel = "log-level"
	keyLogPath  = "log-path"
	keyAPIKey   = "api-key"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	root, err := newRootCommand(newViper())
	if err != nil {
		fmt.Fprintf(os.Stderr, "bulwark: %v\n", err)
		return 1
	}
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "bulwark: %v\n", err)
		return 1
	}
	return 0
}

// newViper reads BULWARK_* variables, with dashes in keys mapped to
// underscores.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func newRootCommand(v *viper.Viper) (*cobra.Command, error) {
	root := &cobra.Command{
		Use:           "bulwark",
		Short:         "Terminal admin console for a Shuma bot-defence deployment",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), optionsFrom(v, true))
		},
	}

	flags := root.PersistentFlags()
	flags.String(keyConfig, "", "config file (default ~/.config/bulwark/config.toml)")
	flags.String(keyPrefs, "", "UI preferences file (default ~/.config/bulwark/prefs.toml)")
	flags.String(keyAdminURL, "", "admin API base URL, overrides admin_url")
	flags.String(keyLogLevel, "", "log level: debug, info, warn or error")
	flags.String(keyLogPath, "", "log file path, overrides log_path")
	if err := bindFlags(v, flags, keyConfig, keyPrefs, keyAdminURL, keyLogLevel, keyLogPath, keyAPIKey); err != nil {
		return nil, err
	}

	root.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Sign in, load the monitoring view once and print a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Check(cmd.Context(), optionsFrom(v, false), cmd.OutOrStdout())
		},
	})
	return root, nil
}

// bindFlags binds each named flag to its viper key. Keys without a flag,
// such as the API key, are only read from the environment.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys ...string) error {
	for _, key := range keys {
		flag := flags.Lookup(key)
		if flag == nil {
			if err := v.BindEnv(key); err != nil {
				return fmt.Errorf("bind %s: %w", key, err)
			}
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind --%s: %w", key, err)
		}
	}
	return nil
}

// optionsFrom reads the resolved settings. With interactive set, a missing
// API key is prompted for when stdin is a terminal.
func optionsFrom(v *viper.Viper, interactive bool) app.Options {
	opts := app.Options{
		ConfigPath: v.GetString(keyConfig),
		PrefsPath:  v.GetString(keyPrefs),
		AdminURL:   v.GetString(keyAdminURL),
		LogLevel:   v.GetString(keyLogLevel),
		LogPath:    v.GetString(keyLogPath),
		APIKey:     v.GetString(keyAPIKey),
	}
	if interactive && term.IsTerminal(int(os.Stdin.Fd())) {
		opts.PromptKey = promptAPIKey
	}
	return opts
}

func promptAPIKey() (string, error) {
	fmt.Fprint(os.Stderr, "Shuma admin API key (empty to skip): ")
	key, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(key), nil
}
