package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds the server runtime configuration. Values come from flags,
// environment variables (POKERROOMS_ prefix) or a .env file, in that order
// of precedence.
type Config struct {
	Bind           string
	Port           int
	DataDir        string
	Origins        []string
	HibernateAfter time.Duration
	Profile        bool
	Verbose        bool
	TLSCert        string
	TLSKey         string
}

func (c *Config) Validate() error {
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.HibernateAfter < time.Minute {
		return fmt.Errorf("invalid hibernate-after (must be at least 1m): %s", c.HibernateAfter)
	}
	return nil
}

func (c *Config) Scheme() string {
	if c.TLSCert != "" && c.TLSKey != "" {
		return "https"
	}
	return "http"
}

// NewCommand builds the root command, binding every flag to an environment
// variable through viper.
func NewCommand(cfg *Config, version string, run func(cfg *Config) error) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("POKERROOMS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "poker-rooms",
		Short:         "Realtime planning poker room coordinator.",
		Args:          cobra.ExactArgs(0),
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: POKERROOMS_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: POKERROOMS_PORT)")
	fs.StringVar(&cfg.DataDir, "data-dir", "", "directory for the session checkpoint database; empty keeps checkpoints in memory (env: POKERROOMS_DATA_DIR)")
	fs.StringSliceVar(&cfg.Origins, "origins", []string{"*"}, "allowed websocket origin patterns (env: POKERROOMS_ORIGINS)")
	fs.DurationVar(&cfg.HibernateAfter, "hibernate-after", 10*time.Minute, "time before idle rooms are hibernated to the checkpoint store (env: POKERROOMS_HIBERNATE_AFTER)")
	fs.BoolVar(&cfg.Profile, "profile", false, "register net/http/pprof handlers (env: POKERROOMS_PROFILE)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "display additional output (env: POKERROOMS_VERBOSE)")
	fs.StringVar(&cfg.TLSCert, "tls-cert", "", "path to tls certificate (env: POKERROOMS_TLS_CERT)")
	fs.StringVar(&cfg.TLSKey, "tls-key", "", "path to tls keyfile (env: POKERROOMS_TLS_KEY)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("poker-rooms v{{.Version}}\n")

	return cmd
}
