// Command openfisca loads a survey into a DataTable and resolves variables
// across its entities.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MalkIPP/openfisca-core/pkg/config"
	"github.com/MalkIPP/openfisca-core/pkg/logger"
	"github.com/MalkIPP/openfisca-core/pkg/observability"
)

// Version is set at build time
var Version = "dev"

// app carries what PersistentPreRunE prepared for the subcommands.
type app struct {
	v          *viper.Viper
	configPath string
	cfg        *config.EngineConfig
	log        *zap.Logger
	out        io.Writer
}

func main() {
	if err := newRootCommand(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(out io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out}

	root := &cobra.Command{
		Use:           "openfisca",
		Short:         "Entity-indexed survey data resolution",
		Long:          "openfisca loads survey tables from SQL, indexes individuals against their households, families and tax units, and resolves variables across them.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a.log != nil {
				_ = a.log.Sync()
			}
			return observability.Shutdown(cmd.Context())
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Configuration file (YAML)")
	flags.String("registry", "", "Column registry file (YAML)")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	_ = a.v.BindPFlag("registry", flags.Lookup("registry"))
	_ = a.v.BindPFlag("logging.level", flags.Lookup("log-level"))

	root.AddCommand(versionCommand(a), resolveCommand(a), describeCommand(a))
	return root
}

func (a *app) setup() error {
	cfg, err := config.ReadViper(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.log, err = logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Encoding:    cfg.Logging.Encoding,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return err
	}

	return observability.Initialize(observability.TracingConfig{
		ServiceName:    "openfisca",
		ServiceVersion: Version,
		Environment:    os.Getenv("OPENFISCA_ENVIRONMENT"),
		SamplingRate:   cfg.Tracing.SamplingRate,
		Exporter:       cfg.Tracing.Exporter,
		Writer:         os.Stderr,
	})
}

// runContext bounds a run by the configured source timeout.
func (a *app) runContext(parent context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.Source.Timeout > 0 {
		return context.WithTimeout(parent, a.cfg.Source.Timeout)
	}
	return context.WithCancel(parent)
}

func versionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(a.out, "openfisca version %s\n", Version)
		},
	}
}
