package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/maastricht-university/edmo-mood/config"
	"github.com/maastricht-university/edmo-mood/logging"
	"github.com/maastricht-university/edmo-mood/orchestrator"
	"github.com/maastricht-university/edmo-mood/store"
)

// Version is set at build time:
// go build -ldflags "-X github.com/maastricht-university/edmo-mood/cmd.Version=1.2.0"
var Version = "dev"

// app carries what PersistentPreRunE prepared for the subcommands.
type app struct {
	cfgFile string
	cfg     *config.Root
	log     *logrus.Logger
}

// NewRootCmd builds a fresh command tree. Tests use it to avoid shared flag state.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "edmo-mood",
		Short:         "Classroom mood detection from face and voice signals.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default config/$CONFIG_ENV/config.yaml or ./config.yaml)")
	root.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	root.AddCommand(
		newServeCmd(a),
		newAnalyzeCmd(a),
		newClassifyCmd(a),
		newFuseCmd(a),
		newExportCmd(a),
		newLabelsCmd(),
	)
	return root
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "edmo-mood:", err)
		os.Exit(1)
	}
}

func (a *app) setup() error {
	c, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(c.Log)
	if err != nil {
		return err
	}
	a.cfg, a.log = c, logger
	a.log.WithField("version", Version).Debug("configuration loaded")
	return nil
}

// pipeline opens the store and wires a pipeline on it. The caller closes the store.
func (a *app) pipeline(opts ...orchestrator.Option) (*orchestrator.Pipeline, *store.Store, error) {
	st, err := store.Open(a.cfg.Storage.Path)
	if err != nil {
		return nil, nil, err
	}
	return orchestrator.NewPipeline(a.cfg, st, a.log, opts...), st, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
