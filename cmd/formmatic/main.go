// Command formmatic is the agent-side client of a formmatic server: it
// keeps the form draft and scenario selection in the server's draft store,
// saves transactions and prints DMV form packets to disk.
//
// Usage:
//
//	formmatic login --email agent@dmv.test --password ...
//	formmatic scenario open "Simple Transfer"
//	formmatic save --doc transfer.json
//	formmatic print --out ./packets
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/formmatic/formmatic/internal/apiclient"
	"github.com/formmatic/formmatic/internal/config"
	"github.com/formmatic/formmatic/internal/logging"
	"github.com/formmatic/formmatic/internal/pdfmerge"
	"github.com/formmatic/formmatic/internal/persist"
)

func main() {
	if err := newRootCmd(newApp(os.Stdin, os.Stdout)).Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries what every command needs once flags are parsed.
type app struct {
	in  io.Reader
	out io.Writer

	envFile  string
	apiURL   string
	token    string
	logLevel string

	cfg    *config.Config
	log    *zap.Logger
	client *apiclient.Client
	// engine merges PDFs locally.
	engine pdfmerge.Engine
}

func newApp(in io.Reader, out io.Writer) *app {
	return &app{in: in, out: out}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "formmatic",
		Short:        "Fill, save and print California DMV forms",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)

	pf := root.PersistentFlags()
	pf.StringVar(&a.envFile, "env-file", "", "load settings from this .env file")
	pf.StringVar(&a.apiURL, "api", "", "server URL (default $FORMMATIC_API_URL)")
	pf.StringVar(&a.token, "token", "", "bearer token (default $FORMMATIC_TOKEN)")
	pf.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		newLoginCmd(a),
		newCodesCmd(a),
		newSectionsCmd(a),
		newScenariosCmd(a),
		newScenarioCmd(a),
		newValidateCmd(a),
		newSaveCmd(a),
		newPrintCmd(a),
		newClearCmd(a),
		newMergeCmd(a),
		newListCmd(a),
		newSeedCmd(a),
	)
	return root
}

func (a *app) setup() error {
	var files []string
	if a.envFile != "" {
		files = append(files, a.envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return err
	}
	if a.apiURL != "" {
		cfg.APIURL = a.apiURL
	}
	if a.token != "" {
		cfg.APIToken = a.token
	}
	// The CLI only reports warnings unless asked otherwise.
	level := "warn"
	if os.Getenv("FORMMATIC_LOG_LEVEL") != "" {
		level = cfg.LogLevel
	}
	if a.logLevel != "" {
		level = a.logLevel
	}
	log, err := logging.New(logging.Options{Level: level, Service: "formmatic-cli", Console: true})
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	a.client = apiclient.New(apiclient.Config{BaseURL: cfg.APIURL, Token: cfg.APIToken})
	if a.engine == nil {
		a.engine = pdfmerge.NewPDFCPU()
	}
	return nil
}

func (a *app) drafts() persist.Persister {
	return a.client.Drafts()
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
