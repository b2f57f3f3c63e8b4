// Command sit is a thin smoke-test harness over the store/reduce libraries:
// init, record, and reduce (through the built-in reduce/core chain; no
// scripted reducers are loaded), wired through cobra the way
// distribution-distribution's cmd/registry/main.go and registry/root.go wire
// their own subcommands. It does not parse identities, shell out to gpg, or
// serve HTTP/web -- the full CLI surface is out of scope.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sit-fyi/sit-sub000/reduce"
	"github.com/sit-fyi/sit-sub000/reduce/core"
	"github.com/sit-fyi/sit-sub000/sitcontext"
	"github.com/sit-fyi/sit-sub000/store"
)

var logLevel string

func main() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// RootCmd is the main command for the `sit` binary.
var RootCmd = &cobra.Command{
	Use:   "sit",
	Short: "`sit` is a distributed, offline-first issue tracker core",
	Long:  "`sit` is a distributed, offline-first issue tracker core",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return configureLogging(logLevel)
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "logging level (debug, info, warn, error)")
	RootCmd.AddCommand(initCmd)
	RootCmd.AddCommand(recordCmd)
	RootCmd.AddCommand(reduceCmd)
}

// configureLogging sets the process-wide logrus level, the way
// registry.configureLogging parses config.Log.Level.
func configureLogging(level string) error {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	logrus.SetLevel(l)
	logrus.SetFormatter(&logrus.TextFormatter{TimestampFormat: time.RFC3339Nano})
	return nil
}

var initCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "`init` creates a new repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := sitcontext.Background()
		repo, err := store.Init(ctx, args[0], store.DefaultConfig())
		if err != nil {
			return fmt.Errorf("initializing repository: %w", err)
		}
		sitcontext.GetLogger(ctx).Infof("initialized repository at %s", repo.Path())
		return nil
	},
}

var recordFiles []string

var recordCmd = &cobra.Command{
	Use:   "record <repository-path>",
	Short: "`record` creates a record from name=path file pairs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := sitcontext.Background()
		repo, err := store.Open(ctx, args[0])
		if err != nil {
			return fmt.Errorf("opening repository: %w", err)
		}

		var files []store.NewRecordFile
		for _, spec := range recordFiles {
			name, path, ok := strings.Cut(spec, "=")
			if !ok {
				return fmt.Errorf("invalid --file %q, expected name=path", spec)
			}
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("opening %s for record file %s: %w", path, name, err)
			}
			defer f.Close()
			files = append(files, store.NewRecordFile{Name: name, Reader: f})
		}

		rec, err := repo.NewRecord(ctx, files, true)
		if err != nil {
			return fmt.Errorf("creating record: %w", err)
		}
		ociDigest := rec.Hash().OCIForm(repo.Config().HashingAlgorithm)
		sitcontext.GetLogEntry(ctx).
			WithField("record", rec.EncodedHash()).
			WithField("oci-digest", ociDigest).
			Info("created record")
		cmd.Println(rec.EncodedHash())
		return nil
	},
}

var reduceItemID string

var reduceCmd = &cobra.Command{
	Use:   "reduce <repository-path>",
	Short: "`reduce` replays a repository or item through the built-in reducer chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := sitcontext.Background()
		repo, err := store.Open(ctx, args[0])
		if err != nil {
			return fmt.Errorf("opening repository: %w", err)
		}

		var container store.Container
		if reduceItemID != "" {
			item, err := repo.Item(reduceItemID)
			if err != nil {
				return fmt.Errorf("looking up item %s: %w", reduceItemID, err)
			}
			container = item
		} else {
			container = repo.AsContainer()
		}

		state, err := reduce.Reduce(ctx, container, core.BasicIssueReducer(), container.InitializeState())
		if err != nil {
			return fmt.Errorf("reducing: %w", err)
		}

		if errs, ok := state["errors"].([]interface{}); ok && len(errs) > 0 {
			sitcontext.GetLogger(ctx).Warnf("reduction recovered from %d record error(s)", len(errs))
		}

		cmd.Printf("%+v\n", state)
		return nil
	},
}

func init() {
	recordCmd.Flags().StringArrayVar(&recordFiles, "file", nil, "name=path pair, repeatable")
	reduceCmd.Flags().StringVar(&reduceItemID, "item", "", "reduce a single item instead of the whole repository")
}
