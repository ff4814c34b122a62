// Package cli implements the as2org command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"as2org/internal/config"
	"as2org/internal/loader"
	"as2org/internal/logging"
	"as2org/internal/manifest"
	"as2org/internal/metrics"
	"as2org/internal/snapshot"
	"as2org/internal/source"
)

type ExitCode int

const (
	exitCodeSuccess ExitCode = 0
	exitCodeError   ExitCode = 1
)

func Run() ExitCode {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCodeError
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := NewRootCmd(cfg).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitCodeError
	}
	return exitCodeSuccess
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfg *config.Config
	log *slog.Logger
	src *source.Source
}

// NewRootCmd builds the command tree. Flag defaults come from cfg, so the
// environment is overridden only by flags that are actually set.
func NewRootCmd(cfg *config.Config) *cobra.Command {
	a := &app{cfg: cfg}

	rootCmd := &cobra.Command{
		Use:           "as2org",
		Short:         "Query the CAIDA AS-to-organization dataset.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			a.log = logging.New(cmd.ErrOrStderr(), a.cfg.Verbose)
			a.src = source.New(nil)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Help(); err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}

	bindGlobalFlags(rootCmd.PersistentFlags(), cfg)

	rootCmd.AddCommand(
		newInfoCmd(a),
		newSiblingsCmd(a),
		newAreSiblingsCmd(a),
		newSnapshotsCmd(a),
		newLatestCmd(a),
		newFetchCmd(a),
		newManifestCmd(a),
		newEnrichCmd(a),
		newServeCmd(a),
	)
	return rootCmd
}

func bindGlobalFlags(flags *pflag.FlagSet, cfg *config.Config) {
	flags.StringVar(&cfg.Data, "data", cfg.Data, "dataset file or URL (empty loads the most recent snapshot)")
	flags.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "directory listing that holds dated snapshots")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "set debug logging level")
	flags.StringVar(&cfg.ManifestSink, "manifest-sink", cfg.ManifestSink, "where to publish the load manifest: none|file|kafka|both")
	flags.StringVar(&cfg.ManifestDir, "manifest-dir", cfg.ManifestDir, "directory for the file manifest")
	flags.StringVar(&cfg.KafkaBootstrap, "kafka-bootstrap", cfg.KafkaBootstrap, "comma-separated kafka brokers")
	flags.StringVar(&cfg.TopicManifest, "topic-manifest", cfg.TopicManifest, "kafka topic for the load manifest")
}

func (a *app) discovery() (*snapshot.Discovery, error) {
	return snapshot.NewDiscovery(a.cfg.BaseURL, a.src)
}

func (a *app) publisher() manifest.Publisher {
	switch a.cfg.ManifestSink {
	case config.SinkFile:
		return manifest.NewFilesystemManifest(a.cfg.ManifestDir)
	case config.SinkKafka:
		return manifest.NewKafkaManifest(a.cfg.KafkaBootstrap, a.cfg.TopicManifest, manifest.DefaultKey)
	case config.SinkBoth:
		return manifest.MultiPublisher(
			manifest.NewFilesystemManifest(a.cfg.ManifestDir),
			manifest.NewKafkaManifest(a.cfg.KafkaBootstrap, a.cfg.TopicManifest, manifest.DefaultKey),
		)
	default:
		return nil
	}
}

func (a *app) load(ctx context.Context, reg *metrics.Registry) (*loader.Dataset, error) {
	disc, err := a.discovery()
	if err != nil {
		return nil, err
	}
	l, err := loader.New(loader.Config{
		Logger:    a.log,
		Opener:    a.src,
		Lister:    disc,
		Publisher: a.publisher(),
		Metrics:   reg,
	})
	if err != nil {
		return nil, err
	}
	return l.Load(ctx, a.cfg.Data)
}
