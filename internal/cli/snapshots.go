package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"as2org/internal/config"
	"as2org/internal/manifest"
	"as2org/internal/snapshot"
)

func newSnapshotsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots",
		Short: "List the dated snapshots available at the base URL, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			disc, err := a.discovery()
			if err != nil {
				return err
			}
			snaps, err := disc.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range snaps {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", s.Date.Format("2006-01-02"), s.URL)
			}
			return nil
		},
	}
}

func newLatestCmd(a *app) *cobra.Command {
	var resolve bool
	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Print the URL of the latest snapshot alias",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			disc, err := a.discovery()
			if err != nil {
				return err
			}
			url := disc.LatestURL()
			if resolve {
				if url, err = disc.MostRecent(cmd.Context()); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
	cmd.Flags().BoolVar(&resolve, "resolve", false, "print the most recent dated snapshot instead of the alias")
	return cmd
}

func newFetchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch [URL]",
		Short: "Download a snapshot file (the most recent one by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := a.cfg.Data
			if len(args) == 1 {
				url = args[0]
			}
			if url == "" {
				disc, err := a.discovery()
				if err != nil {
					return err
				}
				if url, err = disc.MostRecent(cmd.Context()); err != nil {
					return err
				}
			}

			a.log.Info("fetch: downloading snapshot", "url", url, "dir", a.cfg.DownloadDir)
			path, err := snapshot.Download(cmd.Context(), nil, a.cfg.DownloadDir, url)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&a.cfg.DownloadDir, "dir", a.cfg.DownloadDir, "directory to save snapshots into")
	return cmd
}

func newManifestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "manifest",
		Short: "Print the last published load manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var r manifest.Reader
			switch a.cfg.ManifestSink {
			case config.SinkFile, config.SinkBoth:
				r = manifest.NewFilesystemManifest(a.cfg.ManifestDir)
			case config.SinkKafka:
				r = manifest.NewKafkaReader(a.cfg.KafkaBootstrap, a.cfg.TopicManifest, manifest.DefaultKey)
			default:
				return fmt.Errorf("no manifest sink configured (set --manifest-sink)")
			}
			m, err := r.ReadLatest()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(&m)
		},
	}
}
