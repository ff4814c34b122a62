package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"as2org/internal/config"
	"as2org/internal/model"
	"as2org/internal/sink"
)

const enrichFileName = "enriched.jsonl"

func newEnrichCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Read AS numbers from stdin, one per line, and write their details as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := a.load(cmd.Context(), nil)
			if err != nil {
				return err
			}
			w, err := a.enrichWriter(cmd)
			if err != nil {
				return err
			}

			var written, missing int
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for lineNo := 1; scanner.Scan(); lineNo++ {
				line := strings.TrimSpace(scanner.Text())
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				asn, err := model.ParseASN(line)
				if err != nil {
					return fmt.Errorf("stdin line %d: %w", lineNo, err)
				}
				info, ok := ds.ASInfo(asn)
				if !ok {
					a.log.Debug("enrich: AS number not found", "asn", asn)
					missing++
					continue
				}
				if err := w.Append(info); err != nil {
					return fmt.Errorf("write AS%d: %w", asn, err)
				}
				written++
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}

			a.log.Info("enrich: done", "written", written, "missing", missing, "sink", a.cfg.EnrichSink)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&a.cfg.EnrichSink, "enrich-sink", a.cfg.EnrichSink, "where to write results besides stdout: none|file|kafka|both")
	flags.StringVar(&a.cfg.EnrichDir, "enrich-dir", a.cfg.EnrichDir, "directory for the file sink")
	flags.StringVar(&a.cfg.TopicEnrich, "topic-enrich", a.cfg.TopicEnrich, "kafka topic for the kafka sink")
	return cmd
}

// enrichWriter writes to stdout when no sink is configured, otherwise to the
// configured sinks only.
func (a *app) enrichWriter(cmd *cobra.Command) (sink.Writer, error) {
	var ws []sink.Writer
	if a.cfg.EnrichSink == config.SinkFile || a.cfg.EnrichSink == config.SinkBoth {
		fw, err := sink.NewFileWriter(a.cfg.EnrichDir, enrichFileName)
		if err != nil {
			return nil, err
		}
		a.log.Debug("enrich: writing to file", "path", fw.Path())
		ws = append(ws, fw)
	}
	if a.cfg.EnrichSink == config.SinkKafka || a.cfg.EnrichSink == config.SinkBoth {
		ws = append(ws, sink.NewKafkaWriter(a.cfg.KafkaBootstrap, a.cfg.TopicEnrich))
	}
	if len(ws) == 0 {
		return sink.NewStreamWriter(cmd.OutOrStdout()), nil
	}
	return sink.NewMultiWriter(ws...), nil
}
