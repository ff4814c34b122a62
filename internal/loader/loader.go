// Package loader turns a dataset location into a queryable index: discover
// the newest snapshot when no location is given, open it, parse every line,
// build the index, and publish a manifest of what was loaded.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"as2org/internal/index"
	"as2org/internal/manifest"
	"as2org/internal/metrics"
	"as2org/internal/model"
	"as2org/internal/parser"
	"as2org/internal/snapshot"
	"as2org/internal/source"
)

const (
	stageDiscover = "discover"
	stageOpen     = "open"
	stageParse    = "parse"
	stagePublish  = "publish"
)

var ErrNoLister = errors.New("no location given and no snapshot lister configured")

type Config struct {
	Logger *slog.Logger
	Opener source.Opener

	// Optional.
	Lister    snapshot.Lister
	Publisher manifest.Publisher
	Metrics   *metrics.Registry
	Clock     clockwork.Clock
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Opener == nil {
		return fmt.Errorf("opener is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

type Loader struct {
	log *slog.Logger
	cfg Config
}

// Dataset is a loaded index together with the manifest describing it.
type Dataset struct {
	*index.Index
	Manifest manifest.Manifest
}

func New(cfg Config) (*Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Loader{log: cfg.Logger, cfg: cfg}, nil
}

// Load reads the dataset at location, or the most recent snapshot when
// location is empty. Any failure aborts the load; no partial index is
// returned.
func (l *Loader) Load(ctx context.Context, location string) (*Dataset, error) {
	start := l.cfg.Clock.Now()

	if location == "" {
		if l.cfg.Lister == nil {
			l.fail(stageDiscover)
			return nil, ErrNoLister
		}
		url, err := l.cfg.Lister.MostRecent(ctx)
		if err != nil {
			l.fail(stageDiscover)
			return nil, fmt.Errorf("discover snapshot: %w", err)
		}
		l.log.Info("loader: discovered most recent snapshot", "url", url)
		location = url
	}

	rc, err := l.cfg.Opener.Open(ctx, location)
	if err != nil {
		l.fail(stageOpen)
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer rc.Close()

	var asCount, orgCount int
	entries := make([]model.Entry, 0, 1024)
	err = parser.Scan(rc, func(e model.Entry) error {
		if e.Kind == model.KindAS {
			asCount++
		} else {
			orgCount++
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		l.fail(stageParse)
		var lineErr *parser.LineError
		if errors.As(err, &lineErr) {
			l.log.Error("loader: failed to parse dataset line", "location", location, "line", lineErr.Line, "raw", lineErr.Raw, "error", lineErr.Err)
		}
		return nil, fmt.Errorf("parse dataset %s: %w", location, err)
	}

	idx := index.Build(entries)
	stats := idx.Stats()

	man := manifest.Manifest{
		Location:            location,
		ASRecords:           stats.ASRecords,
		OrgRecords:          stats.OrgRecords,
		DuplicateASNs:       stats.DuplicateASNs,
		DuplicateOrgs:       stats.DuplicateOrgs,
		DanglingASNs:        stats.DanglingASNs,
		LoadedAtEpochSecond: l.cfg.Clock.Now().UTC().Unix(),
	}
	date, dated := snapshot.DateOf(location)
	if dated {
		man.SnapshotDate = date.Format("2006-01-02")
	}

	elapsed := l.cfg.Clock.Since(start)
	l.log.Info("loader: loaded dataset",
		"location", location,
		"as_lines", asCount,
		"org_lines", orgCount,
		"asns", stats.ASRecords,
		"orgs", stats.OrgRecords,
		"duration", elapsed,
	)
	if stats.DuplicateASNs > 0 || stats.DuplicateOrgs > 0 {
		l.log.Warn("loader: duplicate keys in dataset, later records replaced earlier ones",
			"duplicate_asns", stats.DuplicateASNs,
			"duplicate_orgs", stats.DuplicateOrgs,
		)
	}
	if stats.DanglingASNs > 0 {
		l.log.Warn("loader: AS records reference unknown organizations", "dangling_asns", stats.DanglingASNs)
	}

	if m := l.cfg.Metrics; m != nil {
		m.LoadsTotal.Inc()
		m.LoadDurationSec.Observe(elapsed.Seconds())
		m.RecordsParsed.WithLabelValues(model.KindAS.String()).Add(float64(asCount))
		m.RecordsParsed.WithLabelValues(model.KindOrg.String()).Add(float64(orgCount))
		m.DuplicateKeys.WithLabelValues(model.KindAS.String()).Add(float64(stats.DuplicateASNs))
		m.DuplicateKeys.WithLabelValues(model.KindOrg.String()).Add(float64(stats.DuplicateOrgs))
		m.IndexedASNs.Set(float64(stats.ASRecords))
		m.IndexedOrgs.Set(float64(stats.OrgRecords))
		m.DanglingASNs.Set(float64(stats.DanglingASNs))
		if dated {
			m.SnapshotAgeSec.Set(l.cfg.Clock.Since(date).Seconds())
		}
	}

	if l.cfg.Publisher != nil {
		if err := l.cfg.Publisher.PublishLatest(man); err != nil {
			l.fail(stagePublish)
			return nil, fmt.Errorf("publish manifest: %w", err)
		}
		l.log.Debug("loader: published manifest", "location", location)
	}

	return &Dataset{Index: idx, Manifest: man}, nil
}

func (l *Loader) fail(stage string) {
	if l.cfg.Metrics != nil {
		l.cfg.Metrics.LoadFailures.WithLabelValues(stage).Inc()
	}
}
