package snapshot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://publicdata.caida.org/datasets/as-organizations"

	LatestFile = "latest.as-org2info.jsonl.gz"
	dateLayout = "20060102"
)

var filePattern = regexp.MustCompile(`(\d{8})\.as-org2info\.jsonl\.gz`)

// ErrNoSnapshots means the listing was fetched but named no dated snapshot.
var ErrNoSnapshots = errors.New("no as-org2info snapshots in listing")

// Snapshot is one dated dataset file.
type Snapshot struct {
	URL  string    `json:"url"`
	Date time.Time `json:"date"`
}

func (s Snapshot) File() string {
	return s.URL[strings.LastIndex(s.URL, "/")+1:]
}

// Fetcher returns the text body of a location.
type Fetcher interface {
	ReadString(ctx context.Context, location string) (string, error)
}

// Lister is the read side of Discovery.
type Lister interface {
	List(ctx context.Context) ([]Snapshot, error)
	MostRecent(ctx context.Context) (string, error)
	LatestURL() string
}

type Discovery struct {
	baseURL string
	fetch   Fetcher
}

func NewDiscovery(baseURL string, fetch Fetcher) (*Discovery, error) {
	if fetch == nil {
		return nil, fmt.Errorf("fetcher is nil")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Discovery{baseURL: strings.TrimRight(baseURL, "/"), fetch: fetch}, nil
}

func (d *Discovery) BaseURL() string { return d.baseURL }

// LatestURL returns the alias the host resolves to the current snapshot.
// Nothing is fetched; validity is left to whoever requests it.
func (d *Discovery) LatestURL() string {
	return d.baseURL + "/" + LatestFile
}

// List returns the snapshots named in the listing, oldest first. Entries that
// share a date keep listing order; repeated file names keep their first
// occurrence.
func (d *Discovery) List(ctx context.Context) ([]Snapshot, error) {
	body, err := d.fetch.ReadString(ctx, d.baseURL)
	if err != nil {
		return nil, fmt.Errorf("fetch listing: %w", err)
	}
	return d.parseListing(body), nil
}

// MostRecent returns the URL of the newest dated snapshot.
func (d *Discovery) MostRecent(ctx context.Context) (string, error) {
	snaps, err := d.List(ctx)
	if err != nil {
		return "", err
	}
	if len(snaps) == 0 {
		return "", fmt.Errorf("%s: %w", d.baseURL, ErrNoSnapshots)
	}
	return snaps[len(snaps)-1].URL, nil
}

func (d *Discovery) parseListing(body string) []Snapshot {
	seen := make(map[string]struct{})
	snaps := make([]Snapshot, 0)
	for _, m := range filePattern.FindAllStringSubmatch(body, -1) {
		file := m[0]
		if _, ok := seen[file]; ok {
			continue
		}
		seen[file] = struct{}{}
		date, err := time.Parse(dateLayout, m[1])
		if err != nil {
			continue
		}
		snaps = append(snaps, Snapshot{URL: d.baseURL + "/" + file, Date: date})
	}
	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].Date.Before(snaps[j].Date)
	})
	return snaps
}

// DateOf extracts the snapshot date from a dataset file name or URL.
func DateOf(location string) (time.Time, bool) {
	base := location[strings.LastIndex(location, "/")+1:]
	m := filePattern.FindStringSubmatch(base)
	if m == nil {
		return time.Time{}, false
	}
	date, err := time.Parse(dateLayout, m[1])
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}
