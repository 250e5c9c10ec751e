package granule

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/petzb/goes16ci/internal/metrics"
)

// NotFoundError reports a granule lookup with no candidate inside the
// tolerance window. NearestMiss is the distance of the closest candidate,
// zero when the date directory held no parseable file for the channel.
type NotFoundError struct {
	Channel     int
	When        time.Time
	Tolerance   time.Duration
	NearestMiss time.Duration
}

func (e *NotFoundError) Error() string {
	if e.NearestMiss == 0 {
		return fmt.Sprintf("no channel %d granule within %.0f minutes of %s: no candidate files",
			e.Channel, e.Tolerance.Minutes(), e.When.UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf("no channel %d granule within %.0f minutes of %s: nearest file misses by %.1f minutes",
		e.Channel, e.Tolerance.Minutes(), e.When.UTC().Format(time.RFC3339), e.NearestMiss.Minutes())
}

// Locator finds the granule file best matching a requested time.
type Locator struct {
	root      string
	tolerance time.Duration
	key       TimeKey
	logger    *slog.Logger
}

// NewLocator creates a Locator over a date-partitioned granule tree.
func NewLocator(root string, tolerance time.Duration, key TimeKey, logger *slog.Logger) *Locator {
	return &Locator{
		root:      root,
		tolerance: tolerance,
		key:       key,
		logger:    logger,
	}
}

// Locate returns the path of the channel's granule whose keyed timestamp is
// nearest to when. Candidates are the .nc files in the requested day's
// directory that carry the channel token; unparseable names are skipped
// with a warning. When the nearest candidate is farther than the tolerance,
// a *NotFoundError reports the miss distance.
func (l *Locator) Locate(when time.Time, channel int) (string, error) {
	dir := filepath.Join(l.root, when.UTC().Format("20060102"))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			metrics.IncGranuleSearchMisses()
			return "", &NotFoundError{Channel: channel, When: when, Tolerance: l.tolerance}
		}
		return "", fmt.Errorf("granule: reading %s: %w", dir, err)
	}

	token := fmt.Sprintf("C%02d_", channel)
	var (
		best     string
		bestDiff time.Duration = -1
	)
	// ReadDir sorts by name, so equal distances resolve to the first
	// candidate in sorted order.
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".nc") || !strings.Contains(name, token) {
			continue
		}
		stamps, err := ParseStamps(name)
		if err != nil {
			l.logger.Warn("skipping granule with malformed name", "file", name, "error", err)
			continue
		}
		diff := when.Sub(stamps.ByKey(l.key))
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff {
			best = name
			bestDiff = diff
		}
	}

	if bestDiff < 0 {
		metrics.IncGranuleSearchMisses()
		return "", &NotFoundError{Channel: channel, When: when, Tolerance: l.tolerance}
	}
	if bestDiff > l.tolerance {
		metrics.IncGranuleSearchMisses()
		return "", &NotFoundError{
			Channel:     channel,
			When:        when,
			Tolerance:   l.tolerance,
			NearestMiss: bestDiff,
		}
	}

	l.logger.Debug("granule located",
		"channel", channel,
		"requested", when.UTC().Format(time.RFC3339),
		"file", best,
		"distance_seconds", bestDiff.Seconds(),
	)
	return filepath.Join(dir, best), nil
}
