// Package granule locates and reads GOES-16 ABI L1b granule files.
//
// Granules live under root/YYYYMMDD/ and follow the NOAA object naming
// convention, e.g.
//
//	OR_ABI-L1b-RadC-M6C02_G16_s20240010001140_e20240010003513_c20240010003553.nc
//
// The trailing three fields carry the scan start, scan end, and file
// creation timestamps as a letter, %Y%j%H%M%S, and a tenth-of-second digit.
package granule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimeKey selects which embedded filename timestamp a lookup compares
// against. End time is the default, matching how downstream labels align
// with a completed scan.
type TimeKey int

const (
	TimeEnd TimeKey = iota
	TimeStart
	TimeCreated
)

// Stamps holds the three timestamps embedded in a granule filename.
type Stamps struct {
	Start   time.Time
	End     time.Time
	Created time.Time
}

// ByKey returns the timestamp selected by key.
func (s Stamps) ByKey(key TimeKey) time.Time {
	switch key {
	case TimeStart:
		return s.Start
	case TimeCreated:
		return s.Created
	default:
		return s.End
	}
}

var channelRE = regexp.MustCompile(`-M\d+C(\d{2})_`)

// ChannelFromName extracts the ABI band number from a granule filename.
func ChannelFromName(name string) (int, error) {
	m := channelRE.FindStringSubmatch(name)
	if m == nil {
		return 0, fmt.Errorf("granule: no channel token in %q", name)
	}
	ch, err := strconv.Atoi(m[1])
	if err != nil || ch < 1 || ch > 16 {
		return 0, fmt.Errorf("granule: invalid channel %q in %q", m[1], name)
	}
	return ch, nil
}

// ParseStamps extracts the start/end/creation timestamps from a granule
// filename. The final three underscore-separated fields each carry a
// leading letter tag and a trailing tenth-of-second digit, both stripped
// before parsing.
func ParseStamps(name string) (Stamps, error) {
	base := strings.TrimSuffix(name, ".nc")
	fields := strings.Split(base, "_")
	if len(fields) < 3 {
		return Stamps{}, fmt.Errorf("granule: malformed filename %q", name)
	}

	var s Stamps
	for _, f := range fields[len(fields)-3:] {
		if len(f) < 2 {
			return Stamps{}, fmt.Errorf("granule: malformed timestamp field %q in %q", f, name)
		}
		t, err := parseABITime(f[1 : len(f)-1])
		if err != nil {
			return Stamps{}, fmt.Errorf("granule: timestamp field %q in %q: %w", f, name, err)
		}
		switch f[0] {
		case 's':
			s.Start = t
		case 'e':
			s.End = t
		case 'c':
			s.Created = t
		default:
			return Stamps{}, fmt.Errorf("granule: unknown timestamp tag %q in %q", f[0], name)
		}
	}
	if s.Start.IsZero() || s.End.IsZero() || s.Created.IsZero() {
		return Stamps{}, fmt.Errorf("granule: incomplete timestamps in %q", name)
	}
	return s, nil
}

// parseABITime parses a YYYYJJJHHMMSS day-of-year timestamp as UTC.
func parseABITime(v string) (time.Time, error) {
	if len(v) != 13 {
		return time.Time{}, fmt.Errorf("want 13 digits, got %d", len(v))
	}
	year, err := strconv.Atoi(v[0:4])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid year %q", v[0:4])
	}
	doy, err := strconv.Atoi(v[4:7])
	if err != nil || doy < 1 || doy > 366 {
		return time.Time{}, fmt.Errorf("invalid day of year %q", v[4:7])
	}
	hour, err := strconv.Atoi(v[7:9])
	if err != nil || hour > 23 {
		return time.Time{}, fmt.Errorf("invalid hour %q", v[7:9])
	}
	min, err := strconv.Atoi(v[9:11])
	if err != nil || min > 59 {
		return time.Time{}, fmt.Errorf("invalid minute %q", v[9:11])
	}
	sec, err := strconv.Atoi(v[11:13])
	if err != nil || sec > 60 {
		return time.Time{}, fmt.Errorf("invalid second %q", v[11:13])
	}
	return time.Date(year, 1, 1, hour, min, sec, 0, time.UTC).AddDate(0, 0, doy-1), nil
}
