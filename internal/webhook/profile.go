package webhook

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Profile is one deployment's field rules. Exactly one profile is active per
// process; profiles reject each other's inputs and are never combined.
type Profile struct {
	Name string
	// Phone must match from and to in full.
	Phone *regexp.Regexp
	// TimestampSuffix must terminate ts; it is replaced by Offset before parsing.
	TimestampSuffix string
	Offset          string
}

var (
	// ProfileE164 accepts generic E.164 numbers and UTC "Z" timestamps.
	ProfileE164 = Profile{
		Name:            "e164",
		Phone:           regexp.MustCompile(`^\+\d+$`),
		TimestampSuffix: "Z",
		Offset:          "+00:00",
	}

	// ProfileIndia accepts +91 numbers with ten digits and IST timestamps.
	ProfileIndia = Profile{
		Name:            "in",
		Phone:           regexp.MustCompile(`^\+91\d{10}$`),
		TimestampSuffix: "+05:30",
		Offset:          "+05:30",
	}

	profiles = map[string]Profile{
		ProfileE164.Name:  ProfileE164,
		ProfileIndia.Name: ProfileIndia,
	}
)

// ProfileByName returns the named profile (case-insensitive).
func ProfileByName(name string) (Profile, error) {
	p, ok := profiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, fmt.Errorf("unknown validation profile %q (known: %s)", name, strings.Join(ProfileNames(), ", "))
	}
	return p, nil
}

// ProfileNames lists the known profiles in sorted order.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidPhone reports whether s matches the profile's phone pattern.
func (p Profile) ValidPhone(s string) bool {
	return p.Phone.MatchString(s)
}

// timestampLayouts are the ISO-8601 forms accepted once the profile suffix
// has been replaced by a numeric offset: date and time joined by T or a
// space, with hour, minute or second precision. Fractional seconds are
// accepted after the seconds field by time.Parse itself.
var timestampLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04Z07:00",
	"2006-01-02T15Z07:00",
	"2006-01-02 15Z07:00",
}

// ParseTimestamp checks the suffix and parses ts as an ISO-8601 timestamp.
func (p Profile) ParseTimestamp(ts string) (time.Time, error) {
	if !strings.HasSuffix(ts, p.TimestampSuffix) {
		return time.Time{}, fmt.Errorf("timestamp %q must end with %q", ts, p.TimestampSuffix)
	}
	normalized := strings.TrimSuffix(ts, p.TimestampSuffix) + p.Offset

	var err error
	for _, layout := range timestampLayouts {
		var t time.Time
		if t, err = time.Parse(layout, normalized); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q is not ISO-8601: %w", ts, err)
}
