package fingerprint

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// ResolveTimezone fills in the offset of tz at the given instant. The offset
// uses the getTimezoneOffset sign: minutes to add to local time to reach UTC.
// An explicit offset is kept as is.
func ResolveTimezone(tz Timezone, at time.Time) (Timezone, error) {
	loc, err := time.LoadLocation(tz.Zone)
	if err != nil {
		return tz, fmt.Errorf("loading zone %q: %w", tz.Zone, err)
	}
	if tz.Offset == nil {
		_, secs := at.In(loc).Zone()
		off := -secs / 60
		tz.Offset = &off
	}
	if tz.Locale == "" {
		tz.Locale = "en-US"
	}
	return tz, nil
}
