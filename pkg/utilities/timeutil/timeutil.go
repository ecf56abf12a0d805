package timeutil

import (
	"encoding/json"
	"time"
)

// TimeUTC is Unix time in seconds, always UTC. It travels as RFC 3339 text so queue
// consumers need no conversion.
type TimeUTC struct {
	T int64
}

func NowUTC() TimeUTC {
	return FromTime(time.Now())
}

func FromTime(t time.Time) TimeUTC {
	return TimeUTC{T: t.UTC().Unix()}
}

func (t TimeUTC) Time() time.Time { return time.Unix(t.T, 0).UTC() }

func (t TimeUTC) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time().Format(time.RFC3339))
}

func (t *TimeUTC) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	*t = FromTime(parsed)
	return nil
}
