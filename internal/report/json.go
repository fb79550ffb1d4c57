package report

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Sentinel encodings for absent optional values.
const (
	sentinelUnknown     = `"unknown"`
	sentinelNever       = `"never"`
	sentinelUnavailable = `"unavailable"`
)

// MarshalJSON leaves out an unknown doorValue. Shutdown reports say nothing
// about the door, so they also leave out a lastOpenedAt of "never".
func (r Report) MarshalJSON() ([]byte, error) {
	type plain Report
	out := struct {
		plain
		Door         *Door   `json:"doorValue,omitempty"`
		LastOpenedAt *Millis `json:"lastOpenedAt,omitempty"`
	}{plain: plain(r)}
	if r.Door.Known {
		out.Door = &r.Door
	}
	if r.LastOpenedAt.Valid || r.Kind != KindShutdown {
		out.LastOpenedAt = &r.LastOpenedAt
	}
	return json.Marshal(out)
}

// MarshalJSON encodes a known door as 0/1 and an unknown one as "unknown".
func (d Door) MarshalJSON() ([]byte, error) {
	if !d.Known {
		return []byte(sentinelUnknown), nil
	}
	return []byte(strconv.Itoa(int(d.Value))), nil
}

// UnmarshalJSON accepts 0 or 1. Anything else decodes to unknown rather than
// failing, so older clients sending "Unknown" do not break a batch.
func (d *Door) UnmarshalJSON(data []byte) error {
	*d = Door{}
	f, ok := decodeNumber(data)
	if !ok {
		return nil
	}
	switch f {
	case 0:
		*d = KnownDoor(DoorOpen)
	case 1:
		*d = KnownDoor(DoorClosed)
	}
	return nil
}

// MarshalJSON encodes an unset timestamp as "never".
func (m Millis) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte(sentinelNever), nil
	}
	return []byte(strconv.FormatInt(m.Value, 10)), nil
}

// UnmarshalJSON treats -1, null, strings and negative values as never.
func (m *Millis) UnmarshalJSON(data []byte) error {
	*m = Millis{}
	f, ok := decodeNumber(data)
	if !ok || f < 0 {
		return nil
	}
	*m = Millis{Value: int64(f), Valid: true}
	return nil
}

// UnmarshalJSON decodes a sensor id, treating non-numeric input as 0 (absent).
func (s *SensorID) UnmarshalJSON(data []byte) error {
	*s = 0
	f, ok := decodeNumber(data)
	if !ok || f != math.Trunc(f) {
		return nil
	}
	*s = SensorID(f)
	return nil
}

// MarshalJSON encodes an unavailable coordinate as "unavailable".
func (c Coord) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte(sentinelUnavailable), nil
	}
	return strconv.AppendFloat(nil, c.Value, 'f', -1, 64), nil
}

// UnmarshalJSON accepts numbers and numeric strings; everything else
// ("N/A", "unavailable", null) decodes to unavailable.
func (c *Coord) UnmarshalJSON(data []byte) error {
	*c = Coord{}
	f, ok := decodeNumber(data)
	if !ok {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = v
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	*c = Some(f)
	return nil
}

func decodeNumber(data []byte) (float64, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] == '"' || bytes.Equal(data, []byte("null")) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return 0, false
	}
	return f, true
}

// DecodeBatch parses a request body into reports. A bare object is accepted
// as a batch of one for clients that predate array bodies.
func DecodeBatch(body []byte) ([]Report, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var r Report
		if err := json.Unmarshal(trimmed, &r); err != nil {
			return nil, err
		}
		return []Report{r}, nil
	}
	var batch []Report
	if err := json.Unmarshal(trimmed, &batch); err != nil {
		return nil, err
	}
	return batch, nil
}
