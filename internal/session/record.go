package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Record is a session as the discovery feed describes it. The feed is loosely
// shaped: timestamps arrive as unix seconds, RFC 3339 strings or not at all.
type Record struct {
	ID          string    `json:"id"`
	SessionName string    `json:"session_name"`
	LastCapture Timestamp `json:"last_capture"`
	CreatedAt   Timestamp `json:"created_at"`
}

// feedEnvelope covers both the pull response ({"sessions": [...]}) and the
// push message ({"type": "sessions", "sessions": [...]}).
type feedEnvelope struct {
	Type     string            `json:"type"`
	Sessions []json.RawMessage `json:"sessions"`
}

// DecodeRecords parses a discovery payload. Only a payload that is not a JSON
// object is an error; individual malformed records or fields degrade to
// defaults so one bad entry cannot hide the rest of the snapshot.
func DecodeRecords(data []byte) ([]Record, error) {
	var env feedEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode sessions payload: %w", err)
	}
	if env.Type != "" && env.Type != "sessions" {
		return nil, fmt.Errorf("decode sessions payload: unexpected type %q", env.Type)
	}
	out := make([]Record, 0, len(env.Sessions))
	for _, raw := range env.Sessions {
		var r Record
		if err := json.Unmarshal(raw, &r); err != nil {
			// Salvage the id and name if only a field was off.
			var loose struct {
				ID          any `json:"id"`
				SessionName any `json:"session_name"`
			}
			if json.Unmarshal(raw, &loose) != nil {
				continue
			}
			r = Record{ID: looseString(loose.ID), SessionName: looseString(loose.SessionName)}
		}
		out = append(out, r)
	}
	return out, nil
}

func looseString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}

// Normalize converts feed records into canonical sessions. Records with no id
// are dropped; a missing name becomes "Unknown"; a missing time becomes now.
func Normalize(records []Record, now time.Time) []Session {
	out := make([]Session, 0, len(records))
	for _, r := range records {
		if r.ID == "" {
			continue
		}
		s := Session{ID: r.ID, Name: r.SessionName, LastActivity: now}
		if s.Name == "" {
			s.Name = UnknownName
		}
		switch {
		case !r.LastCapture.IsZero():
			s.LastActivity = r.LastCapture.Time
		case !r.CreatedAt.IsZero():
			s.LastActivity = r.CreatedAt.Time
		}
		out = append(out, s)
	}
	return out
}

// Timestamp accepts unix seconds (integer or fractional), an RFC 3339 string
// or null. Anything else decodes to the zero time rather than failing.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	t.Time = time.Time{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			t.Time = ts
			return nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			t.Time = fromUnix(f)
		}
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return nil
	}
	t.Time = fromUnix(f)
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time)
}

func fromUnix(f float64) time.Time {
	if f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return time.Time{}
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9))
}
