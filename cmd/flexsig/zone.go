package main

import (
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	currentZoneRe = regexp.MustCompile(`(?s)CURRENT TERROR ZONE.*?<B>(.*?)</B>`)
	nextZoneRe    = regexp.MustCompile(`(?s)NEXT TERROR ZONE.*?<B>(.*?)</B>`)
	tagRe         = regexp.MustCompile(`<[^>]*>`)
)

// ExtractZones reads the terror zone pair from either the JSON API or the
// HTML tracker page. Missing values stay at sentinel.
func ExtractZones(text, sentinel string) ZoneRotation {
	rot := NewZoneRotation(sentinel)

	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") {
		var raw map[string]any
		if err := json.Unmarshal([]byte(trimmed), &raw); err == nil {
			if v := zoneValue(raw["current"]); v != "" {
				rot.Current = v
			}
			if v := zoneValue(raw["next"]); v != "" {
				rot.Next = v
			}
			for _, key := range []string{"next_terror_time_utc", "next_at"} {
				if ts, ok := unixValue(raw[key]); ok {
					rot.NextAt = time.Unix(ts, 0).UTC()
					break
				}
			}
			return rot
		}
	}

	upper := strings.ToUpper(text)
	if m := currentZoneRe.FindStringSubmatch(upper); m != nil {
		if v := cleanZone(m[1]); v != "" {
			rot.Current = v
		}
	}
	if m := nextZoneRe.FindStringSubmatch(upper); m != nil {
		if v := cleanZone(m[1]); v != "" {
			rot.Next = v
		}
	}
	return rot
}

func cleanZone(s string) string {
	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// zoneValue accepts a zone name, a zone id, or a list of either.
func zoneValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := zoneValue(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		// some trackers nest the name under "name" or "zone"
		for _, key := range []string{"name", "zone"} {
			if s := zoneValue(t[key]); s != "" {
				return s
			}
		}
	}
	return ""
}

func unixValue(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		if t > 0 {
			return int64(t), true
		}
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}

// zoneSwitchAt is the next rotation time: the published one when present,
// otherwise the top of the next hour.
func zoneSwitchAt(rot ZoneRotation, now time.Time) time.Time {
	if !rot.NextAt.IsZero() && rot.NextAt.After(now) {
		return rot.NextAt
	}
	return now.Truncate(time.Hour).Add(time.Hour)
}

// timeRemaining formats the wait until the next rotation, e.g. "23m 05s".
func timeRemaining(rot ZoneRotation, now time.Time) string {
	d := zoneSwitchAt(rot, now).Sub(now).Round(time.Second)
	if d < 0 {
		d = 0
	}
	m := int(d / time.Minute)
	s := int((d % time.Minute) / time.Second)
	if m >= 60 {
		return fmt.Sprintf("%dh %02dm", m/60, m%60)
	}
	return fmt.Sprintf("%dm %02ds", m, s)
}
