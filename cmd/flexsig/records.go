package main

import "time"

// LadderStats is the flat record drawn on the flex signature. Every field is
// always set, either to scraped text or to a sentinel.
type LadderStats struct {
	Rank       string
	Level      string
	Class      string
	Experience string
	LastActive string
	Identity   string
}

func NewLadderStats(sentinel, identity string) LadderStats {
	return LadderStats{
		Rank:       sentinel,
		Level:      sentinel,
		Class:      sentinel,
		Experience: sentinel,
		LastActive: sentinel,
		Identity:   identity,
	}
}

// ErroredLadderStats is what gets rendered when the ladder page could not be
// fetched at all.
func ErroredLadderStats(errSentinel, identity string) LadderStats {
	return NewLadderStats(errSentinel, identity)
}

// ZoneRotation is the current/next terror zone pair. NextAt is zero when the
// source does not say when the zone switches.
type ZoneRotation struct {
	Current string
	Next    string
	NextAt  time.Time
}

func NewZoneRotation(sentinel string) ZoneRotation {
	return ZoneRotation{Current: sentinel, Next: sentinel}
}

func ErroredZoneRotation(errSentinel string) ZoneRotation {
	return NewZoneRotation(errSentinel)
}
