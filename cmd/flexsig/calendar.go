package main

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
)

// BuildZoneCalendar renders the rotation as an iCal feed with one event for
// the current zone and one for the next, so the rotation shows up in any
// calendar app.
func BuildZoneCalendar(rot ZoneRotation, now time.Time) string {
	now = now.UTC()
	switchAt := zoneSwitchAt(rot, now)
	currentStart := now.Truncate(time.Hour)
	if !currentStart.Before(switchAt) {
		currentStart = switchAt.Add(-time.Hour)
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//flexsig//terror zones//EN")

	addZoneEvent(cal, "current", rot.Current, currentStart, switchAt, now)
	addZoneEvent(cal, "next", rot.Next, switchAt, switchAt.Add(time.Hour), now)

	return cal.Serialize()
}

func addZoneEvent(cal *ics.Calendar, kind, zone string, start, end, stamp time.Time) {
	event := cal.AddEvent(fmt.Sprintf("tz-%s-%d@flexsig", kind, start.Unix()))
	event.SetDtStampTime(stamp)
	event.SetStartAt(start)
	event.SetEndAt(end)
	event.SetSummary("Terror Zone: " + zone)
}
