package timetable

// Reconcile assigns arrival and departure candidates to stops in place.
//
// Both candidate lists are read strictly left to right with one cursor each.
// At every stop the pending arrival is taken when departures are exhausted,
// when it is before or same as the pending departure, or when it sits in the
// last hour of the day while the departure already rolled past midnight.
// Otherwise it stays pending for the next stop. The pending departure is then
// taken unconditionally. There is no backtracking: an arrival that never
// satisfies the ordering is forced onto the first stop reached after the
// departures run out.
func Reconcile(stops StopSequence, arrivals, departures []TimeOfDay) {
	ai, di := 0, 0

	for i := range stops {
		stop := &stops[i]

		if ai < len(arrivals) {
			next := arrivals[ai]
			if di == len(departures) || takesArrival(next, departures[di]) {
				stop.ArrivalTime = &next
				ai++
			}
		}

		if di < len(departures) {
			dep := departures[di]
			stop.DepartureTime = &dep
			di++
		}
	}
}

func takesArrival(arrival, departure TimeOfDay) bool {
	if arrival.IsBeforeOrSame(departure) {
		return true
	}
	// midnight rollover
	return arrival.Hour >= 23 && departure.Hour < arrival.Hour
}
