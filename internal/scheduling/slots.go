package scheduling

import "time"

// SlotWindows tiles the half-open range [start, end) with SlotDuration
// windows, starting at start. A trailing remainder shorter than a full slot
// is dropped. start == end is legal and yields no windows.
//
// The generator is pure; persisting the windows is the caller's concern.
func SlotWindows(start, end time.Time) ([]SlotWindow, error) {
	if end.Before(start) {
		return nil, ErrInvalidTimeRange
	}

	var windows []SlotWindow
	for t := start; !t.Add(SlotDuration).After(end); t = t.Add(SlotDuration) {
		windows = append(windows, SlotWindow{
			Start: t,
			End:   t.Add(SlotDuration),
		})
	}

	return windows, nil
}
