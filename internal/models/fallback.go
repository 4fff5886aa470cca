package models

// ReadingOrPlaceholder returns r, or the "Not Connected" reading when the fetch failed
func ReadingOrPlaceholder(r *Reading, err error) *Reading {
	if err != nil || r == nil {
		return NotConnectedReading()
	}
	return r
}

// SeriesOrEmpty returns readings, or an empty series when the fetch failed
func SeriesOrEmpty(readings []Reading, err error) []Reading {
	if err != nil || readings == nil {
		return []Reading{}
	}
	return readings
}

// StatusOrDisconnected returns status, or the disconnected record when the fetch failed
func StatusOrDisconnected(status *DeviceStatus, err error) *DeviceStatus {
	if err != nil || status == nil {
		return DisconnectedStatus()
	}
	return status
}
