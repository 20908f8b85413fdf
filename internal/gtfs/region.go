package gtfs

// RegionBounds returns the center and span of the box enclosing every stop
// point with coordinates.
func (g *Generation) RegionBounds() (lat, lon, latSpan, lonSpan float64) {
	var minLat, maxLat, minLon, maxLon float64
	first := true
	for _, sp := range g.Dataset.StopPoints {
		if sp.Lat == 0 && sp.Lon == 0 {
			continue
		}
		if first {
			minLat, maxLat = sp.Lat, sp.Lat
			minLon, maxLon = sp.Lon, sp.Lon
			first = false
			continue
		}
		minLat = min(minLat, sp.Lat)
		maxLat = max(maxLat, sp.Lat)
		minLon = min(minLon, sp.Lon)
		maxLon = max(maxLon, sp.Lon)
	}

	lat = (minLat + maxLat) / 2
	lon = (minLon + maxLon) / 2
	latSpan = maxLat - minLat
	lonSpan = maxLon - minLon
	return lat, lon, latSpan, lonSpan
}
