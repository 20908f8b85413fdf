package models

// AgencyCoverage represents the geographical coverage area of a transit agency
type AgencyCoverage struct {
	AgencyID string  `json:"agencyId"`
	Lat      float64 `json:"lat"`
	LatSpan  float64 `json:"latSpan"`
	Lon      float64 `json:"lon"`
	LonSpan  float64 `json:"lonSpan"`
}

func NewAgencyCoverage(agencyID string, lat, latSpan, lon, lonSpan float64) AgencyCoverage {
	return AgencyCoverage{
		AgencyID: agencyID,
		Lat:      lat,
		LatSpan:  latSpan,
		Lon:      lon,
		LonSpan:  lonSpan,
	}
}

type AgencyReference struct {
	ID       string `json:"id" groups:"basic,detailed"`
	Name     string `json:"name" groups:"basic,detailed"`
	Timezone string `json:"timezone" groups:"basic,detailed"`
	URL      string `json:"url" groups:"detailed"`
}

func NewAgencyReference(id, name, url, timezone string) AgencyReference {
	return AgencyReference{
		ID:       id,
		Name:     name,
		URL:      url,
		Timezone: timezone,
	}
}
