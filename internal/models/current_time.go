package models

import "time"

// CurrentTimeModel Current time specific model
type CurrentTimeModel struct {
	ReadableTime string `json:"readableTime"`
	Time         int64  `json:"time"`
	// ServiceDay is the day index of the served dataset, -1 outside its
	// production period.
	ServiceDay int `json:"serviceDay"`
}

// NewCurrentTime builds the entry for t. serviceDay is computed by the caller
// against the dataset calendar.
func NewCurrentTime(t time.Time, serviceDay int) CurrentTimeModel {
	return CurrentTimeModel{
		ReadableTime: t.Format(time.RFC3339),
		Time:         t.UnixNano() / int64(time.Millisecond),
		ServiceDay:   serviceDay,
	}
}
