package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewCurrentTime(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Skip("timezone database unavailable")
	}
	now := time.Date(2024, 1, 8, 7, 0, 0, 0, loc)

	model := NewCurrentTime(now, 7)
	assert.Equal(t, "2024-01-08T07:00:00-08:00", model.ReadableTime)
	assert.Equal(t, now.UnixMilli(), model.Time)
	assert.Equal(t, 7, model.ServiceDay)
}
