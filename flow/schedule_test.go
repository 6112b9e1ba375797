package flow

import (
	"testing"
	"time"

	"github.com/converzap/converzap/pkg/kernel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestScheduleShouldRun(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	for name, tc := range map[string]struct {
		isActive  bool
		nextRunAt *time.Time
		want      bool
	}{
		"due in the past":     {true, &past, true},
		"due exactly now":     {true, &now, true},
		"due in the future":   {true, &future, false},
		"inactive":            {false, &past, false},
		"never scheduled":     {true, nil, false},
	} {
		t.Run(name, func(t *testing.T) {
			schedule := &Schedule{
				ID:        kernel.NewScheduleID(uuid.New().String()),
				IsActive:  tc.isActive,
				NextRunAt: tc.nextRunAt,
			}
			require.Equal(t, tc.want, schedule.ShouldRun(now))
		})
	}
}

func TestScheduleIsValid(t *testing.T) {
	schedule := &Schedule{
		ID:             kernel.NewScheduleID(uuid.New().String()),
		FlowID:         kernel.NewFlowID(uuid.New().String()),
		CronExpression: "0 9 * * 1",
		ContactIDs:     []kernel.ContactID{"contact-1"},
	}
	require.True(t, schedule.IsValid())

	noContacts := *schedule
	noContacts.ContactIDs = nil
	require.False(t, noContacts.IsValid())

	noCron := *schedule
	noCron.CronExpression = ""
	require.False(t, noCron.IsValid())
}
