package corpus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		title, scoreType string
		want             Category
	}{
		{"Pre-WOD Thruster Prep", "", CategoryWarmup},
		{"Shoulder Mobility", "time", CategoryWarmup},
		{"Cooldown Row", "", CategoryCooldown},
		{"Recovery Flush", "", CategoryCooldown},
		{"Fran", "time", CategoryWorkout},
		{"Open Gym", " ", CategoryOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Categorize(tt.title, tt.scoreType), tt.title)
	}
	assert.Equal(t, CategoryWorkout, Workout{Title: "Grace", ScoreType: "time"}.Category())
}

func TestWorkoutType(t *testing.T) {
	assert.Equal(t, "pre-wod", WorkoutType("", "Pre-WOD Mobility"))
	assert.Equal(t, "open gym", WorkoutType("time", "Saturday Open Gym"))
	assert.Equal(t, "rounds + reps", WorkoutType("rounds + reps", "Cindy"))
	assert.Equal(t, "N/A", WorkoutType("", "Skill Work"))
}

func TestText(t *testing.T) {
	w := Workout{
		Title: "Fran", Description: "21-15-9 thrusters and pull-ups",
		WorkoutType: "time", ScoreType: "time", Track: "CrossFit", CreatedAt: "2017-01-02",
	}
	assert.Equal(t,
		"Fran - 21-15-9 thrusters and pull-ups | Type: time | Score: time | Track: CrossFit | Date: 2017-01-02",
		w.Text())
}
