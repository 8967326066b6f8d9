// Package corpus describes the historical workouts the retriever searches.
package corpus

import (
	"fmt"
	"strings"
)

// Workout is one entry of the retrieval corpus.
type Workout struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ScoreType   string    `json:"score_type"`
	WorkoutType string    `json:"workout_type"`
	Track       string    `json:"track"`
	CreatedAt   string    `json:"created_at"`
	Embedding   []float32 `json:"-"`
}

// Text is the representation fed to the embedding model.
func (w Workout) Text() string {
	return fmt.Sprintf("%s - %s | Type: %s | Score: %s | Track: %s | Date: %s",
		w.Title, w.Description, w.WorkoutType, w.ScoreType, w.Track, w.CreatedAt)
}

type Category string

const (
	CategoryWarmup   Category = "warmup"
	CategoryCooldown Category = "cooldown"
	CategoryWorkout  Category = "workout"
	CategoryOther    Category = "other"
)

var (
	warmupKeywords   = []string{"pre-wod", "warmup", "mobility"}
	cooldownKeywords = []string{"cooldown", "recovery", "stretch"}
	knownTypes       = []string{"pre-wod", "warmup", "quality time", "open gym"}
)

// Categorize classifies a workout by its title, falling back to whether it is scored.
func Categorize(title, scoreType string) Category {
	t := strings.ToLower(strings.TrimSpace(title))
	switch {
	case containsAny(t, warmupKeywords):
		return CategoryWarmup
	case containsAny(t, cooldownKeywords):
		return CategoryCooldown
	case strings.TrimSpace(scoreType) != "":
		return CategoryWorkout
	}
	return CategoryOther
}

func (w Workout) Category() Category {
	return Categorize(w.Title, w.ScoreType)
}

// WorkoutType derives the type label stored with a workout.
func WorkoutType(scoreType, title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	for _, known := range knownTypes {
		if strings.Contains(t, known) {
			return known
		}
	}
	if scoreType != "" {
		return scoreType
	}
	return "N/A"
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
