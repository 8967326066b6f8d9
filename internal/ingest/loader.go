// Package ingest loads SugarWOD workout exports, embeds them and stores the
// result as the retrieval corpus.
package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/umeshdangat/workout-ai/internal/corpus"
)

const (
	unknownTitle = "Unknown Workout"
	unknownTrack = "Unknown Track"
)

type sugarWOD struct {
	ID         string `json:"id"`
	Attributes struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		ScoreType   string `json:"score_type"`
		CreatedAt   string `json:"created_at"`
		Track       struct {
			ID string `json:"id"`
		} `json:"track"`
	} `json:"attributes"`
}

// LoadTracks reads a track id to name mapping.
func LoadTracks(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read track mapping: %w", err)
	}
	tracks := map[string]string{}
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, fmt.Errorf("failed to parse track mapping %s: %w", path, err)
	}
	return tracks, nil
}

// LoadDir reads every workouts*.json file in dir in name order. Files that
// are not a JSON list are skipped with a warning. Repeated ids keep their
// first occurrence.
func LoadDir(dir string, tracks map[string]string, log zerolog.Logger) ([]corpus.Workout, error) {
	files, err := filepath.Glob(filepath.Join(dir, "workouts*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list workout files: %w", err)
	}
	sort.Strings(files)

	seen := map[string]bool{}
	var workouts []corpus.Workout
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		var raw []sugarWOD
		if err := json.Unmarshal(data, &raw); err != nil {
			log.Warn().Err(err).Str("file", filepath.Base(file)).Msg("skipping corrupt workout file")
			continue
		}
		added := 0
		for _, r := range raw {
			if r.ID == "" || seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			workouts = append(workouts, toWorkout(r, tracks))
			added++
		}
		log.Debug().Str("file", filepath.Base(file)).Int("workouts", added).Msg("loaded workout file")
	}
	return workouts, nil
}

func toWorkout(r sugarWOD, tracks map[string]string) corpus.Workout {
	a := r.Attributes
	title := strings.TrimSpace(a.Title)
	if title == "" {
		title = unknownTitle
	}
	scoreType := strings.ToLower(strings.TrimSpace(a.ScoreType))
	track, ok := tracks[a.Track.ID]
	if !ok {
		track = unknownTrack
	}
	return corpus.Workout{
		ID:          r.ID,
		Title:       title,
		Description: cleanDescription(a.Description),
		ScoreType:   scoreType,
		WorkoutType: corpus.WorkoutType(scoreType, title),
		Track:       track,
		CreatedAt:   a.CreatedAt,
	}
}
