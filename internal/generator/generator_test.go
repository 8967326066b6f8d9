package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umeshdangat/workout-ai/internal/apperr"
	"github.com/umeshdangat/workout-ai/internal/llm"
	"github.com/umeshdangat/workout-ai/internal/plan"
	"github.com/umeshdangat/workout-ai/internal/retrieval"
)

type reply struct {
	text string
	err  error
}

// scriptedModel answers with replies in order, repeating the last one.
type scriptedModel struct {
	mu      sync.Mutex
	replies []reply
	prompts []llm.Prompt
}

func (m *scriptedModel) Complete(_ context.Context, p llm.Prompt) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, p)
	i := len(m.prompts) - 1
	if i >= len(m.replies) {
		i = len(m.replies) - 1
	}
	return m.replies[i].text, m.replies[i].err
}

func (m *scriptedModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func (m *scriptedModel) lastUserMessage(t *testing.T, call int) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.Greater(t, len(m.prompts), call)
	msgs := m.prompts[call].Messages
	return msgs[len(msgs)-1].Content
}

type fakeSearcher struct {
	results []retrieval.Result
	err     error
	queries []string
	topKs   []int
}

func (s *fakeSearcher) Search(_ context.Context, query string, topK int) ([]retrieval.Result, error) {
	s.queries = append(s.queries, query)
	s.topKs = append(s.topKs, topK)
	return s.results, s.err
}

func testProfile() *plan.Profile {
	return &plan.Profile{
		Name:            "Alex",
		Age:             32,
		Experience:      plan.Intermediate,
		Goals:           []string{"strength", "endurance"},
		Equipment:       []string{"barbell", "rower"},
		SessionsPerWeek: 4,
		DurationWeeks:   8,
	}
}

func testWeek(days int, label string) plan.Week {
	w := plan.Week{}
	for d := 1; d <= days; d++ {
		w.Days = append(w.Days, plan.Day{Sessions: []plan.Session{{
			Type: plan.SessionWOD,
			Details: plan.SessionDetail{
				Description:      fmt.Sprintf("%s day %d: 5 rounds of 10 thrusters", label, d),
				IntendedStimulus: "moderate",
			},
		}}})
	}
	return w
}

func testPlan(weeks, days int) plan.Plan {
	p := plan.Plan{Name: "Engine Builder"}
	for i := 1; i <= weeks; i++ {
		p.Weeks = append(p.Weeks, testWeek(days, fmt.Sprintf("week %d", i)))
	}
	return p
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func referenceWorkouts() []retrieval.Result {
	return []retrieval.Result{
		{Rank: 1, Title: "Fran", Description: "21-15-9 Thrusters and Pull-ups", WorkoutType: "Time", ScoreType: "Time"},
		{Rank: 2, Title: "Helen", Description: "3 rounds: 400m run, 21 KB swings, 12 pull-ups", WorkoutType: "Time", ScoreType: "Time"},
	}
}

func TestGenerateWholePlan(t *testing.T) {
	model := &scriptedModel{replies: []reply{{text: mustJSON(t, testPlan(8, 7))}}}
	search := &fakeSearcher{results: referenceWorkouts()}
	g := New(search, model, Options{}, nil, zerolog.Nop())

	p, err := g.Generate(context.Background(), testProfile())
	require.NoError(t, err)
	assert.Len(t, p.Weeks, 8)
	assert.Equal(t, "Engine Builder", p.Name)
	assert.Equal(t, 1, model.calls())

	assert.Equal(t, []string{"strength, endurance intermediate"}, search.queries)
	assert.Equal(t, []int{DefaultTopK}, search.topKs)

	prompt := model.lastUserMessage(t, 0)
	assert.Contains(t, prompt, "Fran - 21-15-9 Thrusters and Pull-ups")
	assert.Contains(t, prompt, "Exactly 8 weeks")
	assert.Contains(t, prompt, "exactly 7 days")
	assert.Contains(t, prompt, "Available equipment: barbell, rower")
	assert.Contains(t, prompt, "Session duration: 75-90 minutes")
	assert.Contains(t, prompt, `"intended_stimulus"`)
	assert.Equal(t, plan.PlanSchema, model.prompts[0].Schema)
}

func TestGenerateRetriesOnceAfterMalformedOutput(t *testing.T) {
	model := &scriptedModel{replies: []reply{
		{text: "Sure! Here is your plan, give me a second."},
		{text: "```json\n" + mustJSON(t, testPlan(8, 7)) + "\n```"},
	}}
	g := New(&fakeSearcher{}, model, Options{}, nil, zerolog.Nop())

	p, err := g.Generate(context.Background(), testProfile())
	require.NoError(t, err)
	assert.Len(t, p.Weeks, 8)
	assert.Equal(t, 2, model.calls())
	assert.Contains(t, model.lastUserMessage(t, 1), "Your previous response was rejected")
}

func TestGenerateFailsAfterSecondViolation(t *testing.T) {
	model := &scriptedModel{replies: []reply{{text: mustJSON(t, testPlan(3, 7))}}}
	g := New(&fakeSearcher{}, model, Options{}, nil, zerolog.Nop())

	_, err := g.Generate(context.Background(), testProfile())
	require.Error(t, err)
	assert.Equal(t, apperr.GenerationFailed, apperr.KindOf(err))
	assert.Contains(t, apperr.DetailOf(err), "expected 8 weeks, got 3")
	assert.Equal(t, 2, model.calls())
	assert.Contains(t, model.lastUserMessage(t, 1), "expected 8 weeks, got 3")
}

func TestGenerateDoesNotRetryUpstreamErrors(t *testing.T) {
	for _, kind := range []apperr.Kind{apperr.UpstreamTimeout, apperr.UpstreamUnavailable} {
		t.Run(string(kind), func(t *testing.T) {
			model := &scriptedModel{replies: []reply{{err: apperr.New(kind, "model call failed")}}}
			g := New(&fakeSearcher{}, model, Options{}, nil, zerolog.Nop())

			_, err := g.Generate(context.Background(), testProfile())
			require.Error(t, err)
			assert.Equal(t, kind, apperr.KindOf(err))
			assert.Equal(t, 1, model.calls())
		})
	}
}

func TestGenerateRejectsInvalidProfile(t *testing.T) {
	model := &scriptedModel{replies: []reply{{text: "{}"}}}
	search := &fakeSearcher{}
	g := New(search, model, Options{}, nil, zerolog.Nop())

	profile := testProfile()
	profile.DurationWeeks = 0
	_, err := g.Generate(context.Background(), profile)
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
	assert.Zero(t, model.calls())
	assert.Empty(t, search.queries)
}

func TestGenerateNormalizesProfile(t *testing.T) {
	model := &scriptedModel{replies: []reply{{text: mustJSON(t, testPlan(8, 7))}}}
	g := New(&fakeSearcher{results: referenceWorkouts()}, model, Options{}, nil, zerolog.Nop())

	profile := testProfile()
	profile.Name = "  Alex "
	profile.Experience = " Intermediate"
	profile.Goals = []string{"strength", " Strength ", "endurance"}
	_, err := g.Generate(context.Background(), profile)
	require.NoError(t, err)
	assert.Equal(t, "Alex", profile.Name)
	assert.Equal(t, plan.Intermediate, profile.Experience)
	assert.Equal(t, []string{"strength", "endurance"}, profile.Goals)
}

func TestGeneratePropagatesRetrievalErrors(t *testing.T) {
	model := &scriptedModel{replies: []reply{{text: "{}"}}}
	g := New(&fakeSearcher{err: apperr.New(apperr.IndexUnavailable, "no index loaded")}, model, Options{}, nil, zerolog.Nop())

	_, err := g.Generate(context.Background(), testProfile())
	assert.Equal(t, apperr.IndexUnavailable, apperr.KindOf(err))
	assert.Zero(t, model.calls())
}

func TestGenerateDefaultsPlanName(t *testing.T) {
	p := testPlan(8, 7)
	p.Name = ""
	model := &scriptedModel{replies: []reply{{text: mustJSON(t, p)}}}
	g := New(&fakeSearcher{}, model, Options{}, nil, zerolog.Nop())

	out, err := g.Generate(context.Background(), testProfile())
	require.NoError(t, err)
	assert.Equal(t, "Alex's Plan", out.Name)
}

func TestGenerateSessionsDaysMode(t *testing.T) {
	model := &scriptedModel{replies: []reply{
		{text: mustJSON(t, testPlan(8, 7))},
		{text: mustJSON(t, testPlan(8, 4))},
	}}
	g := New(&fakeSearcher{}, model, Options{Days: plan.DaysSessions}, nil, zerolog.Nop())

	p, err := g.Generate(context.Background(), testProfile())
	require.NoError(t, err)
	assert.Len(t, p.Weeks[0].Days, 4)
	assert.Equal(t, 2, model.calls())
	assert.Contains(t, model.lastUserMessage(t, 1), "expected 4 days, got 7")
}

func TestGenerateWeekByWeek(t *testing.T) {
	model := &scriptedModel{replies: []reply{
		{text: mustJSON(t, testWeek(7, "week 1"))},
		{text: mustJSON(t, testWeek(7, "week 2"))},
		{text: mustJSON(t, testWeek(7, "week 3"))},
	}}
	g := New(&fakeSearcher{results: referenceWorkouts()}, model, Options{Mode: ModeWeekByWeek}, nil, zerolog.Nop())

	profile := testProfile()
	profile.DurationWeeks = 3
	p, err := g.Generate(context.Background(), profile)
	require.NoError(t, err)

	assert.Equal(t, "Alex's Plan", p.Name)
	require.Len(t, p.Weeks, 3)
	assert.Contains(t, p.Weeks[2].Days[0].Sessions[0].Details.Description, "week 3")
	assert.Equal(t, 3, model.calls())

	first := model.lastUserMessage(t, 0)
	assert.Contains(t, first, "Create week 1 of a 3-week training plan")
	assert.Contains(t, first, firstWeekContinuity)
	assert.Equal(t, plan.WeekSchema, model.prompts[0].Schema)

	second := model.lastUserMessage(t, 1)
	assert.Contains(t, second, "Day 1: WOD - week 1 day 1: 5 rounds of 10 thrusters | Stimulus: moderate;")
}

func TestGenerateWeekByWeekFailsOnBadWeek(t *testing.T) {
	model := &scriptedModel{replies: []reply{
		{text: mustJSON(t, testWeek(7, "week 1"))},
		{text: mustJSON(t, testWeek(5, "week 2"))},
	}}
	g := New(&fakeSearcher{}, model, Options{Mode: ModeWeekByWeek}, nil, zerolog.Nop())

	profile := testProfile()
	profile.DurationWeeks = 2
	_, err := g.Generate(context.Background(), profile)
	require.Error(t, err)
	assert.Equal(t, apperr.GenerationFailed, apperr.KindOf(err))
	assert.ErrorContains(t, err, "week 2")
	assert.Equal(t, 3, model.calls())
}

func TestGenerateHonorsCanceledContext(t *testing.T) {
	model := &scriptedModel{replies: []reply{{text: mustJSON(t, testPlan(8, 7))}}}
	g := New(&fakeSearcher{}, model, Options{}, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Generate(ctx, testProfile())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, model.calls())
}
