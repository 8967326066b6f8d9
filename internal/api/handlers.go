package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/umeshdangat/workout-ai/internal/apperr"
	"github.com/umeshdangat/workout-ai/internal/plan"
)

// SearchSimilarWorkouts handles
// GET /workouts/search_similar_workouts?query=&top_k=&include_warmups=&include_cooldowns=
func (a *API) SearchSimilarWorkouts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	topK, err := intParam(q.Get("top_k"), defaultSearchTopK)
	if err != nil {
		a.respondWithError(w, r, apperr.New(apperr.InvalidInput, "top_k must be an integer"))
		return
	}
	warmups, err := boolParam(q.Get("include_warmups"), true)
	if err != nil {
		a.respondWithError(w, r, apperr.New(apperr.InvalidInput, "include_warmups must be true or false"))
		return
	}
	cooldowns, err := boolParam(q.Get("include_cooldowns"), true)
	if err != nil {
		a.respondWithError(w, r, apperr.New(apperr.InvalidInput, "include_cooldowns must be true or false"))
		return
	}

	resp, err := a.search.SearchCategorized(r.Context(), q.Get("query"), topK, warmups, cooldowns)
	if err != nil {
		a.respondWithError(w, r, err)
		return
	}
	a.respondWithJSON(w, http.StatusOK, resp)
}

// GeneratePlan creates and stores a plan for the posted profile.
func (a *API) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	var profile plan.Profile
	if err := decodeBody(w, r, &profile); err != nil {
		a.respondWithError(w, r, err)
		return
	}
	p, err := a.gen.Generate(r.Context(), &profile)
	if err != nil {
		a.respondWithError(w, r, err)
		return
	}
	rec, err := a.store.SavePlan(r.Context(), plan.Record{Plan: p, Profile: &profile})
	if err != nil {
		a.respondWithError(w, r, err)
		return
	}
	a.respondWithJSON(w, http.StatusCreated, rec)
}

type adaptRequest struct {
	Plan plan.Plan `json:"plan"`
	plan.Feedback
}

// AdaptPlan revises a plan sent in the request body without storing it.
func (a *API) AdaptPlan(w http.ResponseWriter, r *http.Request) {
	var req adaptRequest
	if err := decodeBody(w, r, &req); err != nil {
		a.respondWithError(w, r, err)
		return
	}
	out, err := a.adapter.Adapt(r.Context(), req.Plan, req.Feedback)
	if err != nil {
		a.respondWithError(w, r, err)
		return
	}
	a.respondWithJSON(w, http.StatusOK, out)
}

func (a *API) GetPlan(w http.ResponseWriter, r *http.Request) {
	rec, err := a.store.GetPlan(r.Context(), chi.URLParam(r, "planId"))
	if err != nil {
		a.respondWithError(w, r, err)
		return
	}
	a.respondWithJSON(w, http.StatusOK, rec)
}

func (a *API) GetPlanRevision(w http.ResponseWriter, r *http.Request) {
	rev, err := strconv.Atoi(chi.URLParam(r, "revision"))
	if err != nil || rev < 1 {
		a.respondWithError(w, r, apperr.New(apperr.InvalidInput, "revision must be a positive integer"))
		return
	}
	rec, err := a.store.GetPlanRevision(r.Context(), chi.URLParam(r, "planId"), rev)
	if err != nil {
		a.respondWithError(w, r, err)
		return
	}
	a.respondWithJSON(w, http.StatusOK, rec)
}

// AdaptStoredPlan revises the latest revision of a stored plan and stores
// the result as a new revision.
func (a *API) AdaptStoredPlan(w http.ResponseWriter, r *http.Request) {
	var fb plan.Feedback
	if err := decodeBody(w, r, &fb); err != nil {
		a.respondWithError(w, r, err)
		return
	}
	current, err := a.store.GetPlan(r.Context(), chi.URLParam(r, "planId"))
	if err != nil {
		a.respondWithError(w, r, err)
		return
	}
	out, err := a.adapter.Adapt(r.Context(), current.Plan, fb)
	if err != nil {
		a.respondWithError(w, r, err)
		return
	}
	rec, err := a.store.SavePlan(r.Context(), plan.Record{
		ID:       current.ID,
		Plan:     out,
		Profile:  current.Profile,
		Feedback: &fb,
	})
	if err != nil {
		a.respondWithError(w, r, err)
		return
	}
	a.respondWithJSON(w, http.StatusCreated, rec)
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func boolParam(s string, def bool) (bool, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseBool(s)
}
