package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucascarsonbrown/Inword/internal/kb"
)

func TestExtractGeneral(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/extract/general", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req GeneralRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Started a new job at TechCorp.", req.Entry.Content)
		assert.Equal(t, []string{"freelance designer"}, req.Current.WorkSchool)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(kb.GeneralSection{
			WorkSchool: []string{"works at TechCorp"},
		})
	}))
	defer server.Close()

	svc := NewHTTPService(Config{Endpoint: server.URL, APIKey: "test-key"})
	out, err := svc.ExtractGeneral(context.Background(), &GeneralRequest{
		Entry:   Entry{Content: "Started a new job at TechCorp.", CreatedAt: time.Now()},
		Current: kb.GeneralSection{WorkSchool: []string{"freelance designer"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"works at TechCorp"}, out.WorkSchool)
}

func TestExtractRecentStateFillsWindow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/extract/state_recent", r.URL.Path)

		var req StateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, kb.RecentWindow, req.Window)
		assert.Equal(t, []string{"deadlines"}, req.Current.Stressors)

		mood := 4.0
		json.NewEncoder(w).Encode(kb.RecentStateUpdate{
			DominantEmotions: []string{"hopeful"},
			MoodScoreAvg:     &mood,
		})
	}))
	defer server.Close()

	// The request leaves Window unset; the client fills in the fixed window.
	svc := NewHTTPService(Config{Endpoint: server.URL})
	out, err := svc.ExtractRecentState(context.Background(), &StateRequest{
		Entries: []Entry{{Content: "Feeling hopeful."}},
		Current: kb.RecentState{Window: kb.RecentWindow, Stressors: []string{"deadlines"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"hopeful"}, out.DominantEmotions)
	require.NotNil(t, out.MoodScoreAvg)
	assert.Equal(t, 4.0, *out.MoodScoreAvg)
}

func TestExtractGoalsProgress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/extract/goals_progress", r.URL.Path)

		var req GoalsRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if assert.Len(t, req.Goals, 1) {
			assert.Equal(t, "Run a half marathon", req.Goals[0].Title)
		}
		if assert.Len(t, req.Current.Goals, 1) {
			assert.Equal(t, 25, req.Current.Goals[0].PercentComplete)
		}

		json.NewEncoder(w).Encode(kb.GoalsProgressSection{
			Goals: []kb.GoalProgress{
				{GoalID: "g1", ProgressNotes: "ran 10k", PercentComplete: 40, Momentum: 7},
			},
			UpdatedAt: time.Now().UTC(),
		})
	}))
	defer server.Close()

	svc := NewHTTPService(Config{Endpoint: server.URL})
	out, err := svc.ExtractGoalsProgress(context.Background(), &GoalsRequest{
		Entries: []Entry{{Content: "Ran 10k today."}},
		Goals:   []GoalRef{{ID: "g1", Title: "Run a half marathon"}},
		Current: kb.GoalsProgressSection{
			Goals: []kb.GoalProgress{{GoalID: "g1", PercentComplete: 25}},
		},
	})
	require.NoError(t, err)
	require.Len(t, out.Goals, 1)
	assert.Equal(t, "g1", out.Goals[0].GoalID)
	assert.Equal(t, 40, out.Goals[0].PercentComplete)
}

func TestExtractServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("model overloaded"))
	}))
	defer server.Close()

	svc := NewHTTPService(Config{Endpoint: server.URL})
	_, err := svc.ExtractGeneral(context.Background(), &GeneralRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestExtractMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	svc := NewHTTPService(Config{Endpoint: server.URL})
	_, err := svc.ExtractGeneral(context.Background(), &GeneralRequest{})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestExtractRejectsOutOfRangeMood(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mood := 9.0
		json.NewEncoder(w).Encode(kb.RecentStateUpdate{MoodScoreAvg: &mood})
	}))
	defer server.Close()

	svc := NewHTTPService(Config{Endpoint: server.URL})
	_, err := svc.ExtractRecentState(context.Background(), &StateRequest{})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestExtractRejectsBadGoals(t *testing.T) {
	testCases := []struct {
		name    string
		section kb.GoalsProgressSection
	}{
		{
			name:    "missing id",
			section: kb.GoalsProgressSection{Goals: []kb.GoalProgress{{PercentComplete: 10}}},
		},
		{
			name: "duplicate id",
			section: kb.GoalsProgressSection{Goals: []kb.GoalProgress{
				{GoalID: "g1"}, {GoalID: "g1"},
			}},
		},
		{
			name:    "percent out of range",
			section: kb.GoalsProgressSection{Goals: []kb.GoalProgress{{GoalID: "g1", PercentComplete: 150}}},
		},
		{
			name:    "momentum out of range",
			section: kb.GoalsProgressSection{Goals: []kb.GoalProgress{{GoalID: "g1", Momentum: 99}}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(tc.section)
			}))
			defer server.Close()

			svc := NewHTTPService(Config{Endpoint: server.URL})
			_, err := svc.ExtractGoalsProgress(context.Background(), &GoalsRequest{})
			assert.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestExtractNoAuthHeaderWithoutKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(kb.GeneralSection{})
	}))
	defer server.Close()

	svc := NewHTTPService(Config{Endpoint: server.URL})
	_, err := svc.ExtractGeneral(context.Background(), &GeneralRequest{})
	assert.NoError(t, err)
}

func TestValidateStateUpdateBounds(t *testing.T) {
	assert.NoError(t, ValidateStateUpdate(&kb.RecentStateUpdate{}))

	for _, v := range []float64{1, 3.25, 5} {
		mood := v
		assert.NoError(t, ValidateStateUpdate(&kb.RecentStateUpdate{MoodScoreAvg: &mood}))
	}
	for _, v := range []float64{0.5, 5.5, -1} {
		mood := v
		assert.Error(t, ValidateStateUpdate(&kb.RecentStateUpdate{MoodScoreAvg: &mood}))
	}
}
