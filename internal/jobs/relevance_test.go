package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordOverlapScore_FullMatchScoresHigh(t *testing.T) {
	p := Project{Name: "Realtime Chat", Description: "A websocket chat server", Technologies: []string{"Go", "Redis"}}
	score := keywordOverlapScore(p, []string{"websocket", "go", "redis"})
	assert.Greater(t, score, 80.0)
}

func TestKeywordOverlapScore_NoKeywordsIsZero(t *testing.T) {
	p := Project{Name: "X"}
	assert.Equal(t, 0.0, keywordOverlapScore(p, nil))
}

func TestTechnologyMatchScore_NoRequirementsIsNeutral(t *testing.T) {
	p := Project{Technologies: []string{"Python"}}
	assert.Equal(t, 50.0, technologyMatchScore(p, nil))
}

func TestTechnologyMatchScore_PartialMatch(t *testing.T) {
	p := Project{Technologies: []string{"Go", "Postgres"}}
	score := technologyMatchScore(p, []string{"go", "kubernetes"})
	assert.InDelta(t, 50.0, score, 0.01)
}

func TestRankProjects_SortsDescendingByOverallScore(t *testing.T) {
	strong := Project{ID: "p1", Name: "Go Microservices Platform", Technologies: []string{"Go", "Kubernetes"}}
	weak := Project{ID: "p2", Name: "Art Portfolio Site", Technologies: []string{"HTML"}}
	ranked := rankProjects([]Project{weak, strong}, []string{"go", "kubernetes", "microservices"}, []string{"go", "kubernetes"})
	require.Len(t, ranked, 2)
	assert.Equal(t, "p1", ranked[0].Project.ID)
	assert.GreaterOrEqual(t, ranked[0].Score.OverallScore, ranked[1].Score.OverallScore)
}

func TestRecommendProjectSwaps_RecommendsWhenImprovementClearsThreshold(t *testing.T) {
	weakCurrent := Project{ID: "current", Name: "Static Brochure Site", Technologies: []string{"HTML"}, OnResume: true}
	strongAlternative := Project{ID: "alt", Name: "Distributed Job Queue", Description: "Go-based priority queue with Kubernetes deployment", Technologies: []string{"Go", "Kubernetes"}}
	all := []Project{weakCurrent, strongAlternative}

	recs := recommendProjectSwaps([]Project{weakCurrent}, all, []string{"go", "kubernetes", "queue"}, []string{"go", "kubernetes"})
	require.Len(t, recs, 1)
	assert.Equal(t, "current", recs[0].Remove.ID)
	assert.Equal(t, "alt", recs[0].Add.ID)
	assert.GreaterOrEqual(t, recs[0].ScoreDelta, minSwapImprovement)
}

func TestRecommendProjectSwaps_NoneWhenNoCurrentProjects(t *testing.T) {
	recs := recommendProjectSwaps(nil, []Project{{ID: "alt"}}, []string{"go"}, nil)
	assert.Nil(t, recs)
}

func TestRecommendProjectSwaps_NoneWhenAlternativesDontClearThreshold(t *testing.T) {
	current := Project{ID: "current", Name: "Go Web API", Technologies: []string{"Go"}, OnResume: true}
	alt := Project{ID: "alt", Name: "Go CLI Tool", Technologies: []string{"Go"}}
	recs := recommendProjectSwaps([]Project{current}, []Project{current, alt}, []string{"go"}, []string{"go"})
	assert.Empty(t, recs)
}
