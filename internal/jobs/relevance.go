package jobs

import (
	"sort"
	"strings"
)

// ProjectScore is the per-project scoring breakdown computed by
// scoreProject, grounded on
// original_source/Agents/project_selection/relevance_engine.py's
// calculate_overall_relevance weighting.
type ProjectScore struct {
	KeywordOverlap   float64
	TechnologyMatch  float64
	OverallScore     float64
}

const (
	weightKeywordOverlap  = 0.60
	weightTechnologyMatch = 0.40
)

// scoreProject combines keyword-overlap and technology-match into a single
// 0-100 relevance score. The domain-relevance and recency/complexity
// components the original also computes depend on fields (team_size,
// live_url, end_date) this core's Project type doesn't carry, so only the
// two components with enough data survive here; their weights are
// renormalized to still sum to 1.0.
func scoreProject(p Project, jobKeywords, requiredTechnologies []string) ProjectScore {
	keyword := keywordOverlapScore(p, jobKeywords)
	tech := technologyMatchScore(p, requiredTechnologies)
	overall := keyword*weightKeywordOverlap + tech*weightTechnologyMatch
	return ProjectScore{KeywordOverlap: keyword, TechnologyMatch: tech, OverallScore: overall}
}

func keywordOverlapScore(p Project, jobKeywords []string) float64 {
	if len(jobKeywords) == 0 {
		return 0
	}
	text := strings.ToLower(strings.Join(append([]string{p.Name, p.Description}, append(p.Technologies, p.Features...)...), " "))

	var matches float64
	for _, kw := range jobKeywords {
		kwLower := strings.ToLower(kw)
		if kwLower == "" {
			continue
		}
		if strings.Contains(text, kwLower) {
			matches++
			continue
		}
		words := strings.Fields(kwLower)
		if len(words) > 1 {
			for _, w := range words {
				if len(w) > 3 && strings.Contains(text, w) {
					matches += 0.5
					break
				}
			}
		}
	}
	coverage := (matches / float64(len(jobKeywords))) * 100
	return minFloat(100, coverage*1.5)
}

func technologyMatchScore(p Project, requiredTechnologies []string) float64 {
	if len(requiredTechnologies) == 0 {
		return 50
	}
	projectTechs := make([]string, len(p.Technologies))
	for i, t := range p.Technologies {
		projectTechs[i] = strings.ToLower(t)
	}
	var matches int
	for _, req := range requiredTechnologies {
		reqLower := strings.ToLower(req)
		for _, proj := range projectTechs {
			if strings.Contains(proj, reqLower) {
				matches++
				break
			}
		}
	}
	return (float64(matches) / float64(len(requiredTechnologies))) * 100
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// RankedProject pairs a project with its relevance score, per
// rank_projects' (project, scores) tuple contract.
type RankedProject struct {
	Project Project
	Score   ProjectScore
}

// rankProjects scores and sorts every project by overall relevance,
// highest first.
func rankProjects(projects []Project, jobKeywords, requiredTechnologies []string) []RankedProject {
	ranked := make([]RankedProject, len(projects))
	for i, p := range projects {
		ranked[i] = RankedProject{Project: p, Score: scoreProject(p, jobKeywords, requiredTechnologies)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score.OverallScore > ranked[j].Score.OverallScore
	})
	return ranked
}

// SwapRecommendation is one suggested resume-project substitution.
type SwapRecommendation struct {
	Remove      Project
	Add         Project
	RemoveScore float64
	AddScore    float64
	ScoreDelta  float64
	Reason      string
}

const minSwapImprovement = 15.0

// recommendProjectSwaps pairs the weakest current-resume project against the
// strongest off-resume alternative and recommends a swap whenever the score
// delta clears minSwapImprovement, per recommend_project_swaps.
func recommendProjectSwaps(current, all []Project, jobKeywords, requiredTechnologies []string) []SwapRecommendation {
	if len(current) == 0 {
		return nil
	}
	onResume := make(map[string]bool, len(current))
	for _, p := range current {
		onResume[p.ID] = true
	}

	currentRanked := rankProjects(current, jobKeywords, requiredTechnologies)
	var alternatives []Project
	for _, p := range all {
		if !onResume[p.ID] {
			alternatives = append(alternatives, p)
		}
	}
	if len(alternatives) == 0 {
		return nil
	}
	altRanked := rankProjects(alternatives, jobKeywords, requiredTechnologies)

	// Weakest current projects are the best swap candidates; sort ascending.
	sort.SliceStable(currentRanked, func(i, j int) bool {
		return currentRanked[i].Score.OverallScore < currentRanked[j].Score.OverallScore
	})

	var recs []SwapRecommendation
	usedAlt := make(map[string]bool, len(altRanked))
	for _, weak := range currentRanked {
		var best *RankedProject
		for i := range altRanked {
			if usedAlt[altRanked[i].Project.ID] {
				continue
			}
			best = &altRanked[i]
			break
		}
		if best == nil {
			break
		}
		delta := best.Score.OverallScore - weak.Score.OverallScore
		if delta < minSwapImprovement {
			continue
		}
		usedAlt[best.Project.ID] = true
		recs = append(recs, SwapRecommendation{
			Remove:      weak.Project,
			Add:         best.Project,
			RemoveScore: weak.Score.OverallScore,
			AddScore:    best.Score.OverallScore,
			ScoreDelta:  delta,
			Reason:      "higher keyword and technology overlap with the target job",
		})
	}
	return recs
}
