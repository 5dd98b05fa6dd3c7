package core

import (
	"sort"
	"strings"
	"time"

	"github.com/propelhq/propel/pkg/models"
)

// RecallWeights tunes the factors of the knowledge relevance score. The
// exact weighting is configuration, not a constant baked into call
// sites; DefaultRecallWeights documents the shipped balance.
type RecallWeights struct {
	Description float64 `yaml:"description" mapstructure:"description"`
	Tags        float64 `yaml:"tags" mapstructure:"tags"`
	TaskType    float64 `yaml:"task_type" mapstructure:"task_type"`
	Recency     float64 `yaml:"recency" mapstructure:"recency"`
	Complexity  float64 `yaml:"complexity" mapstructure:"complexity"`
}

// DefaultRecallWeights returns the shipped weighting. The factors sum
// to 1 so a perfect match scores 1.0.
func DefaultRecallWeights() RecallWeights {
	return RecallWeights{
		Description: 0.30,
		Tags:        0.25,
		TaskType:    0.20,
		Recency:     0.15,
		Complexity:  0.10,
	}
}

// recencyHorizon is the age at which the recency factor reaches zero.
const recencyHorizon = 30 * 24 * time.Hour

// ScoreKnowledge computes the relevance of one candidate to a query at
// the given reference time. Pure: same inputs, same score.
func ScoreKnowledge(query models.KnowledgeQuery, candidate models.Knowledge, now time.Time, weights RecallWeights) float64 {
	score := weights.Description * descriptionSimilarity(query.Description, candidate)
	score += weights.Tags * tagOverlap(query.Tags, candidate.Tags)
	score += weights.TaskType * taskTypeMatch(query.TaskType, candidate.TaskType)
	score += weights.Recency * recencyFactor(candidate.Timestamp, now)
	score += weights.Complexity * complexityAlignment(query.Complexity, candidate.Complexity)
	return score
}

// RankKnowledge scores and orders candidates descending by relevance.
// Candidates must be passed in insertion order: the sort is stable, so
// equal scores keep that order and recall stays reproducible.
func RankKnowledge(query models.KnowledgeQuery, candidates []models.Knowledge, now time.Time, weights RecallWeights) []models.ScoredKnowledge {
	scored := make([]models.ScoredKnowledge, len(candidates))
	for i, candidate := range candidates {
		scored[i] = models.ScoredKnowledge{
			Knowledge: candidate,
			Score:     ScoreKnowledge(query, candidate, now, weights),
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored
}

// descriptionSimilarity measures token overlap between the query
// description and the candidate's approach and learnings.
func descriptionSimilarity(description string, candidate models.Knowledge) float64 {
	queryTokens := tokenize(description)
	if len(queryTokens) == 0 {
		return 0
	}
	candidateTokens := make(map[string]bool)
	for token := range tokenize(candidate.Approach) {
		candidateTokens[token] = true
	}
	for token := range tokenize(candidate.Learnings) {
		candidateTokens[token] = true
	}

	matched := 0
	for token := range queryTokens {
		if candidateTokens[token] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}

func tagOverlap(queryTags, candidateTags []string) float64 {
	if len(queryTags) == 0 {
		return 0
	}
	candidateSet := make(map[string]bool, len(candidateTags))
	for _, tag := range candidateTags {
		candidateSet[strings.ToLower(tag)] = true
	}
	matched := 0
	for _, tag := range queryTags {
		if candidateSet[strings.ToLower(tag)] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTags))
}

// taskTypeMatch scores 1.0 for an exact match and 0.5 for a partial one
// (one type name containing the other, e.g. "bug" and "bugfix").
func taskTypeMatch(queryType, candidateType string) float64 {
	if queryType == "" || candidateType == "" {
		return 0
	}
	q := strings.ToLower(queryType)
	c := strings.ToLower(candidateType)
	switch {
	case q == c:
		return 1.0
	case strings.Contains(q, c) || strings.Contains(c, q):
		return 0.5
	default:
		return 0
	}
}

// recencyFactor decays linearly from 1.0 (now) to 0 at recencyHorizon.
func recencyFactor(timestamp, now time.Time) float64 {
	age := now.Sub(timestamp)
	if age <= 0 {
		return 1.0
	}
	if age >= recencyHorizon {
		return 0
	}
	return 1.0 - float64(age)/float64(recencyHorizon)
}

// complexityAlignment rewards candidates whose recorded complexity is
// close to the query's on the 1-10 scale.
func complexityAlignment(queryComplexity, candidateComplexity int) float64 {
	if queryComplexity == 0 || candidateComplexity == 0 {
		return 0
	}
	diff := queryComplexity - candidateComplexity
	if diff < 0 {
		diff = -diff
	}
	if diff >= 10 {
		return 0
	}
	return 1.0 - float64(diff)/10.0
}

func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, field := range strings.Fields(strings.ToLower(s)) {
		token := strings.Trim(field, ".,;:!?()[]{}\"'")
		if len(token) > 2 {
			tokens[token] = true
		}
	}
	return tokens
}
