package escalation

import (
	"time"

	"github.com/kailas-cloud/medrag/internal/domain/match"
	"github.com/kailas-cloud/medrag/internal/domain/scope"
)

// State is a step of the escalation state machine:
// Pending -> Searching* (chain order) -> FallbackLLM -> Satisfied | Exhausted.
type State string

const (
	Pending           State = "pending"
	SearchingPatient  State = "searching_patient"
	SearchingFacility State = "searching_facility"
	SearchingGeneral  State = "searching_general"
	FallbackLLM       State = "fallback_llm"
	Satisfied         State = "satisfied"
	Exhausted         State = "exhausted"
)

// SearchState maps a scope kind to the state that searches it.
func SearchState(k scope.Kind) State {
	switch k {
	case scope.KindPatient:
		return SearchingPatient
	case scope.KindFacilityShared:
		return SearchingFacility
	case scope.KindGeneral:
		return SearchingGeneral
	}
	return Pending
}

// Tier names the level a query was satisfied at.
type Tier string

const (
	TierNone     Tier = ""
	TierPatient  Tier = "patient"
	TierFacility Tier = "facility"
	TierGeneral  Tier = "general"
	TierLLM      Tier = "llm"
)

// TierOf maps a scope kind to its tier.
func TierOf(k scope.Kind) Tier {
	switch k {
	case scope.KindPatient:
		return TierPatient
	case scope.KindFacilityShared:
		return TierFacility
	case scope.KindGeneral:
		return TierGeneral
	}
	return TierNone
}

// Outcome is what happened at one tier.
type Outcome string

const (
	OutcomeSatisfied    Outcome = "satisfied"
	OutcomeInsufficient Outcome = "insufficient"
	OutcomeEmpty        Outcome = "empty"
	OutcomeTimeout      Outcome = "timeout"
	OutcomeUnavailable  Outcome = "unavailable"
)

// TierReport is the latency breakdown entry for one searched tier.
type TierReport struct {
	Tier    Tier
	Scope   string
	Outcome Outcome
	Matches int
	Latency time.Duration
}

// Result is the terminal output of the router for one query.
// Results are shared by the cache and must be treated as read-only.
type Result struct {
	Matches         []match.ScoredMatch
	State           State
	SatisfiedAt     Tier
	UsedLLMFallback bool
	LLMText         string
	LLMTokens       int
	Tiers           []TierReport
	LLMLatency      time.Duration
	Total           time.Duration
}

// BestScore returns the highest match score, or 0 with no matches.
func (r *Result) BestScore() float64 {
	best, ok := match.Best(r.Matches)
	if !ok {
		return 0
	}
	return best.Score()
}
