package types

import "time"

// ResourceCounts is shared by plans and applies.
type ResourceCounts struct {
	Additions    int
	Changes      int
	Destructions int
}

type Plan struct {
	ID               string
	Status           string
	HasChanges       bool
	LogReadURL       string
	Resources        ResourceCounts
	StartedAt        time.Time
	FinishedAt       time.Time
	StatusTimestamps map[string]string
}

type Apply struct {
	ID               string
	Status           string
	LogReadURL       string
	Resources        ResourceCounts
	StatusTimestamps map[string]string
}

type CostEstimate struct {
	ID                      string
	Status                  string
	ErrorMessage            string
	MatchedResourcesCount   int
	UnmatchedResourcesCount int
	PriorMonthlyCost        string
	ProposedMonthlyCost     string
	DeltaMonthlyCost        string
}
