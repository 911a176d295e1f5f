package models

import "errors"

// Sentinel errors shared across stores and services
var (
	// ErrEdgeNotFound is returned when an edge id or identity key has no row
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrInvalidOdds is returned for American odds values no book would post
	ErrInvalidOdds = errors.New("invalid American odds")

	// ErrInvalidWeights is returned when a pillar weight vector does not sum to 1.0
	ErrInvalidWeights = errors.New("pillar weights must sum to 1.0")
)
