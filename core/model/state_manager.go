package model

import (
	"sync"

	"github.com/YuminosukeSato/tabsearch/pkg/errors"
)

// StateManager tracks the fitted state of an estimator in a thread-safe manner.
// Estimators embed it by composition:
//
//	type StandardScaler struct {
//	    state *model.StateManager
//	    ...
//	}
type StateManager struct {
	mu        sync.RWMutex
	name      string
	fitted    bool
	nFeatures int
	nSamples  int
}

// NewStateManager creates a StateManager for the estimator called name.
// The name appears in NotFittedError messages.
func NewStateManager(name string) *StateManager {
	return &StateManager{name: name}
}

// IsFitted returns whether the model has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitted
}

// SetFitted marks the model as fitted with the given training shape.
func (s *StateManager) SetFitted(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = true
	s.nFeatures = nFeatures
	s.nSamples = nSamples
}

// Reset resets the fitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = false
	s.nFeatures = 0
	s.nSamples = 0
}

// GetDimensions returns the number of features and samples seen during fitting.
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nFeatures, s.nSamples
}

// RequireFitted returns a NotFittedError naming method if the model has not been fitted.
func (s *StateManager) RequireFitted(method string) error {
	if !s.IsFitted() {
		return errors.NewNotFittedError(s.name, method)
	}
	return nil
}

// RequireUnfitted guards stages whose statistics are frozen after the first
// Fit. A second Fit fails with a ValueError marked ErrAlreadyFitted.
func (s *StateManager) RequireUnfitted() error {
	if s.IsFitted() {
		return errors.NewAlreadyFittedError(s.name + ".Fit")
	}
	return nil
}

// RequireFeatures returns a DimensionError if X does not have the number of
// columns seen during fitting.
func (s *StateManager) RequireFeatures(op string, cols int) error {
	nFeatures, _ := s.GetDimensions()
	if cols != nFeatures {
		return errors.NewDimensionError(op, nFeatures, cols, 1)
	}
	return nil
}
