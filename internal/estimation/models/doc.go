// Package models provides the concrete sensor models shipped with the
// estimator: barometric height, magnetic heading and GPS position/velocity.
// Each model binds to its own update-message type and observes a slice of
// the standard state layout; each file also exports the instantiated channel
// type and its constructor.
package models
