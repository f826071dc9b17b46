// Package domain defines flashcards, study programs, user statistics and
// achievements, together with the error taxonomy and the Clock used by the
// review pipeline. It has no storage or transport dependencies.
package domain
