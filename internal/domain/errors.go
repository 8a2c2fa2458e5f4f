package domain

import "errors"

var (
	// ErrNoQuestionsAvailable is returned when the question pool yields zero
	// questions for the requested filter. Call sites wrap it with the topic
	// filter that produced it.
	ErrNoQuestionsAvailable = errors.New("no questions available")
	// ErrSessionNotFound covers both a missing session and one owned by a
	// different learner, so existence of other users' sessions never leaks.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionNotActive is returned for submit/end against a terminal
	// session; clients redirect to results instead of retrying.
	ErrSessionNotActive = errors.New("session is not active")
	// ErrSessionNotCompleted is returned when a challenge completion is
	// recorded against a session that has not finished.
	ErrSessionNotCompleted = errors.New("session is not completed")
	// ErrQuestionNotFound indicates a submitted question ID has no pool record.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrAlreadyAnswered rejects a duplicate submission for the same
	// (session, question) pair.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrSkipNotAllowed is returned when the session policy forbids skipping.
	ErrSkipNotAllowed = errors.New("skipping is not allowed for this session")
	// ErrChallengeNotFound indicates a stale or unknown challenge identifier.
	ErrChallengeNotFound = errors.New("challenge not found")
	// ErrTemplateNotFound indicates a stale or unknown template identifier.
	ErrTemplateNotFound = errors.New("assessment template not found")
	// ErrNoFreezesAvailable is returned when a streak freeze is requested
	// with none left.
	ErrNoFreezesAvailable = errors.New("no streak freezes available")
)
