package util

import "errors"

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrCorpusNotFound     = errors.New("knowledge base not found")
	ErrEmptyCorpus        = errors.New("knowledge base has no content")
	ErrInvalidAnswerShape = errors.New("answer shape does not match question type")
	ErrSessionCompleted   = errors.New("training session already completed")
	ErrOperationInFlight  = errors.New("another operation is in progress for this session")
	ErrNotAwaitingLogin   = errors.New("session is not awaiting login")
	ErrPermissionDenied   = errors.New("permission denied")
)
