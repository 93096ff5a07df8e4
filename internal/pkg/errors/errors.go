package errors

import (
	"errors"
	"fmt"
)

// Every pipeline failure is reported as one of a small closed set of
// kinds so the HTTP layer can map it without inspecting internals.
var (
	ErrChunking     = errors.New("chunking error")
	ErrEmbedding    = errors.New("embedding error")
	ErrVectorStore  = errors.New("vector store error")
	ErrNotFound     = errors.New("not found")
	ErrInvalid      = errors.New("invalid")
	ErrUnauthorized = errors.New("unauthorized")
)

func Chunking(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrChunking, fmt.Sprintf(format, args...))
}

func Embedding(cause error, format string, args ...interface{}) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrEmbedding, fmt.Sprintf(format, args...))
	}
	return fmt.Errorf("%w: %s: %w", ErrEmbedding, fmt.Sprintf(format, args...), cause)
}

func VectorStore(cause error, format string, args ...interface{}) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrVectorStore, fmt.Sprintf(format, args...))
	}
	return fmt.Errorf("%w: %s: %w", ErrVectorStore, fmt.Sprintf(format, args...), cause)
}

func IsChunking(err error) bool {
	return errors.Is(err, ErrChunking)
}

func IsEmbedding(err error) bool {
	return errors.Is(err, ErrEmbedding)
}

func IsVectorStore(err error) bool {
	return errors.Is(err, ErrVectorStore)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
