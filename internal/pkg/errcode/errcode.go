package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrUnauthorized
	ErrNotFound
	ErrInvalid
	ErrChunking
	ErrEmbedding
	ErrVectorStore
)
