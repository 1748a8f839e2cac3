package config

import "errors"

var (
	// ErrEmptyStoreDir is returned when the store directory is empty.
	ErrEmptyStoreDir = errors.New("store.dir cannot be empty")
	// ErrInitialExceedsMax is returned when the initial mmap size exceeds the configured ceiling.
	ErrInitialExceedsMax = errors.New("store.initial_mmap_size cannot exceed store.max_mmap_size")
	// ErrInvalidConcurrency is returned when ingest concurrency is not greater than 0.
	ErrInvalidConcurrency = errors.New("ingest.concurrency must be greater than 0")
	// ErrInvalidPerHostDelay is returned when the per-host pacing delay is negative.
	ErrInvalidPerHostDelay = errors.New("ingest.per_host_delay cannot be negative")
	// ErrUnknownHashAlgorithm is returned when store.hash_algorithm names
	// an algorithm the store has no Hasher for.
	ErrUnknownHashAlgorithm = errors.New("store.hash_algorithm must be \"xxhash64\"")
	// ErrInvalidReadAheadEdges is returned when the link-stream read-ahead
	// buffer size is negative.
	ErrInvalidReadAheadEdges = errors.New("ingest.read_ahead_edges cannot be negative")
)
