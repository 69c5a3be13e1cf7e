package llm

import "context"

// Client abstracts a vision-capable LLM provider used by the pipeline.
// Implementations must be concurrency-safe if used across goroutines.
type Client interface {
	// AnalyzePhoto takes raw image bytes and returns a single JSON string per
	// the photo-analysis schema.
	AnalyzePhoto(ctx context.Context, imageData []byte) (string, error)
	// AggregateAnalyses takes the serialized array of photo analyses for one
	// project-day and returns a single JSON string per the daily-report schema.
	AggregateAnalyses(ctx context.Context, analysesJSON []byte, projectName, date string) (string, error)
	// SourceName returns a short provider label to persist in the database
	// (e.g., "Gemini", "ChatGPT").
	SourceName() string
}
