package core

import (
	"context"
)

// ChatModel is a hosted language model the agent loop can drive.
type ChatModel interface {
	// Generate sends one turn (history, files and tool definitions) to the model
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// Name returns the provider name used in logs and metrics
	Name() string
}

// FileProcessor uploads local files to a hosted service and tracks their processing state.
type FileProcessor interface {
	UploadFile(ctx context.Context, path, mimeType, displayName string) (*RemoteFile, error)
	GetFile(ctx context.Context, name string) (*RemoteFile, error)
	DeleteFile(ctx context.Context, name string) error
}

// Embedder turns text into vectors for similarity search.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}
