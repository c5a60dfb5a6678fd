package main

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/barekit/dossier/pkg/config"
	"github.com/barekit/dossier/pkg/fingerprint"
	"github.com/barekit/dossier/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct{}

func (stubProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Message, error) {
	return &llm.Message{Role: llm.RoleAssistant, Content: "encryption"}, nil
}

func bufferLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func TestNewEncoder_AssistedWarnsAboutQueryCost(t *testing.T) {
	logger, buf := bufferLogger()
	cfg := &config.Config{IngestStrategy: config.StrategyAssisted, FingerprintDimension: 64}

	enc, err := newEncoder(cfg, stubProvider{}, logger)
	require.NoError(t, err)
	assert.IsType(t, &fingerprint.Assisted{}, enc)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "one extra model call per question")
}

func TestNewEncoder_AssistedWithoutModel(t *testing.T) {
	logger, buf := bufferLogger()
	cfg := &config.Config{IngestStrategy: config.StrategyAssisted, FingerprintDimension: 64}

	_, err := newEncoder(cfg, nil, logger)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "fall back to word hashing")
	assert.NotContains(t, buf.String(), "extra model call")
}

func TestNewEncoder_LocalIsQuiet(t *testing.T) {
	logger, buf := bufferLogger()
	cfg := &config.Config{IngestStrategy: config.StrategyLocal, FingerprintDimension: 64}

	enc, err := newEncoder(cfg, stubProvider{}, logger)
	require.NoError(t, err)
	assert.IsType(t, &fingerprint.Local{}, enc)
	assert.Empty(t, buf.String())
}
