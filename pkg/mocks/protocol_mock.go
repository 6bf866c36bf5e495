// Package mocks provides testify mocks for the core's external collaborators.
package mocks

import (
	"context"

	"github.com/botgrid/botgrid/pkg/models"
	"github.com/botgrid/botgrid/pkg/protocol"
	"github.com/stretchr/testify/mock"
)

// MockGenerator is a mock implementation of the protocol.Generator interface.
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, history []*models.Message, text string, knowledge []protocol.KnowledgeResult) (string, error) {
	args := m.Called(ctx, history, text, knowledge)

	return args.String(0), args.Error(1)
}

// MockKnowledgeBase is a mock implementation of the protocol.KnowledgeBase interface.
type MockKnowledgeBase struct {
	mock.Mock
}

func (m *MockKnowledgeBase) Search(ctx context.Context, query string) ([]protocol.KnowledgeResult, error) {
	args := m.Called(ctx, query)

	if results, ok := args.Get(0).([]protocol.KnowledgeResult); ok {
		return results, args.Error(1)
	}

	return nil, args.Error(1)
}
