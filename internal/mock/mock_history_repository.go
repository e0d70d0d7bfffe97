package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sib-swiss/dclust/pkg/model"
)

// MockHistoryRepository is a mock implementation of
// genealogy/repository.HistoryRepository.
type MockHistoryRepository struct {
	mock.Mock
}

// SaveHistory mocks the SaveHistory method.
func (m *MockHistoryRepository) SaveHistory(ctx context.Context, rows []model.ClusterHistory) error {
	args := m.Called(ctx, rows)
	return args.Error(0)
}

// GetHistoryForRun mocks the GetHistoryForRun method.
func (m *MockHistoryRepository) GetHistoryForRun(ctx context.Context, runID string) ([]model.ClusterHistory, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ClusterHistory), args.Error(1)
}

// GetHistoryForPass mocks the GetHistoryForPass method.
func (m *MockHistoryRepository) GetHistoryForPass(ctx context.Context, runID string, passOrdinal int) ([]model.ClusterHistory, error) {
	args := m.Called(ctx, runID, passOrdinal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ClusterHistory), args.Error(1)
}

// UpdateRetainFlags mocks the UpdateRetainFlags method.
func (m *MockHistoryRepository) UpdateRetainFlags(ctx context.Context, runID string, passOrdinal int, decisions map[model.ClusterID]model.RetainState) error {
	args := m.Called(ctx, runID, passOrdinal, decisions)
	return args.Error(0)
}

// SavePassSummary mocks the SavePassSummary method.
func (m *MockHistoryRepository) SavePassSummary(ctx context.Context, runID string, summary model.PassSummary) error {
	args := m.Called(ctx, runID, summary)
	return args.Error(0)
}

// GetPassSummaries mocks the GetPassSummaries method.
func (m *MockHistoryRepository) GetPassSummaries(ctx context.Context, runID string) ([]model.PassSummary, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PassSummary), args.Error(1)
}

// ExpectSaveHistory sets up an expectation for SaveHistory.
func (m *MockHistoryRepository) ExpectSaveHistory(err error) *mock.Call {
	return m.On("SaveHistory", mock.Anything, mock.Anything).Return(err)
}

// ExpectSavePassSummary sets up an expectation for SavePassSummary.
func (m *MockHistoryRepository) ExpectSavePassSummary(err error) *mock.Call {
	return m.On("SavePassSummary", mock.Anything, mock.Anything, mock.Anything).Return(err)
}
