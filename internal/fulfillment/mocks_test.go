package fulfillment

import (
	"context"
	"sync"
	"time"
)

// MockFeedbackStore records appended feedback.
type MockFeedbackStore struct {
	mu sync.Mutex

	Available   bool
	AppendError error
	Records     []FeedbackRecord
	AppendCalls int
	Deadline    bool
}

func NewMockFeedbackStore() *MockFeedbackStore {
	return &MockFeedbackStore{Available: true}
}

func (m *MockFeedbackStore) IsAvailable() bool {
	return m.Available
}

func (m *MockFeedbackStore) Append(ctx context.Context, record FeedbackRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendCalls++
	_, m.Deadline = ctx.Deadline()
	if m.AppendError != nil {
		return "", m.AppendError
	}
	m.Records = append(m.Records, record)
	return "doc-1", nil
}

type sentMessage struct {
	Destination string
	Body        string
}

// MockMessageGateway records sent messages.
type MockMessageGateway struct {
	mu sync.Mutex

	Available bool
	SendError error
	Sent      []sentMessage
	SendCalls int
}

func NewMockMessageGateway() *MockMessageGateway {
	return &MockMessageGateway{Available: true}
}

func (m *MockMessageGateway) IsAvailable() bool {
	return m.Available
}

func (m *MockMessageGateway) Send(ctx context.Context, destination, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendCalls++
	if m.SendError != nil {
		return m.SendError
	}
	m.Sent = append(m.Sent, sentMessage{Destination: destination, Body: body})
	return nil
}

type recordedDispatch struct {
	Branch  string
	Outcome string
}

// MockRecorder captures dispatch outcomes.
type MockRecorder struct {
	mu            sync.Mutex
	Dispatches    []recordedDispatch
	Collaborators map[string]int
}

func NewMockRecorder() *MockRecorder {
	return &MockRecorder{Collaborators: make(map[string]int)}
}

func (m *MockRecorder) RecordDispatch(branch, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Dispatches = append(m.Dispatches, recordedDispatch{Branch: branch, Outcome: outcome})
}

func (m *MockRecorder) RecordCollaboratorCall(collaborator string, _ error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Collaborators[collaborator]++
}
