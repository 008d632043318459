package store

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store useful for tests and local runs.
// It is not intended for production use.
type MemoryStore struct {
	mu          sync.Mutex
	calls       map[string]CallRecord
	outcomes    map[string]Outcome
	transcripts map[string][]TranscriptLine
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		calls:       make(map[string]CallRecord),
		outcomes:    make(map[string]Outcome),
		transcripts: make(map[string][]TranscriptLine),
	}
}

func (s *MemoryStore) UpsertCall(ctx context.Context, rec CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[rec.CallID] = rec
	return nil
}

func (s *MemoryStore) GetCall(ctx context.Context, callID string) (CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.calls[callID]
	if !ok {
		return CallRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) UpsertOutcome(ctx context.Context, o Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes[o.CallID] = o
	return nil
}

func (s *MemoryStore) GetOutcome(ctx context.Context, callID string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.outcomes[callID]
	if !ok {
		return Outcome{}, ErrNotFound
	}
	return o, nil
}

func (s *MemoryStore) AppendTranscript(ctx context.Context, line TranscriptLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts[line.CallID] = append(s.transcripts[line.CallID], line)
	return nil
}

func (s *MemoryStore) ListTranscript(ctx context.Context, callID string) ([]TranscriptLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.transcripts[callID]
	out := make([]TranscriptLine, len(lines))
	copy(out, lines)
	return out, nil
}
