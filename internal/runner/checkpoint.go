package runner

import (
	"fmt"
	"sync"

	"github.com/agentd/agentd/internal/model"
)

// Checkpoint is the persisted state of a suspended run: everything needed
// to re-enter the loop from the exact suspension point with the injected
// decisions.
type Checkpoint struct {
	ThreadID  string
	System    string
	Messages  []model.Message
	Pending   []model.ToolCall
	Iteration int
}

// CheckpointStore maps thread ids to their suspended-run checkpoints.
// One checkpoint per thread at most; a run replaces its own checkpoint.
type CheckpointStore struct {
	mu          sync.Mutex
	checkpoints map[string]*Checkpoint
}

// NewCheckpointStore creates an empty store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{checkpoints: make(map[string]*Checkpoint)}
}

// Save stores the checkpoint for its thread.
func (s *CheckpointStore) Save(cp *Checkpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[cp.ThreadID] = cp
}

// Load returns the checkpoint for threadID.
func (s *CheckpointStore) Load(threadID string) (*Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.checkpoints[threadID]
	if !ok {
		return nil, fmt.Errorf("no checkpoint for thread %s", threadID)
	}
	return cp, nil
}

// Delete removes the checkpoint for threadID, if any.
func (s *CheckpointStore) Delete(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, threadID)
}
