package documents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// recordingSequence plays a waiter on the allocation lock: the row committed
// by the previous holder only becomes visible once LockSequence has returned.
type recordingSequence struct {
	calls     []string
	locked    bool
	committed []string
	pending   string
	maxTail   int64
}

func (s *recordingSequence) LockSequence(ctx context.Context, companyID int64, t Type) error {
	s.calls = append(s.calls, "lock")
	s.locked = true
	if s.pending != "" {
		s.committed = append(s.committed, s.pending)
		s.pending = ""
	}
	return nil
}

func (s *recordingSequence) visible() []string {
	if !s.locked {
		return nil
	}
	return s.committed
}

func (s *recordingSequence) LastCode(ctx context.Context, companyID int64, t Type) (string, error) {
	s.calls = append(s.calls, "last")
	codes := s.visible()
	if len(codes) == 0 {
		return "", nil
	}
	return codes[len(codes)-1], nil
}

func (s *recordingSequence) MaxTail(ctx context.Context, companyID int64, t Type) (int64, error) {
	s.calls = append(s.calls, "max")
	return s.maxTail, nil
}

func (s *recordingSequence) CodeExists(ctx context.Context, companyID int64, t Type, code string, excludeID int64) (bool, error) {
	s.calls = append(s.calls, "exists")
	for _, c := range s.visible() {
		if c == code {
			return true, nil
		}
	}
	return false, nil
}

func TestAllocateReadsAfterLock(t *testing.T) {
	store := &recordingSequence{committed: []string{"I-7-000001"}, pending: "I-7-000002"}

	code, err := allocateCode(context.Background(), store, 7, TypeInvoice)
	require.NoError(t, err)
	require.Equal(t, "I-7-000003", code)
	require.Equal(t, []string{"lock", "last", "exists"}, store.calls)
}

func TestAllocateLegacyTailFallsBackToMax(t *testing.T) {
	store := &recordingSequence{committed: []string{"LEGACY"}}

	code, err := allocateCode(context.Background(), store, 7, TypeQuote)
	require.NoError(t, err)
	require.Equal(t, "Q-7-000001", code)
	require.Equal(t, []string{"lock", "last", "max", "exists"}, store.calls)
}

func TestAllocateIgnoresTailOfNonconformingCode(t *testing.T) {
	store := &recordingSequence{committed: []string{"I-7-000004", "CUSTOM-42"}, maxTail: 4}

	code, err := allocateCode(context.Background(), store, 7, TypeInvoice)
	require.NoError(t, err)
	require.Equal(t, "I-7-000005", code)
	require.Equal(t, []string{"lock", "last", "max", "exists"}, store.calls)
}
