package documents

import (
	"context"
	"fmt"

	"github.com/ledgerline/ledgerline/internal/numbering"
)

// maxProbe bounds the search for a free code past the last allocated tail.
const maxProbe = 100

// SequenceStore is the transactional view used to allocate codes.
type SequenceStore interface {
	// LockSequence serializes allocation for (company, type) until the
	// transaction ends.
	LockSequence(ctx context.Context, companyID int64, t Type) error
	// LastCode returns the code of the highest id document of the type, or "".
	LastCode(ctx context.Context, companyID int64, t Type) (string, error)
	// MaxTail returns the largest tail among well formed codes of the type.
	MaxTail(ctx context.Context, companyID int64, t Type) (int64, error)
	CodeExists(ctx context.Context, companyID int64, t Type, code string, excludeID int64) (bool, error)
}

// allocateCode derives the next code for (company, type): the tail of the most
// recent document plus one. When that document carries a caller supplied or
// legacy code outside the {letter}-{company}-{tail} format, allocation falls
// back to the largest well formed tail of the type. Taken codes are skipped.
func allocateCode(ctx context.Context, store SequenceStore, companyID int64, t Type) (string, error) {
	if err := store.LockSequence(ctx, companyID, t); err != nil {
		return "", err
	}
	last, err := store.LastCode(ctx, companyID, t)
	if err != nil {
		return "", err
	}
	var seq int64
	switch {
	case numbering.IsDocumentCode(last):
		seq, _ = numbering.Tail(last)
	case last != "":
		if seq, err = store.MaxTail(ctx, companyID, t); err != nil {
			return "", err
		}
	}
	seq++
	for i := 0; i < maxProbe; i++ {
		code := numbering.Format(t.Prefix(), companyID, seq)
		taken, err := store.CodeExists(ctx, companyID, t, code, 0)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
		seq++
	}
	return "", fmt.Errorf("%w: no free %s code after %d attempts", ErrDuplicateCode, t, maxProbe)
}

// rebaseCode keeps the numeric tail of code under the prefix of t when that
// code is free, and allocates a new one otherwise.
func rebaseCode(ctx context.Context, store SequenceStore, companyID, documentID int64, code string, t Type) (string, error) {
	if rebased, ok := numbering.Rebase(code, t.Prefix(), companyID); ok {
		taken, err := store.CodeExists(ctx, companyID, t, rebased, documentID)
		if err != nil {
			return "", err
		}
		if !taken {
			return rebased, nil
		}
	}
	return allocateCode(ctx, store, companyID, t)
}
