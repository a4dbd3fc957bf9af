package memory

import (
	"context"
	"fmt"

	domain "github.com/Zhima-Mochi/kitchenledger/internal/domain/payment"
)

type TransactionRepository struct {
	st *state
}

func (r *TransactionRepository) Insert(ctx context.Context, t *domain.Transaction) error {
	_ = ctx
	if t == nil || t.ID == "" {
		return fmt.Errorf("transaction repository: id is required")
	}
	for _, existing := range r.st.txns {
		if existing.Reference == t.Reference {
			return domain.ErrConflict
		}
	}
	r.st.txns[t.ID] = t.Clone()
	r.st.txnSeq = append(r.st.txnSeq, t.ID)
	return nil
}

func (r *TransactionRepository) Update(ctx context.Context, t *domain.Transaction) error {
	_ = ctx
	if _, ok := r.st.txns[t.ID]; !ok {
		return domain.ErrNotFound
	}
	r.st.txns[t.ID] = t.Clone()
	return nil
}

func (r *TransactionRepository) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	_ = ctx
	for _, t := range r.st.txns {
		if t.Reference == reference {
			return t.Clone(), nil
		}
	}
	return nil, domain.ErrNotFound
}

// ListByOrder returns transactions oldest first.
func (r *TransactionRepository) ListByOrder(ctx context.Context, orderID string) ([]*domain.Transaction, error) {
	_ = ctx
	var out []*domain.Transaction
	for _, id := range r.st.txnSeq {
		if t := r.st.txns[id]; t.OrderID == orderID {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}
