package classify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/conciliar-dev/conciliar/internal/learning"
	"github.com/conciliar-dev/conciliar/internal/model"
	"github.com/conciliar-dev/conciliar/internal/textnorm"
)

// TransactionStore is the slice of the books store the service needs.
type TransactionStore interface {
	CompanyID() string
	Transactions(from, to time.Time) ([]model.BankTransaction, error)
	Transaction(id string) (model.BankTransaction, error)
	UpdateTransactions(txns []model.BankTransaction) error
}

// CategoryChecker validates a manual category choice.
type CategoryChecker interface {
	CheckAssignable(id int, d model.Direction) error
}

// Options configures a Service.
type Options struct {
	Thresholds   Thresholds
	HistoryLimit int
}

// DefaultOptions returns the stock service options.
func DefaultOptions() Options {
	return Options{Thresholds: DefaultThresholds(), HistoryLimit: DefaultHistoryLimit}
}

// Service classifies stored transactions and records manual choices.
type Service struct {
	store      TransactionStore
	history    learning.Store
	categories CategoryChecker
	opts       Options
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a classification Service.
func NewService(store TransactionStore, history learning.Store, categories CategoryChecker, opts Options, logger *slog.Logger) *Service {
	return &Service{
		store:      store,
		history:    history,
		categories: categories,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// Summary counts the outcomes of a classification run.
type Summary struct {
	Automatic     int
	LowConfidence int
	Unclassified  int
}

// Total is the number of transactions examined.
func (s Summary) Total() int {
	return s.Automatic + s.LowConfidence + s.Unclassified
}

// ClassifyPending classifies every pending or low-confidence transaction in
// [from, to] against the company's recent learning history.
func (s *Service) ClassifyPending(ctx context.Context, from, to time.Time) (Summary, error) {
	var sum Summary
	history, err := s.history.Recent(ctx, s.store.CompanyID(), s.opts.HistoryLimit)
	if err != nil {
		return sum, fmt.Errorf("loading learning history: %w", err)
	}
	engine := NewEngine(history)

	txns, err := s.store.Transactions(from, to)
	if err != nil {
		return sum, err
	}

	var changed []model.BankTransaction
	for _, tx := range txns {
		if tx.Status != model.TxPending && tx.Status != model.TxLowConfidence {
			continue
		}
		res := engine.Classify(tx.NormalizedDescription)
		status := s.opts.Thresholds.StatusFor(res.Confidence)
		switch status {
		case model.TxAutomaticClassification:
			sum.Automatic++
		case model.TxLowConfidence:
			sum.LowConfidence++
		default:
			sum.Unclassified++
			res = Result{Method: MethodNone}
		}

		s.logger.Debug("classified transaction",
			"id", tx.ID, "method", res.Method, "category", res.CategoryID, "confidence", res.Confidence)

		if tx.Status == status && tx.CategoryID == res.CategoryID && tx.Confidence == res.Confidence {
			continue
		}
		tx.Status = status
		tx.CategoryID = res.CategoryID
		tx.Confidence = res.Confidence
		changed = append(changed, tx)
	}

	if len(changed) > 0 {
		if err := s.store.UpdateTransactions(changed); err != nil {
			return sum, fmt.Errorf("saving classifications: %w", err)
		}
	}
	return sum, nil
}

// Learn records a manual classification: the transaction takes the category
// with full confidence and a learning record is appended.
func (s *Service) Learn(ctx context.Context, txID string, categoryID int) (model.BankTransaction, error) {
	tx, err := s.store.Transaction(txID)
	if err != nil {
		return model.BankTransaction{}, err
	}
	if tx.Status == model.TxInternalTransfer {
		return model.BankTransaction{}, fmt.Errorf("transaction %s is an internal transfer", txID)
	}
	if err := s.categories.CheckAssignable(categoryID, tx.Direction); err != nil {
		return model.BankTransaction{}, err
	}

	normalized := tx.NormalizedDescription
	if normalized == "" {
		normalized = textnorm.Normalize(tx.Description)
	}
	rec := model.LearningRecord{
		CompanyID:             s.store.CompanyID(),
		Description:           tx.Description,
		NormalizedDescription: normalized,
		CategoryID:            categoryID,
		Confidence:            model.ManualConfidence,
		CreatedAt:             s.now(),
	}
	if err := s.history.Append(ctx, rec); err != nil {
		return model.BankTransaction{}, fmt.Errorf("recording learning: %w", err)
	}

	tx.CategoryID = categoryID
	tx.Confidence = model.ManualConfidence
	tx.Status = model.TxManualClassification
	if err := s.store.UpdateTransactions([]model.BankTransaction{tx}); err != nil {
		return model.BankTransaction{}, fmt.Errorf("saving classification: %w", err)
	}
	return tx, nil
}
