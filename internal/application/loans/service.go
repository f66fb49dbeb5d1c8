// Package loans owns the per-loan mutation paths: investment, expiry
// reconciliation and the on-chain repair sweep.
package loans

import (
	"context"
	"time"

	"loanchain-backend/internal/application/institutions"
	"loanchain-backend/internal/domain"
	"loanchain-backend/internal/infrastructure/chain"
	"loanchain-backend/internal/pkg/apperr"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Service encapsulates loan operations.
type Service struct {
	DB    *gorm.DB
	Chain chain.Client
	Rdb   *redis.Client
}

// Invest atomically increments a loan's invested amount. The increment is a
// single conditional UPDATE so that two concurrent investments can never push
// investedAmount past principalOpenEur.
func (s *Service) Invest(ctx context.Context, loanID uuid.UUID, amount float64) (*domain.Loan, error) {
	if amount <= 0 {
		return nil, apperr.NewValidation("Invalid investment amount.")
	}

	res := s.DB.WithContext(ctx).Model(&domain.Loan{}).
		Where("id = ? AND invested_amount + ? <= principal_open_eur", loanID, amount).
		UpdateColumn("invested_amount", gorm.Expr("invested_amount + ?", amount))
	if res.Error != nil {
		return nil, apperr.NewStore("Server error", res.Error)
	}
	if res.RowsAffected == 0 {
		// Disambiguate: missing loan vs over-investment.
		var count int64
		if err := s.DB.WithContext(ctx).Model(&domain.Loan{}).Where("id = ?", loanID).Count(&count).Error; err != nil {
			return nil, apperr.NewStore("Server error", err)
		}
		if count == 0 {
			return nil, apperr.NewNotFound("Loan not found.")
		}
		return nil, apperr.NewValidation("Investment exceeds the total loan amount.")
	}

	var loan domain.Loan
	if err := s.DB.WithContext(ctx).Where("id = ?", loanID).First(&loan).Error; err != nil {
		return nil, apperr.NewStore("Server error", err)
	}
	institutions.InvalidateDashboard(ctx, s.Rdb, loan.InstitutionID)
	return &loan, nil
}

// UpdateExpiredStatuses deactivates every ACTIVE loan whose expiry date has
// passed. Each candidate is handled sequentially: the on-chain status update
// must confirm before the off-chain record is marked EXPIRED, and a per-loan
// failure never aborts the batch. Re-running is safe: only ACTIVE,
// expired-by-date loans are selected.
func (s *Service) UpdateExpiredStatuses(ctx context.Context) (updated, candidates int, err error) {
	var due []domain.Loan
	err = s.DB.WithContext(ctx).
		Where("loan_last_date <= ? AND status = ?", time.Now(), domain.StatusActive).
		Find(&due).Error
	if err != nil {
		return 0, 0, apperr.NewStore("Server error", err)
	}
	if len(due) == 0 {
		return 0, 0, nil
	}

	for _, loan := range due {
		tx, err := s.Chain.SetStatus(ctx, loan.ClassID, loan.NonceID, false)
		if err != nil {
			log.Error().Err(err).Str("loan_id", loan.LoanID).Msg("Failed to update on-chain status")
			continue
		}
		if err := tx.Wait(ctx); err != nil {
			log.Error().Err(err).Str("loan_id", loan.LoanID).Str("tx", tx.Hash()).Msg("On-chain status update not confirmed")
			continue
		}
		err = s.DB.WithContext(ctx).Model(&domain.Loan{}).
			Where("id = ?", loan.ID).
			UpdateColumn("status", domain.StatusExpired).Error
		if err != nil {
			log.Error().Err(err).Str("loan_id", loan.LoanID).Msg("Failed to persist EXPIRED status")
			continue
		}
		updated++
	}
	return updated, len(due), nil
}

// ReconcileOnChain repairs ACTIVE records the contract already reports
// inactive, covering a crash between on-chain confirmation and the store
// update in the expiry path. Per-loan chain read failures are logged and
// skipped.
func (s *Service) ReconcileOnChain(ctx context.Context) (int, error) {
	var active []domain.Loan
	if err := s.DB.WithContext(ctx).Where("status = ?", domain.StatusActive).Find(&active).Error; err != nil {
		return 0, apperr.NewStore("Server error", err)
	}

	repaired := 0
	for _, loan := range active {
		state, err := s.Chain.GetLoan(ctx, loan.ClassID, loan.NonceID)
		if err != nil {
			log.Error().Err(err).Str("loan_id", loan.LoanID).Msg("Failed to read on-chain loan state")
			continue
		}
		if state.Active {
			continue
		}
		err = s.DB.WithContext(ctx).Model(&domain.Loan{}).
			Where("id = ?", loan.ID).
			UpdateColumn("status", domain.StatusExpired).Error
		if err != nil {
			log.Error().Err(err).Str("loan_id", loan.LoanID).Msg("Failed to repair loan status")
			continue
		}
		log.Info().Str("loan_id", loan.LoanID).Msg("repaired off-chain status from on-chain state")
		repaired++
	}
	return repaired, nil
}
