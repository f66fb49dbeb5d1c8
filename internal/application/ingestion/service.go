// Package ingestion implements the CSV-to-store-to-chain reconciliation path.
// Each parsed row is registered on-chain first; only rows whose registration
// call succeeded are staged, and staged rows are persisted in one bulk insert
// at the end of the batch.
package ingestion

import (
	"context"
	"fmt"
	"io"
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

// Service reconciles uploaded loan ledgers against the chain and the store.
type Service struct {
	DB    *gorm.DB
	Chain chain.Client
	Rdb   *redis.Client
}

// Result is the per-batch success/failure ledger. SavedToDB plus the lengths
// of the two error ledgers always equals the number of input rows.
type Result struct {
	Message       string   `json:"message"`
	SavedToDB     int      `json:"savedToDB"`
	OnChainErrors []string `json:"onChainErrors"`
	RowErrors     []string `json:"rowErrors"`
}

// UploadCSV processes one uploaded ledger for an institution. A missing
// institution or an unreadable CSV fails the whole request before any
// on-chain call; a per-row failure (parse or chain) only lands that row in
// the corresponding ledger.
func (s *Service) UploadCSV(ctx context.Context, institutionID uuid.UUID, csvData io.Reader) (*Result, error) {
	var inst domain.Institution
	if err := s.DB.WithContext(ctx).Where("id = ?", institutionID).First(&inst).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NewNotFound("Institution not found")
		}
		return nil, apperr.NewStore("Server error during file upload.", err)
	}

	rows, rowErrs, err := ParseRows(csvData, time.Now())
	if err != nil {
		return nil, apperr.NewStore("Server error during file upload.", err)
	}

	result := &Result{
		Message:       fmt.Sprintf("CSV for %s processed.", inst.Name),
		OnChainErrors: []string{},
		RowErrors:     []string{},
	}
	for _, re := range rowErrs {
		log.Warn().Str("row", re.Ref).Str("reason", re.Err).Msg("skipping malformed CSV row")
		result.RowErrors = append(result.RowErrors, re.Ref)
	}

	var staged []domain.Loan
	for _, row := range rows {
		if row.LastDateDefaulted {
			log.Warn().Str("loan_id", row.LoanID).
				Msgf("Invalid or missing loan_last_date for loanId %s. Using default %d-day expiration.", row.LoanID, defaultExpiryDays)
		}

		if _, err := s.Chain.CreateLoan(ctx, row.ClassID, row.NonceID, row.URL); err != nil {
			log.Error().Err(err).Str("loan_id", row.LoanID).Msg("On-chain error")
			result.OnChainErrors = append(result.OnChainErrors, row.LoanID)
			continue
		}

		staged = append(staged, domain.Loan{
			InstitutionID:    inst.ID,
			LoanID:           row.LoanID,
			ClassID:          row.ClassID,
			NonceID:          row.NonceID,
			LoanType:         domain.ProductBusiness,
			Status:           domain.StatusActive,
			PrincipalOpenEur: row.Amount,
			InvestedAmount:   0,
			LoanDate:         row.LoanDate,
			LoanLastDate:     row.LoanLastDate,
			URL:              row.URL,
		})
	}

	// All-or-nothing for the batch write. A failure here leaves the rows
	// registered on-chain with no off-chain record; the contract offers no
	// revoke call, so this window is accepted rather than rolled back.
	if len(staged) > 0 {
		if err := s.DB.WithContext(ctx).Create(&staged).Error; err != nil {
			return nil, apperr.NewStore("Server error during file upload.", err)
		}
		institutions.InvalidateDashboard(ctx, s.Rdb, inst.ID)
	}

	result.SavedToDB = len(staged)
	return result, nil
}
