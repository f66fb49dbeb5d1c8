package institutions

import (
	"context"
	"encoding/json"
	"time"

	"loanchain-backend/internal/domain"
	"loanchain-backend/internal/pkg/apperr"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const dashboardCacheTTL = 60 * time.Second

// DashboardCacheKey is the Redis key holding the cached dashboard summary
// for an institution.
func DashboardCacheKey(institutionID uuid.UUID) string {
	return "dashboard:" + institutionID.String()
}

// InvalidateDashboard drops the cached dashboard summary after a write that
// changes loan amounts. A nil client is a no-op (caching disabled).
func InvalidateDashboard(ctx context.Context, rdb *redis.Client, institutionID uuid.UUID) {
	if rdb == nil {
		return
	}
	if err := rdb.Del(ctx, DashboardCacheKey(institutionID)).Err(); err != nil {
		log.Warn().Err(err).Str("institution_id", institutionID.String()).Msg("dashboard cache invalidation failed")
	}
}

// Service encapsulates institution operations. Rdb is optional; when nil the
// dashboard is computed on every request.
type Service struct {
	DB  *gorm.DB
	Rdb *redis.Client
}

// CreateInput carries the institution creation request body.
type CreateInput struct {
	Name            string         `json:"name"`
	Country         string         `json:"country"`
	FoundingYear    int            `json:"foundingYear"`
	TotalPortfolio  float64        `json:"totalPortfolio"`
	CreditRiskScore *int           `json:"creditRiskScore"`
	ProductType     string         `json:"productType"`
	WebsiteURL      string         `json:"websiteUrl"`
	Contacts        datatypes.JSON `json:"contacts"`
}

// Create validates the mandatory fields and persists a new institution.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Institution, error) {
	if in.Name == "" || in.Country == "" || in.FoundingYear == 0 {
		return nil, apperr.NewValidation("name, country and foundingYear are required")
	}
	if !domain.ValidProductType(in.ProductType) {
		return nil, apperr.NewValidation("productType must be one of Mortgage, Private, Business")
	}
	if in.CreditRiskScore != nil && (*in.CreditRiskScore < 0 || *in.CreditRiskScore > 100) {
		return nil, apperr.NewValidation("creditRiskScore must be between 0 and 100")
	}

	inst := domain.Institution{
		Name:            in.Name,
		Country:         in.Country,
		FoundingYear:    in.FoundingYear,
		TotalPortfolio:  in.TotalPortfolio,
		CreditRiskScore: in.CreditRiskScore,
		ProductType:     in.ProductType,
		WebsiteURL:      in.WebsiteURL,
		Contacts:        in.Contacts,
	}
	if err := s.DB.WithContext(ctx).Create(&inst).Error; err != nil {
		return nil, apperr.NewStore("Server error while creating institution.", err)
	}
	return &inst, nil
}

// List returns all institutions.
func (s *Service) List(ctx context.Context) ([]domain.Institution, error) {
	var insts []domain.Institution
	if err := s.DB.WithContext(ctx).Find(&insts).Error; err != nil {
		return nil, apperr.NewStore("Server error", err)
	}
	return insts, nil
}

// Loans returns all loans belonging to an institution.
func (s *Service) Loans(ctx context.Context, institutionID uuid.UUID) ([]domain.Loan, error) {
	var loans []domain.Loan
	if err := s.DB.WithContext(ctx).Where("institution_id = ?", institutionID).Find(&loans).Error; err != nil {
		return nil, apperr.NewStore("Server error", err)
	}
	return loans, nil
}

// Summary is the aggregated read-side view over an institution's loans.
type Summary struct {
	TotalLoanAmount      float64 `json:"totalLoanAmount"`
	TotalInvestedAmount  float64 `json:"totalInvestedAmount"`
	NumberOfLoans        int64   `json:"numberOfLoans"`
	InvestmentPercentage float64 `json:"investmentPercentage"`
}

// DashboardData is the dashboard response payload.
type DashboardData struct {
	Institution domain.Institution `json:"institution"`
	Summary     Summary            `json:"summary"`
}

// Dashboard computes sum of principal, sum of invested and loan count for an
// institution. Pure read; the summary is cached per institution with a short
// TTL when Redis is configured.
func (s *Service) Dashboard(ctx context.Context, institutionID uuid.UUID) (*DashboardData, error) {
	var inst domain.Institution
	if err := s.DB.WithContext(ctx).Where("id = ?", institutionID).First(&inst).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperr.NewNotFound("Institution not found")
		}
		return nil, apperr.NewStore("Server error", err)
	}

	if summary, ok := s.cachedSummary(ctx, institutionID); ok {
		return &DashboardData{Institution: inst, Summary: summary}, nil
	}

	var row struct {
		TotalLoanAmount     float64
		TotalInvestedAmount float64
		NumberOfLoans       int64
	}
	err := s.DB.WithContext(ctx).Model(&domain.Loan{}).
		Where("institution_id = ?", institutionID).
		Select("COALESCE(SUM(principal_open_eur), 0) AS total_loan_amount, COALESCE(SUM(invested_amount), 0) AS total_invested_amount, COUNT(*) AS number_of_loans").
		Scan(&row).Error
	if err != nil {
		return nil, apperr.NewStore("Server error", err)
	}

	summary := Summary{
		TotalLoanAmount:     row.TotalLoanAmount,
		TotalInvestedAmount: row.TotalInvestedAmount,
		NumberOfLoans:       row.NumberOfLoans,
	}
	// Zero principal means zero percentage, never a division by zero.
	if summary.TotalLoanAmount > 0 {
		summary.InvestmentPercentage = summary.TotalInvestedAmount / summary.TotalLoanAmount * 100
	}

	s.storeSummary(ctx, institutionID, summary)
	return &DashboardData{Institution: inst, Summary: summary}, nil
}

func (s *Service) cachedSummary(ctx context.Context, institutionID uuid.UUID) (Summary, bool) {
	if s.Rdb == nil {
		return Summary{}, false
	}
	b, err := s.Rdb.Get(ctx, DashboardCacheKey(institutionID)).Bytes()
	if err != nil {
		return Summary{}, false
	}
	var summary Summary
	if err := json.Unmarshal(b, &summary); err != nil {
		return Summary{}, false
	}
	return summary, true
}

func (s *Service) storeSummary(ctx context.Context, institutionID uuid.UUID, summary Summary) {
	if s.Rdb == nil {
		return
	}
	b, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.Rdb.Set(ctx, DashboardCacheKey(institutionID), b, dashboardCacheTTL).Err(); err != nil {
		log.Warn().Err(err).Msg("dashboard cache write failed")
	}
}
