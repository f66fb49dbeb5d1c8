package loans

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	loansvc "loanchain-backend/internal/application/loans"
	"loanchain-backend/internal/domain"
	"loanchain-backend/internal/infrastructure/chain"
	"loanchain-backend/internal/middleware"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeTx struct{}

func (t *fakeTx) Hash() string                   { return "0xfake" }
func (t *fakeTx) Wait(ctx context.Context) error { return nil }

type fakeChain struct {
	inactive map[uint64]bool
}

func (f *fakeChain) CreateLoan(ctx context.Context, classID, nonceID uint64, url string) (chain.Tx, error) {
	return &fakeTx{}, nil
}

func (f *fakeChain) SetStatus(ctx context.Context, classID, nonceID uint64, active bool) (chain.Tx, error) {
	return &fakeTx{}, nil
}

func (f *fakeChain) GetLoan(ctx context.Context, classID, nonceID uint64) (chain.LoanState, error) {
	return chain.LoanState{Active: !f.inactive[classID]}, nil
}

func setupApp(t *testing.T, fc chain.Client) (*fiber.App, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Institution{}, &domain.Loan{}))

	h := &Handlers{Service: &loansvc.Service{DB: db, Chain: fc}}
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	app.Patch("/api/loans/:loanId/invest", h.InvestInLoan)
	app.Post("/api/loans/update-statuses", h.UpdateStatuses)
	app.Post("/api/loans/reconcile", h.Reconcile)
	return app, db
}

func seedLoan(t *testing.T, db *gorm.DB, loan domain.Loan) domain.Loan {
	t.Helper()
	inst := &domain.Institution{Name: "Nordbank", Country: "DE", FoundingYear: 1998, ProductType: domain.ProductBusiness}
	require.NoError(t, db.Create(inst).Error)
	loan.InstitutionID = inst.ID
	if loan.LoanID == "" {
		loan.LoanID = "L-1"
	}
	if loan.Status == "" {
		loan.Status = domain.StatusActive
	}
	require.NoError(t, db.Create(&loan).Error)
	return loan
}

func invest(t *testing.T, app *fiber.App, loanID, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest("PATCH", "/api/loans/"+loanID+"/invest", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, b
}

func TestInvestInLoan_Accepted(t *testing.T) {
	app, db := setupApp(t, &fakeChain{})
	loan := seedLoan(t, db, domain.Loan{ClassID: 1, NonceID: 1, PrincipalOpenEur: 500, InvestedAmount: 450})

	code, body := invest(t, app, loan.ID.String(), `{"amountToInvest":50}`)
	assert.Equal(t, 200, code)

	var updated domain.Loan
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, 500.0, updated.InvestedAmount)
}

func TestInvestInLoan_OverInvestment(t *testing.T) {
	app, db := setupApp(t, &fakeChain{})
	loan := seedLoan(t, db, domain.Loan{ClassID: 1, NonceID: 1, PrincipalOpenEur: 500, InvestedAmount: 450})

	code, body := invest(t, app, loan.ID.String(), `{"amountToInvest":100}`)
	assert.Equal(t, 400, code)

	var msg map[string]string
	require.NoError(t, json.Unmarshal(body, &msg))
	assert.Equal(t, "Investment exceeds the total loan amount.", msg["message"])
}

func TestInvestInLoan_InvalidAmount(t *testing.T) {
	app, db := setupApp(t, &fakeChain{})
	loan := seedLoan(t, db, domain.Loan{ClassID: 1, NonceID: 1, PrincipalOpenEur: 500})

	for _, body := range []string{`{"amountToInvest":0}`, `{"amountToInvest":-5}`, `{"amountToInvest":"ten"}`, `{}`} {
		code, _ := invest(t, app, loan.ID.String(), body)
		assert.Equal(t, 400, code, "body %s", body)
	}
}

func TestInvestInLoan_NotFound(t *testing.T) {
	app, _ := setupApp(t, &fakeChain{})

	code, _ := invest(t, app, uuid.New().String(), `{"amountToInvest":50}`)
	assert.Equal(t, 404, code)

	code, _ = invest(t, app, "not-a-uuid", `{"amountToInvest":50}`)
	assert.Equal(t, 404, code)
}

func TestUpdateStatuses_NoExpiredLoans(t *testing.T) {
	app, db := setupApp(t, &fakeChain{})
	seedLoan(t, db, domain.Loan{ClassID: 1, NonceID: 1, PrincipalOpenEur: 100, LoanLastDate: time.Now().Add(24 * time.Hour)})

	resp, err := app.Test(httptest.NewRequest("POST", "/api/loans/update-statuses", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body struct {
		Message      string `json:"message"`
		UpdatedCount int    `json:"updatedCount"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "No active loans have expired.", body.Message)
	assert.Zero(t, body.UpdatedCount)
}

func TestUpdateStatuses_ExpiresDueLoans(t *testing.T) {
	app, db := setupApp(t, &fakeChain{})
	loan := seedLoan(t, db, domain.Loan{ClassID: 1, NonceID: 1, PrincipalOpenEur: 100, LoanLastDate: time.Now().Add(-time.Hour)})

	resp, err := app.Test(httptest.NewRequest("POST", "/api/loans/update-statuses", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body struct {
		Message      string `json:"message"`
		UpdatedCount int    `json:"updatedCount"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Loan statuses updated successfully.", body.Message)
	assert.Equal(t, 1, body.UpdatedCount)

	var after domain.Loan
	require.NoError(t, db.Where("id = ?", loan.ID).First(&after).Error)
	assert.Equal(t, domain.StatusExpired, after.Status)
}

func TestReconcile_RepairsStaleLoans(t *testing.T) {
	app, db := setupApp(t, &fakeChain{inactive: map[uint64]bool{1: true}})
	loan := seedLoan(t, db, domain.Loan{ClassID: 1, NonceID: 1, PrincipalOpenEur: 100, LoanLastDate: time.Now().Add(24 * time.Hour)})

	resp, err := app.Test(httptest.NewRequest("POST", "/api/loans/reconcile", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body struct {
		RepairedCount int `json:"repairedCount"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.RepairedCount)

	var after domain.Loan
	require.NoError(t, db.Where("id = ?", loan.ID).First(&after).Error)
	assert.Equal(t, domain.StatusExpired, after.Status)
}
