package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"loanchain-backend/internal/application/institutions"
	"loanchain-backend/internal/domain"
	"loanchain-backend/internal/infrastructure/chain"
	"loanchain-backend/internal/pkg/apperr"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ----- test doubles -----

type fakeTx struct{ waitErr error }

func (t *fakeTx) Hash() string                   { return "0xfake" }
func (t *fakeTx) Wait(ctx context.Context) error { return t.waitErr }

// fakeChain fails CreateLoan for class ids listed in failCreate and records
// every successful registration.
type fakeChain struct {
	failCreate map[uint64]error
	created    []uint64
	inactive   map[uint64]bool
	setStatus  map[uint64]error
}

func (f *fakeChain) CreateLoan(ctx context.Context, classID, nonceID uint64, url string) (chain.Tx, error) {
	if err, ok := f.failCreate[classID]; ok {
		return nil, err
	}
	f.created = append(f.created, classID)
	return &fakeTx{}, nil
}

func (f *fakeChain) SetStatus(ctx context.Context, classID, nonceID uint64, active bool) (chain.Tx, error) {
	if err, ok := f.setStatus[classID]; ok {
		return nil, err
	}
	return &fakeTx{}, nil
}

func (f *fakeChain) GetLoan(ctx context.Context, classID, nonceID uint64) (chain.LoanState, error) {
	return chain.LoanState{URL: "u", Active: !f.inactive[classID]}, nil
}

func setupIngestTest(t *testing.T) (*gorm.DB, *domain.Institution) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Institution{}, &domain.Loan{}))

	inst := &domain.Institution{
		Name:         "Nordbank",
		Country:      "DE",
		FoundingYear: 1998,
		ProductType:  domain.ProductBusiness,
	}
	require.NoError(t, db.Create(inst).Error)
	return db, inst
}

func uploadCSV(rows int) string {
	var b strings.Builder
	b.WriteString("loanId,classId,nonceId,amount,url,loan_date,loan_last_date\n")
	for i := 1; i <= rows; i++ {
		b.WriteString(fmt.Sprintf("L-%d,%d,%d,1000,https://docs.example/%d,2026-01-01,2026-12-31\n", i, i, i*10, i))
	}
	return b.String()
}

// ----- tests -----

func TestUploadCSV_PartialOnChainFailure(t *testing.T) {
	db, inst := setupIngestTest(t)
	fc := &fakeChain{failCreate: map[uint64]error{2: errors.New("execution reverted")}}
	svc := &Service{DB: db, Chain: fc}

	res, err := svc.UploadCSV(context.Background(), inst.ID, strings.NewReader(uploadCSV(3)))
	require.NoError(t, err)

	assert.Equal(t, 2, res.SavedToDB)
	assert.Equal(t, []string{"L-2"}, res.OnChainErrors)
	assert.Empty(t, res.RowErrors)
	assert.Contains(t, res.Message, "Nordbank")

	var count int64
	require.NoError(t, db.Model(&domain.Loan{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)

	var loans []domain.Loan
	require.NoError(t, db.Order("loan_id").Find(&loans).Error)
	for _, l := range loans {
		assert.Equal(t, domain.StatusActive, l.Status)
		assert.Zero(t, l.InvestedAmount)
		assert.Equal(t, inst.ID, l.InstitutionID)
	}
}

func TestUploadCSV_LedgerBalance(t *testing.T) {
	db, inst := setupIngestTest(t)
	fc := &fakeChain{failCreate: map[uint64]error{1: errors.New("revert"), 4: errors.New("revert")}}
	svc := &Service{DB: db, Chain: fc}

	const rows = 5
	res, err := svc.UploadCSV(context.Background(), inst.ID, strings.NewReader(uploadCSV(rows)))
	require.NoError(t, err)

	// Persisted plus failed always accounts for every input row.
	assert.Equal(t, rows, res.SavedToDB+len(res.OnChainErrors)+len(res.RowErrors))
	assert.Equal(t, 3, res.SavedToDB)
}

func TestUploadCSV_RowErrorsNeverReachChain(t *testing.T) {
	db, inst := setupIngestTest(t)
	fc := &fakeChain{}
	svc := &Service{DB: db, Chain: fc}

	csv := "loanId,classId,nonceId,amount,url\n" +
		"L-1,1,10,1000,u\n" +
		"L-2,bad,20,1000,u\n"
	res, err := svc.UploadCSV(context.Background(), inst.ID, strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 1, res.SavedToDB)
	assert.Equal(t, []string{"L-2"}, res.RowErrors)
	assert.Equal(t, []uint64{1}, fc.created)
}

func TestUploadCSV_InstitutionNotFound(t *testing.T) {
	db, _ := setupIngestTest(t)
	svc := &Service{DB: db, Chain: &fakeChain{}}

	_, err := svc.UploadCSV(context.Background(), uuid.New(), strings.NewReader(uploadCSV(1)))
	require.Error(t, err)
	e := apperr.As(err)
	require.NotNil(t, e)
	assert.Equal(t, apperr.NotFound, e.Kind)

	// Nothing reached the chain and nothing was persisted.
	var count int64
	require.NoError(t, db.Model(&domain.Loan{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUploadCSV_ParseFailureBeforeChainCalls(t *testing.T) {
	db, inst := setupIngestTest(t)
	fc := &fakeChain{}
	svc := &Service{DB: db, Chain: fc}

	_, err := svc.UploadCSV(context.Background(), inst.ID, strings.NewReader("loanId,amount\nL-1,5\n"))
	require.Error(t, err)
	assert.Empty(t, fc.created)
}

func TestUploadCSV_InvalidatesDashboardCache(t *testing.T) {
	db, inst := setupIngestTest(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	key := institutions.DashboardCacheKey(inst.ID)
	require.NoError(t, rdb.Set(context.Background(), key, `{"totalLoanAmount":0}`, 0).Err())

	svc := &Service{DB: db, Chain: &fakeChain{}, Rdb: rdb}
	_, err := svc.UploadCSV(context.Background(), inst.ID, strings.NewReader(uploadCSV(1)))
	require.NoError(t, err)

	assert.False(t, mr.Exists(key))
}
