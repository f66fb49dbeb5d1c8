package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Loan statuses. EXPIRED and PAID are terminal for the expiry path.
const (
	StatusActive  = "ACTIVE"
	StatusExpired = "EXPIRED"
	StatusPaid    = "PAID"
)

// Loan is a financed receivable identified both off-chain (document id) and
// on-chain (classId+nonceId pair). A row existing in the store implies its
// on-chain createLoan call already succeeded.
type Loan struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	InstitutionID    uuid.UUID `gorm:"column:institution_id;type:uuid;not null;index" json:"institution"`
	LoanID           string    `gorm:"column:loan_id;not null;uniqueIndex" json:"loanId"`
	ClassID          uint64    `gorm:"column:class_id;not null" json:"classId"`
	NonceID          uint64    `gorm:"column:nonce_id;not null" json:"nonceId"`
	LoanType         string    `gorm:"column:loan_type" json:"loanType"`
	Status           string    `gorm:"column:status;type:varchar(10);default:'ACTIVE'" json:"status"`
	PrincipalOpenEur float64   `gorm:"column:principal_open_eur;not null" json:"principalOpenEur"`
	InvestedAmount   float64   `gorm:"column:invested_amount;default:0" json:"investedAmount"`
	LoanDate         time.Time `gorm:"column:loan_date" json:"loanDate"`
	LoanLastDate     time.Time `gorm:"column:loan_last_date" json:"loanLastDate"`
	URL              string    `gorm:"column:url" json:"url"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func (Loan) TableName() string {
	return "loans"
}

// BeforeCreate ensures id is set for DBs without default uuid.
func (l *Loan) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
