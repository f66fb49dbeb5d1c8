package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Institution product types.
const (
	ProductMortgage = "Mortgage"
	ProductPrivate  = "Private"
	ProductBusiness = "Business"
)

// ValidProductType reports whether s is one of the allowed product types.
func ValidProductType(s string) bool {
	return s == ProductMortgage || s == ProductPrivate || s == ProductBusiness
}

// Institution is a credit-issuing entity whose loans are tracked by the system.
type Institution struct {
	ID              uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name            string         `gorm:"column:name;not null" json:"name"`
	Country         string         `gorm:"column:country;not null" json:"country"`
	FoundingYear    int            `gorm:"column:founding_year;not null" json:"foundingYear"`
	TotalPortfolio  float64        `gorm:"column:total_portfolio;default:0" json:"totalPortfolio"`
	CreditRiskScore *int           `gorm:"column:credit_risk_score" json:"creditRiskScore"`
	ProductType     string         `gorm:"column:product_type;type:varchar(20);not null" json:"productType"`
	WebsiteURL      string         `gorm:"column:website_url" json:"websiteUrl"`
	Contacts        datatypes.JSON `gorm:"column:contacts" json:"contacts"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

func (Institution) TableName() string {
	return "institutions"
}

// BeforeCreate ensures id is set for DBs without default uuid.
func (i *Institution) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
