package models

import (
	"time"

	"github.com/charity/backend/internal/domain/donation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DonationModel is the persistence model for the Donation aggregate root.
type DonationModel struct {
	AggregateModel
	Amount            decimal.Decimal         `gorm:"type:decimal(18,4);not null"`
	Status            donation.DonationStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	DonationType      donation.DonationType   `gorm:"type:varchar(30);not null"`
	DonationProjectID *uuid.UUID              `gorm:"type:uuid;index"`
	DonorName         string                  `gorm:"type:varchar(200)"`
	DonorEmail        string                  `gorm:"type:varchar(200)"`
	Message           string                  `gorm:"type:text"`
	ProofReference    string                  `gorm:"type:varchar(500)"`
	ApprovedAt        *time.Time              `gorm:"index"`
	ApprovedBy        *uuid.UUID              `gorm:"type:uuid"`
	RejectedAt        *time.Time
	RejectedBy        *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (DonationModel) TableName() string {
	return "donations"
}

// ToDomain converts the persistence model to a domain Donation
func (m *DonationModel) ToDomain() *donation.Donation {
	return &donation.Donation{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Amount:            m.Amount,
		Status:            m.Status,
		DonationType:      m.DonationType,
		DonationProjectID: m.DonationProjectID,
		DonorName:         m.DonorName,
		DonorEmail:        m.DonorEmail,
		Message:           m.Message,
		ProofReference:    m.ProofReference,
		ApprovedAt:        utcPtr(m.ApprovedAt),
		ApprovedBy:        m.ApprovedBy,
		RejectedAt:        utcPtr(m.RejectedAt),
		RejectedBy:        m.RejectedBy,
	}
}

// FromDomain populates the persistence model from a domain Donation
func (m *DonationModel) FromDomain(d *donation.Donation) {
	m.FromDomainAggregateRoot(d.BaseAggregateRoot)
	m.Amount = d.Amount
	m.Status = d.Status
	m.DonationType = d.DonationType
	m.DonationProjectID = d.DonationProjectID
	m.DonorName = d.DonorName
	m.DonorEmail = d.DonorEmail
	m.Message = d.Message
	m.ProofReference = d.ProofReference
	m.ApprovedAt = d.ApprovedAt
	m.ApprovedBy = d.ApprovedBy
	m.RejectedAt = d.RejectedAt
	m.RejectedBy = d.RejectedBy
}

// DonationModelFromDomain creates a new persistence model from domain
func DonationModelFromDomain(d *donation.Donation) *DonationModel {
	m := &DonationModel{}
	m.FromDomain(d)
	return m
}

// DonationProjectModel is the persistence model for the DonationProject aggregate root.
type DonationProjectModel struct {
	AggregateModel
	Title         string              `gorm:"type:varchar(200);not null"`
	Description   string              `gorm:"type:text"`
	TargetAmount  decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	CurrentAmount decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	IsCompleted   bool                `gorm:"not null;default:false;index"`
	IsActive      bool                `gorm:"not null;default:true"`
	CompletedAt   *time.Time
}

// TableName returns the table name for GORM
func (DonationProjectModel) TableName() string {
	return "donation_projects"
}

// ToDomain converts the persistence model to a domain DonationProject
func (m *DonationProjectModel) ToDomain() *donation.DonationProject {
	p := &donation.DonationProject{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Title:             m.Title,
		Description:       m.Description,
		CurrentAmount:     m.CurrentAmount,
		IsCompleted:       m.IsCompleted,
		IsActive:          m.IsActive,
		CompletedAt:       utcPtr(m.CompletedAt),
	}
	if m.TargetAmount.Valid {
		target := m.TargetAmount.Decimal
		p.TargetAmount = &target
	}
	return p
}

// FromDomain populates the persistence model from a domain DonationProject
func (m *DonationProjectModel) FromDomain(p *donation.DonationProject) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.Title = p.Title
	m.Description = p.Description
	m.TargetAmount = decimal.NullDecimal{}
	if p.TargetAmount != nil {
		m.TargetAmount = decimal.NewNullDecimal(*p.TargetAmount)
	}
	m.CurrentAmount = p.CurrentAmount
	m.IsCompleted = p.IsCompleted
	m.IsActive = p.IsActive
	m.CompletedAt = p.CompletedAt
}

// DonationProjectModelFromDomain creates a new persistence model from domain
func DonationProjectModelFromDomain(p *donation.DonationProject) *DonationProjectModel {
	m := &DonationProjectModel{}
	m.FromDomain(p)
	return m
}

// AnnualGoalModel is the persistence model for the AnnualGoal aggregate root.
type AnnualGoalModel struct {
	AggregateModel
	Year          int             `gorm:"not null;uniqueIndex:idx_annual_goals_year"`
	TargetAmount  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CurrentAmount decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (AnnualGoalModel) TableName() string {
	return "annual_goals"
}

// ToDomain converts the persistence model to a domain AnnualGoal
func (m *AnnualGoalModel) ToDomain() *donation.AnnualGoal {
	return &donation.AnnualGoal{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Year:              m.Year,
		TargetAmount:      m.TargetAmount,
		CurrentAmount:     m.CurrentAmount,
	}
}

// FromDomain populates the persistence model from a domain AnnualGoal
func (m *AnnualGoalModel) FromDomain(g *donation.AnnualGoal) {
	m.FromDomainAggregateRoot(g.BaseAggregateRoot)
	m.Year = g.Year
	m.TargetAmount = g.TargetAmount
	m.CurrentAmount = g.CurrentAmount
}

// AnnualGoalModelFromDomain creates a new persistence model from domain
func AnnualGoalModelFromDomain(g *donation.AnnualGoal) *AnnualGoalModel {
	m := &AnnualGoalModel{}
	m.FromDomain(g)
	return m
}

// AllModels lists every model for AutoMigrate in tests and tooling
func AllModels() []any {
	return []any{
		&DonationModel{},
		&DonationProjectModel{},
		&AnnualGoalModel{},
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
