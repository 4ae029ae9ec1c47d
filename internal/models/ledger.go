// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

package models

import (
	"time"
)

// Frequency is the installment cadence for a customer's repayment plan.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// GraceDays returns how many days may elapse since the last payment before
// a customer on this frequency counts as overdue.
func (f Frequency) GraceDays() int {
	switch f {
	case FrequencyWeekly:
		return 7
	case FrequencyMonthly:
		return 30
	default:
		return 1
	}
}

// Valid reports whether f is a known frequency value.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// CustomerStatus tracks whether a customer has fully repaid their debt.
type CustomerStatus string

const (
	StatusActive    CustomerStatus = "active"
	StatusCompleted CustomerStatus = "completed"
)

// PaymentSource records how a payment was collected.
type PaymentSource string

const (
	SourceOnline  PaymentSource = "online"
	SourceOffline PaymentSource = "offline"
)

// InvestmentType classifies an investment history entry.
type InvestmentType string

const (
	InvestmentInvested  InvestmentType = "INVESTED"
	InvestmentWithdrawn InvestmentType = "WITHDRAWN"

	// LegacyInvestmentReceived is the pre-migration spelling of WITHDRAWN.
	// It must never survive past the normalization pass.
	LegacyInvestmentReceived InvestmentType = "RECEIVED"
)

// InvestmentEntry is a single capital movement on a profile. Entries are
// embedded in the owning Profile, not stored as a separate table.
type InvestmentEntry struct {
	ID         string         `json:"id" validate:"required"`
	Amount     float64        `json:"amount" validate:"required,gt=0"`
	Date       string         `json:"date" validate:"required"`
	Note       string         `json:"note,omitempty"`
	Type       InvestmentType `json:"type" validate:"required,oneof=INVESTED WITHDRAWN"`
	CustomerID string         `json:"customerId,omitempty"`
}

// Profile is a business/tenant boundary. All customers and payments belong
// to exactly one profile.
type Profile struct {
	ID                int64             `json:"id" validate:"required"`
	Name              string            `json:"name" validate:"required"`
	Description       string            `json:"description,omitempty"`
	Gradient          string            `json:"gradient,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	TotalInvestment   float64           `json:"totalInvestment"`
	InvestmentHistory []InvestmentEntry `json:"investmentHistory"`
}

// RecomputeInvestment recalculates TotalInvestment from the investment
// history. It is the only correct way to derive the total; the field must
// never be adjusted incrementally.
func (p *Profile) RecomputeInvestment() {
	var total float64
	for _, e := range p.InvestmentHistory {
		switch e.Type {
		case InvestmentInvested:
			total += e.Amount
		case InvestmentWithdrawn, LegacyInvestmentReceived:
			total -= e.Amount
		}
	}
	p.TotalInvestment = total
}

// NormalizeInvestmentTypes rewrites any legacy RECEIVED entry to WITHDRAWN.
// Returns the number of entries changed. Safe to call repeatedly.
func (p *Profile) NormalizeInvestmentTypes() int {
	changed := 0
	for i := range p.InvestmentHistory {
		if p.InvestmentHistory[i].Type == LegacyInvestmentReceived {
			p.InvestmentHistory[i].Type = InvestmentWithdrawn
			changed++
		}
	}
	return changed
}

// Customer is a debtor tracked under one profile.
type Customer struct {
	ID                string         `json:"id" validate:"required"`
	ProfileID         int64          `json:"profileId" validate:"required"`
	Name              string         `json:"name" validate:"required"`
	Phone             string         `json:"phone,omitempty"`
	Address           string         `json:"address,omitempty"`
	DocumentType      string         `json:"documentType,omitempty"`
	DocumentNumber    string         `json:"documentNumber,omitempty"`
	TotalAmount       float64        `json:"totalAmount" validate:"gte=0"`
	InstallmentAmount float64        `json:"installmentAmount" validate:"gte=0"`
	Frequency         Frequency      `json:"frequency" validate:"omitempty,oneof=daily weekly monthly"`
	PaidAmount        float64        `json:"paidAmount"`
	LastPaymentDate   string         `json:"lastPaymentDate,omitempty"`
	Status            CustomerStatus `json:"status"`
	StartDate         string         `json:"startDate,omitempty"`
	EndDate           string         `json:"endDate,omitempty"`
	Notes             string         `json:"notes,omitempty"`
	Category          string         `json:"category,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
}

// SettleStatus derives Status from PaidAmount vs TotalAmount. The two
// fields must never be persisted in a contradictory state.
func (c *Customer) SettleStatus() {
	if c.TotalAmount > 0 && c.PaidAmount >= c.TotalAmount {
		c.Status = StatusCompleted
	} else {
		c.Status = StatusActive
	}
}

// Payment is a single installment received from a customer.
type Payment struct {
	ID         string        `json:"id" validate:"required"`
	CustomerID string        `json:"customerId" validate:"required"`
	Amount     float64       `json:"amount" validate:"required,gt=0"`
	Date       string        `json:"date" validate:"required"`
	CreatedAt  time.Time     `json:"createdAt"`
	Source     PaymentSource `json:"source,omitempty"`
}

// MetadataEntry is a generic key/value record for singleton application
// state (current profile pointer, settings blobs, migration flags).
// Values are overwritten wholesale on every write.
type MetadataEntry struct {
	Key       string    `json:"key" validate:"required"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Well-known metadata keys.
const (
	MetaCurrentProfile       = "currentProfile"
	MetaAppSettings          = "appSettings"
	MetaNotificationSettings = "notificationSettings"
	MetaMigrationDone        = "migrationDone"
	MetaMigrationCompletedAt = "migrationCompletedAt"
	MetaLegacyPurgeAfter     = "legacyPurgeAfter"
	MetaInvestmentNormalized = "investmentTypesNormalized"
)
