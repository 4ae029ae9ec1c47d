// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

package migrate

import (
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/maledger/maledger/internal/models"
)

// Legacy records are duck-typed JSON objects. These helpers extract
// fields leniently without trusting their declared types.

func asString(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		// Legacy ids were sometimes written as numbers.
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func asFloat(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func asInt64(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func hasKey(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

// decodeCollection parses a legacy flat blob into raw objects.
func decodeCollection(data []byte) ([]map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode legacy collection: %w", err)
	}
	return raw, nil
}

// parseInvestmentHistory converts a raw history list, normalizing the
// legacy RECEIVED type to WITHDRAWN.
func parseInvestmentHistory(raw any) []models.InvestmentEntry {
	items, ok := raw.([]any)
	if !ok {
		return []models.InvestmentEntry{}
	}
	entries := make([]models.InvestmentEntry, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		e := models.InvestmentEntry{
			ID:         asString(m, "id"),
			Amount:     asFloat(m, "amount"),
			Date:       asString(m, "date"),
			Note:       asString(m, "note"),
			Type:       models.InvestmentType(asString(m, "type")),
			CustomerID: asString(m, "customerId"),
		}
		if e.Type == models.LegacyInvestmentReceived {
			e.Type = models.InvestmentWithdrawn
		}
		entries = append(entries, e)
	}
	return entries
}

// parseProfiles validates and converts raw legacy profiles. Records
// missing id or name are dropped and reported; missing optional fields
// get safe defaults, and totals absent from the record are recomputed
// from the history type split.
func parseProfiles(raw []map[string]any) (profiles []models.Profile, warnings []string) {
	for i, m := range raw {
		id := asInt64(m, "id")
		name := asString(m, "name")
		if id == 0 || name == "" {
			warnings = append(warnings, fmt.Sprintf("profile %d dropped: missing id or name", i))
			continue
		}
		p := models.Profile{
			ID:                id,
			Name:              name,
			Description:       asString(m, "description"),
			Gradient:          asString(m, "gradient"),
			TotalInvestment:   asFloat(m, "totalInvestment"),
			InvestmentHistory: parseInvestmentHistory(m["investmentHistory"]),
		}
		if created := asString(m, "createdAt"); created != "" {
			if t, err := time.Parse(time.RFC3339, created); err == nil {
				p.CreatedAt = t
			}
		}
		if !hasKey(m, "totalInvestment") && len(p.InvestmentHistory) > 0 {
			p.RecomputeInvestment()
		}
		profiles = append(profiles, p)
	}
	return profiles, warnings
}

// parseCustomers validates and converts raw legacy customers.
func parseCustomers(raw []map[string]any) (customers []models.Customer, warnings []string) {
	for i, m := range raw {
		id := asString(m, "id")
		name := asString(m, "name")
		if id == "" || name == "" {
			warnings = append(warnings, fmt.Sprintf("customer %d dropped: missing id or name", i))
			continue
		}
		c := models.Customer{
			ID:                id,
			ProfileID:         asInt64(m, "profileId"),
			Name:              name,
			Phone:             asString(m, "phone"),
			Address:           asString(m, "address"),
			DocumentType:      asString(m, "documentType"),
			DocumentNumber:    asString(m, "documentNumber"),
			TotalAmount:       asFloat(m, "totalAmount"),
			InstallmentAmount: asFloat(m, "installmentAmount"),
			Frequency:         models.Frequency(asString(m, "frequency")),
			PaidAmount:        asFloat(m, "paidAmount"),
			LastPaymentDate:   asString(m, "lastPaymentDate"),
			StartDate:         asString(m, "startDate"),
			EndDate:           asString(m, "endDate"),
			Notes:             asString(m, "notes"),
			Category:          asString(m, "category"),
		}
		if !c.Frequency.Valid() {
			c.Frequency = models.FrequencyDaily
		}
		c.SettleStatus()
		customers = append(customers, c)
	}
	return customers, warnings
}

// backfillCustomerProfiles attaches customers whose legacy record has no
// profileId. The current-profile pointer wins when it names a migrated
// profile; otherwise a sole migrated profile is used. Customers that
// still cannot be placed are dropped and counted.
func backfillCustomerProfiles(customers []models.Customer, profiles []models.Profile, current int64) ([]models.Customer, []string) {
	known := make(map[int64]bool, len(profiles))
	for _, p := range profiles {
		known[p.ID] = true
	}
	var fallback int64
	switch {
	case known[current]:
		fallback = current
	case len(profiles) == 1:
		fallback = profiles[0].ID
	}

	kept := make([]models.Customer, 0, len(customers))
	var warnings []string
	for _, c := range customers {
		if c.ProfileID == 0 {
			if fallback == 0 {
				warnings = append(warnings, fmt.Sprintf("customer %s dropped: no profile to attach to", c.ID))
				continue
			}
			c.ProfileID = fallback
		}
		kept = append(kept, c)
	}
	return kept, warnings
}

// parsePayments validates and converts raw legacy payments.
func parsePayments(raw []map[string]any) (payments []models.Payment, warnings []string) {
	for i, m := range raw {
		id := asString(m, "id")
		customerID := asString(m, "customerId")
		amount := asFloat(m, "amount")
		if id == "" || customerID == "" || amount <= 0 {
			warnings = append(warnings, fmt.Sprintf("payment %d dropped: missing id, customerId, or amount", i))
			continue
		}
		p := models.Payment{
			ID:         id,
			CustomerID: customerID,
			Amount:     amount,
			Date:       asString(m, "date"),
			Source:     models.PaymentSource(asString(m, "source")),
		}
		if p.Date == "" {
			p.Date = time.Now().Format("2006-01-02")
		}
		if p.Source != models.SourceOnline && p.Source != models.SourceOffline {
			p.Source = models.SourceOffline
		}
		payments = append(payments, p)
	}
	return payments, warnings
}
