// MaLedger - Installment Ledger for Small Businesses
// Copyright 2026 MaLedger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/maledger/maledger

package models

import "testing"

func TestFrequencyGraceDays(t *testing.T) {
	tests := []struct {
		freq Frequency
		want int
	}{
		{FrequencyDaily, 1},
		{FrequencyWeekly, 7},
		{FrequencyMonthly, 30},
		{Frequency(""), 1},
	}
	for _, tt := range tests {
		if got := tt.freq.GraceDays(); got != tt.want {
			t.Errorf("GraceDays(%q) = %d, want %d", tt.freq, got, tt.want)
		}
	}
}

func TestFrequencyValid(t *testing.T) {
	if !FrequencyWeekly.Valid() {
		t.Error("weekly should be valid")
	}
	if Frequency("fortnightly").Valid() {
		t.Error("fortnightly should be invalid")
	}
}

func TestRecomputeInvestment(t *testing.T) {
	p := Profile{
		TotalInvestment: 9999, // stale value, must be overwritten
		InvestmentHistory: []InvestmentEntry{
			{ID: "1", Amount: 1000, Type: InvestmentInvested},
			{ID: "2", Amount: 300, Type: InvestmentWithdrawn},
			{ID: "3", Amount: 200, Type: LegacyInvestmentReceived},
		},
	}
	p.RecomputeInvestment()
	if p.TotalInvestment != 500 {
		t.Errorf("TotalInvestment = %v, want 500", p.TotalInvestment)
	}

	p.InvestmentHistory = nil
	p.RecomputeInvestment()
	if p.TotalInvestment != 0 {
		t.Errorf("TotalInvestment with empty history = %v, want 0", p.TotalInvestment)
	}
}

func TestNormalizeInvestmentTypes(t *testing.T) {
	p := Profile{
		InvestmentHistory: []InvestmentEntry{
			{ID: "1", Amount: 100, Type: InvestmentInvested},
			{ID: "2", Amount: 50, Type: LegacyInvestmentReceived},
			{ID: "3", Amount: 25, Type: LegacyInvestmentReceived},
		},
	}

	if changed := p.NormalizeInvestmentTypes(); changed != 2 {
		t.Errorf("first pass changed %d entries, want 2", changed)
	}
	for _, e := range p.InvestmentHistory {
		if e.Type == LegacyInvestmentReceived {
			t.Errorf("entry %s still has legacy type after normalization", e.ID)
		}
	}

	// Second pass must be a no-op.
	if changed := p.NormalizeInvestmentTypes(); changed != 0 {
		t.Errorf("second pass changed %d entries, want 0", changed)
	}
}

func TestSettleStatus(t *testing.T) {
	tests := []struct {
		name  string
		total float64
		paid  float64
		want  CustomerStatus
	}{
		{"unpaid", 1000, 0, StatusActive},
		{"partial", 1000, 999.99, StatusActive},
		{"exact", 1000, 1000, StatusCompleted},
		{"overpaid", 1000, 1100, StatusCompleted},
		{"zero total stays active", 0, 0, StatusActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Customer{TotalAmount: tt.total, PaidAmount: tt.paid}
			c.SettleStatus()
			if c.Status != tt.want {
				t.Errorf("status = %q, want %q", c.Status, tt.want)
			}
		})
	}
}

func TestAvailableQuota(t *testing.T) {
	a := RemoteAccount{TotalQuota: 100, UsedQuota: 30}
	if got := a.AvailableQuota(); got != 70 {
		t.Errorf("AvailableQuota = %d, want 70", got)
	}
	a.UsedQuota = 150
	if got := a.AvailableQuota(); got != 0 {
		t.Errorf("AvailableQuota over-used = %d, want 0", got)
	}
}
