// Package snapshot reads and writes full ledger backups as JSON, exports the
// spending CSV and moves both to and from Cloud Storage.
package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-planner/internal/domain"
)

// Version is written into every snapshot. Snapshots without a version are
// treated as legacy backups.
const Version = 2

// Snapshot is the backup document. Field names follow the backup files the
// mobile app has always produced so those files import unchanged.
type Snapshot struct {
	Version         int              `json:"version,omitempty"`
	ExportedAt      time.Time        `json:"exportedAt,omitempty"`
	Transactions    []Transaction    `json:"transactions"`
	PlannedPayments []PlannedPayment `json:"plannedPayments"`
	CategoryBudgets []CategoryBudget `json:"categoryBudgets"`
	Goals           []Goal           `json:"goals,omitempty"`
}

// Transaction is the wire form of domain.Transaction.
type Transaction struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Amount   decimal.Decimal `json:"amount"`
	Type     domain.Kind     `json:"type"`
	Category string          `json:"category"`
	Date     time.Time       `json:"date"`
	Note     string          `json:"note,omitempty"`
}

// PlannedPayment is the wire form of domain.PlannedPayment.
type PlannedPayment struct {
	ID                      string                  `json:"id"`
	Title                   string                  `json:"title"`
	Amount                  decimal.Decimal         `json:"amount"`
	DueDate                 time.Time               `json:"dueDate"`
	IsPaid                  bool                    `json:"isPaid"`
	Note                    *string                 `json:"note"`
	IsRecurring             bool                    `json:"isRecurring"`
	RecurringInterval       *string                 `json:"recurringInterval"`
	LinkedTransactionID     string                  `json:"linkedTransactionId,omitempty"`
	NotificationPreferences *NotificationPreference `json:"notificationPreferences,omitempty"`
}

// NotificationPreference is the wire form of domain.ReminderPreference.
type NotificationPreference struct {
	OneDay    bool `json:"oneDay"`
	ThreeDays bool `json:"threeDays"`
	OneWeek   bool `json:"oneWeek"`
}

// CategoryBudget is the wire form of domain.CategoryBudget. Budgets are
// derived data; they are exported for reference and ignored on import.
type CategoryBudget struct {
	Category        string          `json:"category"`
	SuggestedAmount decimal.Decimal `json:"suggestedAmount"`
	CurrentAmount   decimal.Decimal `json:"currentAmount"`
	Progress        decimal.Decimal `json:"progress"`
}

// Goal is the wire form of domain.Goal.
type Goal struct {
	ID                   string            `json:"id"`
	Title                string            `json:"title"`
	TargetAmount         decimal.Decimal   `json:"targetAmount"`
	SavedAmount          decimal.Decimal   `json:"savedAmount"`
	DueDate              time.Time         `json:"dueDate"`
	Note                 *string           `json:"note"`
	Category             string            `json:"category"`
	MonthlyContributions []decimal.Decimal `json:"monthlyContributions"`
	LastUpdateDate       *time.Time        `json:"lastUpdateDate,omitempty"`
}

// EncodeOptions controls Encode.
type EncodeOptions struct {
	// LegacyMarkers also writes each paid payment's link into its note using
	// the marker line older app versions read.
	LegacyMarkers bool

	// Indent pretty-prints the document.
	Indent bool
}

// Ledger is the domain content of a snapshot.
type Ledger struct {
	Transactions    []domain.Transaction
	PlannedPayments []domain.PlannedPayment
	CategoryBudgets []domain.CategoryBudget
	Goals           []domain.Goal
}

// FromLedger converts domain entities into a snapshot document.
func FromLedger(l Ledger, exportedAt time.Time, opts EncodeOptions) Snapshot {
	snap := Snapshot{
		Version:         Version,
		ExportedAt:      exportedAt,
		Transactions:    make([]Transaction, 0, len(l.Transactions)),
		PlannedPayments: make([]PlannedPayment, 0, len(l.PlannedPayments)),
		CategoryBudgets: make([]CategoryBudget, 0, len(l.CategoryBudgets)),
	}

	for _, tx := range l.Transactions {
		snap.Transactions = append(snap.Transactions, Transaction{
			ID:       tx.ID,
			Title:    tx.Title,
			Amount:   tx.Amount,
			Type:     tx.Kind,
			Category: tx.Category,
			Date:     tx.Date,
			Note:     tx.Note,
		})
	}

	for _, p := range l.PlannedPayments {
		note := p.Note
		if opts.LegacyMarkers && p.IsPaid && p.LinkedTransactionID != "" {
			note = domain.EncodeMarker(note, p.LinkedTransactionID)
		}
		wire := PlannedPayment{
			ID:                  p.ID,
			Title:               p.Title,
			Amount:              p.Amount,
			DueDate:             p.DueDate,
			IsPaid:              p.IsPaid,
			IsRecurring:         p.IsRecurring,
			LinkedTransactionID: p.LinkedTransactionID,
			NotificationPreferences: &NotificationPreference{
				OneDay:    p.Reminders.OneDay,
				ThreeDays: p.Reminders.ThreeDays,
				OneWeek:   p.Reminders.OneWeek,
			},
		}
		if note != "" {
			wire.Note = &note
		}
		if p.RecurringInterval != "" {
			interval := string(p.RecurringInterval)
			wire.RecurringInterval = &interval
		}
		snap.PlannedPayments = append(snap.PlannedPayments, wire)
	}

	for _, b := range l.CategoryBudgets {
		snap.CategoryBudgets = append(snap.CategoryBudgets, CategoryBudget(b))
	}

	for _, g := range l.Goals {
		wire := Goal{
			ID:                   g.ID,
			Title:                g.Title,
			TargetAmount:         g.TargetAmount,
			SavedAmount:          g.SavedAmount,
			DueDate:              g.DueDate,
			Category:             string(g.Category),
			MonthlyContributions: append([]decimal.Decimal{}, g.Contributions...),
		}
		if g.Note != "" {
			note := g.Note
			wire.Note = &note
		}
		if !g.LastContributionAt.IsZero() {
			last := g.LastContributionAt
			wire.LastUpdateDate = &last
		}
		snap.Goals = append(snap.Goals, wire)
	}
	return snap
}

// ToLedger converts a decoded snapshot into domain entities. Legacy note
// markers are moved into LinkedTransactionID. Every entity is validated; the
// first invalid one fails the conversion.
func (s Snapshot) ToLedger() (Ledger, error) {
	var l Ledger

	for i, wire := range s.Transactions {
		tx := domain.Transaction{
			ID:       wire.ID,
			Title:    wire.Title,
			Amount:   wire.Amount,
			Kind:     wire.Type,
			Category: wire.Category,
			Date:     wire.Date,
			Note:     wire.Note,
		}
		tx.Normalize()
		if err := tx.Validate(); err != nil {
			return Ledger{}, fmt.Errorf("transaction %d (%s): %w", i, wire.ID, err)
		}
		l.Transactions = append(l.Transactions, tx)
	}

	for i, wire := range s.PlannedPayments {
		p := domain.PlannedPayment{
			ID:                  wire.ID,
			Title:               wire.Title,
			Amount:              wire.Amount,
			DueDate:             wire.DueDate,
			IsPaid:              wire.IsPaid,
			IsRecurring:         wire.IsRecurring,
			LinkedTransactionID: wire.LinkedTransactionID,
		}
		if wire.Note != nil {
			clean, txID, ok := domain.DecodeMarker(*wire.Note)
			p.Note = clean
			if ok && p.LinkedTransactionID == "" {
				p.LinkedTransactionID = txID
			}
		}
		if wire.RecurringInterval != nil && *wire.RecurringInterval != "" {
			interval, err := domain.ParseInterval(*wire.RecurringInterval)
			if err != nil {
				return Ledger{}, fmt.Errorf("planned payment %d (%s): %w", i, wire.ID, err)
			}
			p.RecurringInterval = interval
		}
		if wire.NotificationPreferences != nil {
			p.Reminders = domain.ReminderPreference{
				OneDay:    wire.NotificationPreferences.OneDay,
				ThreeDays: wire.NotificationPreferences.ThreeDays,
				OneWeek:   wire.NotificationPreferences.OneWeek,
			}
		}
		if p.IsPaid && p.LinkedTransactionID == "" {
			// No way to tell which transaction paid it; keep the payment
			// open rather than invent a link.
			p.IsPaid = false
		}
		if err := p.Validate(); err != nil {
			return Ledger{}, fmt.Errorf("planned payment %d (%s): %w", i, wire.ID, err)
		}
		l.PlannedPayments = append(l.PlannedPayments, p)
	}

	for _, b := range s.CategoryBudgets {
		l.CategoryBudgets = append(l.CategoryBudgets, domain.CategoryBudget(b))
	}

	for i, wire := range s.Goals {
		category, err := domain.ParseGoalCategory(wire.Category)
		if err != nil {
			return Ledger{}, fmt.Errorf("goal %d (%s): %w", i, wire.ID, err)
		}
		g := domain.Goal{
			ID:            wire.ID,
			Title:         wire.Title,
			TargetAmount:  wire.TargetAmount,
			SavedAmount:   wire.SavedAmount,
			DueDate:       wire.DueDate,
			Category:      category,
			Contributions: wire.MonthlyContributions,
		}
		if wire.Note != nil {
			g.Note = *wire.Note
		}
		if wire.LastUpdateDate != nil {
			g.LastContributionAt = *wire.LastUpdateDate
		}
		if err := g.Validate(); err != nil {
			return Ledger{}, fmt.Errorf("goal %d (%s): %w", i, wire.ID, err)
		}
		l.Goals = append(l.Goals, g)
	}
	return l, nil
}

// Encode writes snap as JSON.
func Encode(w io.Writer, snap Snapshot, opts EncodeOptions) error {
	enc := json.NewEncoder(w)
	if opts.Indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("Encode: %w", err)
	}
	return nil
}

// Decode reads a snapshot written by Encode or by the mobile app.
func Decode(r io.Reader) (Snapshot, error) {
	var snap Snapshot
	dec := json.NewDecoder(r)
	if err := dec.Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("Decode: %w", err)
	}
	if snap.Version > Version {
		return Snapshot{}, fmt.Errorf("Decode: unsupported snapshot version %d", snap.Version)
	}
	return snap, nil
}
