package notionsync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/finance-planner/internal/domain"
	"github.com/dvloznov/finance-planner/internal/ledger"
	"github.com/dvloznov/finance-planner/internal/ledger/inmemory"
)

// MockNotionService is an in-memory NotionService for tests.
type MockNotionService struct {
	Pages    []PageRef
	Created  []domain.PlannedPayment
	Updated  map[string]domain.PlannedPayment
	Archived []string

	CreatePaymentPageFunc func(ctx context.Context, databaseID string, p domain.PlannedPayment) (string, error)
	ArchivePageFunc       func(ctx context.Context, pageID string) error
}

var _ NotionService = (*MockNotionService)(nil)

// ListPaymentPages serves Pages two at a time to exercise cursor paging.
func (m *MockNotionService) ListPaymentPages(ctx context.Context, databaseID, cursor string) ([]PageRef, string, error) {
	start := 0
	if cursor != "" {
		fmt.Sscanf(cursor, "%d", &start)
	}
	end := min(start+2, len(m.Pages))
	next := ""
	if end < len(m.Pages) {
		next = fmt.Sprintf("%d", end)
	}
	return m.Pages[start:end], next, nil
}

func (m *MockNotionService) CreatePaymentPage(ctx context.Context, databaseID string, p domain.PlannedPayment) (string, error) {
	if m.CreatePaymentPageFunc != nil {
		if _, err := m.CreatePaymentPageFunc(ctx, databaseID, p); err != nil {
			return "", err
		}
	}
	m.Created = append(m.Created, p)
	return fmt.Sprintf("new-%d", len(m.Created)), nil
}

func (m *MockNotionService) UpdatePaymentPage(ctx context.Context, pageID string, p domain.PlannedPayment) error {
	if m.Updated == nil {
		m.Updated = make(map[string]domain.PlannedPayment)
	}
	m.Updated[pageID] = p
	return nil
}

func (m *MockNotionService) ArchivePage(ctx context.Context, pageID string) error {
	if m.ArchivePageFunc != nil {
		if err := m.ArchivePageFunc(ctx, pageID); err != nil {
			return err
		}
	}
	m.Archived = append(m.Archived, pageID)
	return nil
}

func notionPage(pageID, paymentID string) PageRef {
	return PageRef{PageID: pageID, PaymentID: paymentID}
}

func seedPayments(t *testing.T, ids ...string) *inmemory.Store {
	t.Helper()
	store := inmemory.NewStore()
	var batch ledger.Batch
	for i, id := range ids {
		batch.PlannedPayments = append(batch.PlannedPayments, domain.PlannedPayment{
			ID:      id,
			Title:   "Payment " + id,
			Amount:  decimal.NewFromInt(int64(10 * (i + 1))),
			DueDate: time.Date(2024, 4, 1+i, 0, 0, 0, 0, time.UTC),
		})
	}
	require.NoError(t, store.Save(context.Background(), batch))
	return store
}

func TestSyncPlannedPayments(t *testing.T) {
	store := seedPayments(t, "p1", "p2", "p3")
	notion := &MockNotionService{
		Pages: []PageRef{
			notionPage("page-a", "p1"),
			notionPage("page-b", "gone"),
			notionPage("page-c", "p1"),
			notionPage("page-d", ""),
			notionPage("page-e", "p3"),
		},
	}

	report, err := SyncPlannedPayments(context.Background(), store, notion, "db", false)
	require.NoError(t, err)

	assert.Equal(t, SyncReport{Created: 1, Updated: 2, Archived: 3}, report)
	assert.ElementsMatch(t, []string{"page-b", "page-c", "page-d"}, notion.Archived)
	assert.Equal(t, "p1", notion.Updated["page-a"].ID)
	assert.Equal(t, "p3", notion.Updated["page-e"].ID)
	require.Len(t, notion.Created, 1)
	assert.Equal(t, "p2", notion.Created[0].ID)
}

func TestSyncPlannedPayments_DryRun(t *testing.T) {
	store := seedPayments(t, "p1", "p2")
	notion := &MockNotionService{Pages: []PageRef{notionPage("page-a", "p1"), notionPage("page-b", "gone")}}

	report, err := SyncPlannedPayments(context.Background(), store, notion, "db", true)
	require.NoError(t, err)

	assert.Equal(t, SyncReport{Created: 1, Updated: 1, Archived: 1, DryRun: true}, report)
	assert.Empty(t, notion.Created)
	assert.Empty(t, notion.Updated)
	assert.Empty(t, notion.Archived)
}

func TestSyncPlannedPayments_PageFailuresAreSkipped(t *testing.T) {
	store := seedPayments(t, "p1", "p2")
	notion := &MockNotionService{
		Pages: []PageRef{notionPage("page-a", "p1"), notionPage("page-b", "gone")},
		CreatePaymentPageFunc: func(ctx context.Context, databaseID string, p domain.PlannedPayment) (string, error) {
			return "", errors.New("rate limited")
		},
		ArchivePageFunc: func(ctx context.Context, pageID string) error {
			return errors.New("forbidden")
		},
	}

	report, err := SyncPlannedPayments(context.Background(), store, notion, "db", false)
	require.NoError(t, err)

	assert.Equal(t, SyncReport{Updated: 1, Failed: 2}, report)
}

func TestPaymentToNotionProperties(t *testing.T) {
	p := domain.PlannedPayment{
		ID:                  "p1",
		Title:               "Rent",
		Amount:              decimal.RequireFromString("950.50"),
		DueDate:             time.Date(2024, 5, 1, 18, 0, 0, 0, time.FixedZone("X", 3600)),
		IsPaid:              true,
		IsRecurring:         true,
		RecurringInterval:   domain.IntervalMonth,
		LinkedTransactionID: "tx-1",
	}

	props := PaymentToNotionProperties(p)

	title := props[PropTitle].(notionapi.TitleProperty)
	assert.Equal(t, "Rent", title.Title[0].Text.Content)
	assert.Equal(t, 950.5, props[PropAmount].(notionapi.NumberProperty).Number)
	assert.True(t, props[PropPaid].(notionapi.CheckboxProperty).Checkbox)
	assert.Equal(t, "month", props[PropInterval].(notionapi.SelectProperty).Select.Name)

	due := time.Time(*props[PropDueDate].(notionapi.DateProperty).Date.Start)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), due)

	linked := props[PropTransactionID].(notionapi.RichTextProperty)
	assert.Equal(t, "tx-1", linked.RichText[0].Text.Content)
	assert.Empty(t, props[PropNote].(notionapi.RichTextProperty).RichText)
}

func TestPaymentToNotionProperties_OneOff(t *testing.T) {
	props := PaymentToNotionProperties(domain.PlannedPayment{ID: "p1", Title: "Gift", DueDate: time.Now()})
	assert.NotContains(t, props, PropInterval)
}

func TestPaymentIDOf(t *testing.T) {
	tests := []struct {
		name string
		page notionapi.Page
		want string
	}{
		{
			name: "pointer property with plain text",
			page: notionapi.Page{Properties: notionapi.Properties{
				PropPaymentID: &notionapi.RichTextProperty{RichText: []notionapi.RichText{{PlainText: "p1"}}},
			}},
			want: "p1",
		},
		{
			name: "value property written by the mapper",
			page: notionapi.Page{Properties: PaymentToNotionProperties(domain.PlannedPayment{ID: "p2", Title: "x", DueDate: time.Now()})},
			want: "p2",
		},
		{
			name: "missing column",
			page: notionapi.Page{Properties: notionapi.Properties{}},
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, paymentIDOf(tt.page))
		})
	}
}
