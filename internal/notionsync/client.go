package notionsync

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/finance-planner/internal/domain"
)

// PageRef is a row of the payments database as seen by the sync: the page
// and the ledger payment it claims to mirror ("" when the column is empty).
type PageRef struct {
	PageID    string
	PaymentID string
}

// NotionService is the Notion side of the planned payment sync.
type NotionService interface {
	// ListPaymentPages returns one page of database rows starting at cursor
	// ("" for the first). next is "" after the last page.
	ListPaymentPages(ctx context.Context, databaseID, cursor string) (pages []PageRef, next string, err error)

	// CreatePaymentPage adds a row for p and returns its page id.
	CreatePaymentPage(ctx context.Context, databaseID string, p domain.PlannedPayment) (string, error)

	// UpdatePaymentPage overwrites the row's properties with p.
	UpdatePaymentPage(ctx context.Context, pageID string, p domain.PlannedPayment) error

	// ArchivePage moves a page to the Notion trash.
	ArchivePage(ctx context.Context, pageID string) error
}

// NotionClient implements NotionService on top of the notionapi SDK.
type NotionClient struct {
	client *notionapi.Client
}

var _ NotionService = (*NotionClient)(nil)

// NewNotionClient creates a client authenticated with an integration token.
func NewNotionClient(token string) *NotionClient {
	return &NotionClient{
		client: notionapi.NewClient(notionapi.Token(token)),
	}
}

func (n *NotionClient) ListPaymentPages(ctx context.Context, databaseID, cursor string) ([]PageRef, string, error) {
	req := &notionapi.DatabaseQueryRequest{
		PageSize: PageSize,
		Sorts: []notionapi.SortObject{
			{Property: PropDueDate, Direction: notionapi.SortOrderASC},
		},
	}
	if cursor != "" {
		req.StartCursor = notionapi.Cursor(cursor)
	}

	resp, err := n.client.Database.Query(ctx, notionapi.DatabaseID(databaseID), req)
	if err != nil {
		return nil, "", fmt.Errorf("ListPaymentPages: %w", err)
	}

	refs := make([]PageRef, 0, len(resp.Results))
	for _, page := range resp.Results {
		refs = append(refs, PageRef{PageID: string(page.ID), PaymentID: paymentIDOf(page)})
	}
	if !resp.HasMore {
		return refs, "", nil
	}
	return refs, string(resp.NextCursor), nil
}

func (n *NotionClient) CreatePaymentPage(ctx context.Context, databaseID string, p domain.PlannedPayment) (string, error) {
	page, err := n.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: PaymentToNotionProperties(p),
	})
	if err != nil {
		return "", fmt.Errorf("CreatePaymentPage %s: %w", p.ID, err)
	}
	return string(page.ID), nil
}

func (n *NotionClient) UpdatePaymentPage(ctx context.Context, pageID string, p domain.PlannedPayment) error {
	_, err := n.client.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Properties: PaymentToNotionProperties(p),
	})
	if err != nil {
		return fmt.Errorf("UpdatePaymentPage %s: %w", p.ID, err)
	}
	return nil
}

func (n *NotionClient) ArchivePage(ctx context.Context, pageID string) error {
	_, err := n.client.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Archived: true,
	})
	if err != nil {
		return fmt.Errorf("ArchivePage: %w", err)
	}
	return nil
}
