package notionsync

import (
	"time"

	"github.com/dvloznov/finance-planner/internal/domain"
	"github.com/jomei/notionapi"
)

// Property names of the planned payments database.
const (
	PropTitle         = "Title"
	PropPaymentID     = "Payment ID"
	PropAmount        = "Amount"
	PropDueDate       = "Due Date"
	PropPaid          = "Paid"
	PropInterval      = "Interval"
	PropNote          = "Note"
	PropTransactionID = "Transaction ID"
)

// PaymentToNotionProperties converts a planned payment to page properties.
// Optional columns are cleared rather than omitted so an update overwrites
// stale values.
func PaymentToNotionProperties(p domain.PlannedPayment) notionapi.Properties {
	due := notionapi.Date(time.Date(p.DueDate.Year(), p.DueDate.Month(), p.DueDate.Day(), 0, 0, 0, 0, time.UTC))

	props := notionapi.Properties{
		PropTitle: notionapi.TitleProperty{
			Title: richText(p.Title),
		},
		PropPaymentID: notionapi.RichTextProperty{
			RichText: richText(p.ID),
		},
		PropAmount: notionapi.NumberProperty{
			Number: p.Amount.InexactFloat64(),
		},
		PropDueDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &due},
		},
		PropPaid: notionapi.CheckboxProperty{
			Checkbox: p.IsPaid,
		},
		PropNote: notionapi.RichTextProperty{
			RichText: richText(p.Note),
		},
		PropTransactionID: notionapi.RichTextProperty{
			RichText: richText(p.LinkedTransactionID),
		},
	}

	if p.IsRecurring {
		props[PropInterval] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: string(p.RecurringInterval)},
		}
	}

	return props
}

func richText(content string) []notionapi.RichText {
	if content == "" {
		return []notionapi.RichText{}
	}
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}

// paymentIDOf reads the Payment ID column of a page. Pages decoded from the
// API hold pointer properties; pages built locally hold values.
func paymentIDOf(page notionapi.Page) string {
	var texts []notionapi.RichText
	switch prop := page.Properties[PropPaymentID].(type) {
	case *notionapi.RichTextProperty:
		texts = prop.RichText
	case notionapi.RichTextProperty:
		texts = prop.RichText
	}
	if len(texts) == 0 {
		return ""
	}
	if texts[0].PlainText != "" {
		return texts[0].PlainText
	}
	if texts[0].Text != nil {
		return texts[0].Text.Content
	}
	return ""
}
