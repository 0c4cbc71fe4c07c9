// Package assistant writes short saving tips from category insights, either
// with Gemini or from fixed templates.
package assistant

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-planner/internal/domain"
	"github.com/dvloznov/finance-planner/internal/logger"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// TipGenerator writes a saving tip for the current month.
type TipGenerator interface {
	SavingTip(ctx context.Context, insights []domain.CategoryInsight) (string, error)
}

// StaticTipGenerator picks a template based on the category whose spending
// grew the most.
type StaticTipGenerator struct{}

// SavingTip implements TipGenerator.
func (StaticTipGenerator) SavingTip(_ context.Context, insights []domain.CategoryInsight) (string, error) {
	if len(insights) == 0 {
		return "", nil
	}

	var worst *domain.CategoryInsight
	for i := range insights {
		in := &insights[i]
		if in.Trend != domain.TrendIncreased {
			continue
		}
		if worst == nil || growth(in).GreaterThan(growth(worst)) {
			worst = in
		}
	}

	if worst == nil {
		return "Spending is at or below last month in every category. Keeping the suggested limits will lock in the savings.", nil
	}
	return fmt.Sprintf(
		"%s spending is up by %s compared to last month. Try to stay under %s next month.",
		worst.Category,
		growth(worst).StringFixed(2),
		worst.SuggestedLimit.StringFixed(2),
	), nil
}

func growth(in *domain.CategoryInsight) decimal.Decimal {
	return in.CurrentSpending.Sub(in.PreviousSpending)
}

// FallbackTipGenerator tries Primary and falls back to Secondary when it
// fails or returns nothing.
type FallbackTipGenerator struct {
	Primary   TipGenerator
	Secondary TipGenerator
}

// SavingTip implements TipGenerator.
func (f FallbackTipGenerator) SavingTip(ctx context.Context, insights []domain.CategoryInsight) (string, error) {
	tip, err := f.Primary.SavingTip(ctx, insights)
	if err == nil && tip != "" {
		return tip, nil
	}
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Msg("Primary tip generator failed, using fallback")
	}
	return f.Secondary.SavingTip(ctx, insights)
}
