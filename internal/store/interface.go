package store

import (
	"context"

	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/portfolio"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/reward"
	"github.com/ShizNick84/SmoothSail-sub010/internal/risk/trailing"
)

// StopAuditRepository persists accepted trailing stop moves.
type StopAuditRepository interface {
	SaveStopUpdate(ctx context.Context, rec trailing.Update) error
	ListStopUpdates(ctx context.Context, positionID string, limit int) ([]trailing.Update, error)
}

// PortfolioReportRepository persists portfolio risk reports.
type PortfolioReportRepository interface {
	SavePortfolioReport(ctx context.Context, rep portfolio.Report) error
	LatestPortfolioReport(ctx context.Context) (portfolio.Report, bool, error)
}

// DecisionJournal is an append-only log of risk/reward decisions.
type DecisionJournal interface {
	Append(ctx context.Context, a reward.Analysis) (int64, error)
}
