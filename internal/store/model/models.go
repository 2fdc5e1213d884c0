package model

import (
	"gorm.io/datatypes"
)

// StopUpdateModel 记录一次被接受的止损上移/下移，作为审计轨迹。
type StopUpdateModel struct {
	ID            string  `gorm:"column:id;primaryKey"`
	PositionID    string  `gorm:"column:position_id;index"`
	Symbol        string  `gorm:"column:symbol;index"`
	Side          string  `gorm:"column:side"`
	PreviousStop  float64 `gorm:"column:previous_stop"`
	NewStop       float64 `gorm:"column:new_stop"`
	Price         float64 `gorm:"column:price"`
	Reason        string  `gorm:"column:reason"`
	CreatedAtUnix int64   `gorm:"column:created_at;index"`
}

func (StopUpdateModel) TableName() string { return "trailing_stop_updates" }

// PortfolioReportModel 保存组合风险报告，完整报告以 JSON 存放在 payload 列。
type PortfolioReportModel struct {
	ID              string         `gorm:"column:id;primaryKey"`
	RiskScore       float64        `gorm:"column:risk_score"`
	TotalValue      float64        `gorm:"column:total_value"`
	Violations      int            `gorm:"column:violations"`
	Recommendations int            `gorm:"column:recommendations"`
	Payload         datatypes.JSON `gorm:"column:payload"`
	CreatedAtUnix   int64          `gorm:"column:created_at;index"`
}

func (PortfolioReportModel) TableName() string { return "portfolio_reports" }
