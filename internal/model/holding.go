package model

import "time"

// Holding 是用户的一条持仓记录，(user_id, symbol) 唯一，Symbol 统一大写。
type Holding struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_holdings_user_symbol,priority:1" json:"userId"`
	Symbol      string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_holdings_user_symbol,priority:2" json:"symbol"`
	Quantity    float64   `gorm:"not null" json:"quantity"`
	AverageCost float64   `gorm:"not null" json:"averageCost"`
	Currency    string    `gorm:"type:varchar(3);not null;default:USD" json:"currency"`
	Note        string    `gorm:"type:varchar(500)" json:"note"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Holding) TableName() string {
	return "holdings"
}

// CostBasis 是某一币种下的持仓汇总。
type CostBasis struct {
	Currency  string  `json:"currency"`
	Positions int     `json:"positions"`
	TotalCost float64 `json:"totalCost"`
}
