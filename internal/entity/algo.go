package entity

import (
	"time"
)

// AlgoRecord 算法实例的最新快照，按实例名唯一
type AlgoRecord struct {
	Id          int64  `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"uniqueIndex"`
	Template    string `gorm:"index"`
	VtSymbol    string `gorm:"index"`
	Direction   string
	Offset      string
	Price       string
	Volume      string
	Traded      string
	TradedPrice string
	Status      string `gorm:"index"`
	Parameters  string // json
	Variables   string // json
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AlgoLog 算法日志
type AlgoLog struct {
	Id        int64     `gorm:"primaryKey;autoIncrement"`
	AlgoName  string    `gorm:"index"`
	Msg       string
	Time      time.Time `gorm:"index"`
	CreatedAt time.Time
}
