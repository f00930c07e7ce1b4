package algo

import (
	"errors"
	"time"

	"github.com/KNICEX/algo-trading/internal/service/exchange"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const AppName = "AlgoTrading"

var (
	ErrUnknownContract   = errors.New("contract not found")
	ErrUnknownTemplate   = errors.New("algo template not found")
	ErrInvalidParameters = errors.New("invalid algo parameters")
	ErrUnknownOrder      = errors.New("order not found")
	ErrZeroRoundedVolume = errors.New("order volume rounds to zero")
)

// Status 算法状态
type Status string

const (
	StatusPaused   Status = "Paused"
	StatusRunning  Status = "Running"
	StatusStopped  Status = "Stopped"
	StatusFinished Status = "Finished"
)

// IsTerminal 停止和结束是终态
func (s Status) IsTerminal() bool {
	return s == StatusStopped || s == StatusFinished
}

// Field 参数或变量的名值对，只用于对外展示
type Field struct {
	Name  string
	Value any
}

func fieldsToMap(fields []Field) map[string]any {
	return lo.SliceToMap(fields, func(f Field) (string, any) {
		return f.Name, f.Value
	})
}

// Strategy 各算法实现的回调，运行在基础状态机之上
type Strategy interface {
	OnTick(tick exchange.Tick)
	OnOrder(order exchange.Order)
	OnTrade(trade exchange.Trade)
	OnTimer()

	Parameters() []Field
	Variables() []Field
}

// Validator 在构造后校验参数，失败的实例直接结束
type Validator interface {
	Validate() error
}

// callbacks 提供空回调，算法只覆盖自己关心的部分
type callbacks struct{}

func (callbacks) OnTick(exchange.Tick)   {}
func (callbacks) OnOrder(exchange.Order) {}
func (callbacks) OnTrade(exchange.Trade) {}
func (callbacks) OnTimer()               {}

// Snapshot 算法实例的公开视图，随 eAlgoUpdate 事件推送
type Snapshot struct {
	Name        string             `json:"algo_name"`
	Template    string             `json:"template"`
	Symbol      string             `json:"vt_symbol"`
	Direction   exchange.Direction `json:"direction"`
	Offset      exchange.Offset    `json:"offset"`
	Price       decimal.Decimal    `json:"price"`
	Volume      decimal.Decimal    `json:"volume"`
	Status      Status             `json:"status"`
	Traded      decimal.Decimal    `json:"traded"`
	Left        decimal.Decimal    `json:"left"`
	TradedPrice decimal.Decimal    `json:"traded_price"`
	Parameters  map[string]any     `json:"parameters"`
	Variables   map[string]any     `json:"variables"`
}

// LogEntry 随 eAlgoLog 事件推送
type LogEntry struct {
	Time     time.Time `json:"time"`
	AlgoName string    `json:"algo_name,omitempty"`
	Msg      string    `json:"msg"`
}
