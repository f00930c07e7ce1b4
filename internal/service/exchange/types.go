package exchange

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction 买卖方向
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

func (d Direction) IsValid() bool {
	return d == DirectionLong || d == DirectionShort
}

// Offset 开平仓意图，现货场景下为 NONE
type Offset string

const (
	OffsetNone           Offset = "NONE"
	OffsetOpen           Offset = "OPEN"
	OffsetClose          Offset = "CLOSE"
	OffsetCloseToday     Offset = "CLOSETODAY"
	OffsetCloseYesterday Offset = "CLOSEYESTERDAY"
)

type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

type OrderStatus string

const (
	OrderStatusSubmitting OrderStatus = "SUBMITTING"
	OrderStatusNotTraded  OrderStatus = "NOTTRADED"
	OrderStatusPartTraded OrderStatus = "PARTTRADED"
	OrderStatusAllTraded  OrderStatus = "ALLTRADED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusRejected   OrderStatus = "REJECTED"
)

// IsActive 订单是否仍可能成交
func (s OrderStatus) IsActive() bool {
	switch s {
	case OrderStatusSubmitting, OrderStatusNotTraded, OrderStatusPartTraded:
		return true
	default:
		return false
	}
}

type OrderId string

func (id OrderId) IsZero() bool {
	return id == ""
}

func (id OrderId) ToString() string {
	return string(id)
}

// VtSymbol 拼接 "<code>.<EXCHANGE>" 形式的代码
func VtSymbol(symbol, exchange string) string {
	return fmt.Sprintf("%s.%s", symbol, exchange)
}

// SplitSymbol 拆分 "<code>.<EXCHANGE>"，没有交易所后缀时 exchange 为空
func SplitSymbol(vtSymbol string) (symbol string, exchange string) {
	idx := strings.LastIndex(vtSymbol, ".")
	if idx < 0 {
		return vtSymbol, ""
	}
	return vtSymbol[:idx], vtSymbol[idx+1:]
}

// Contract 合约信息
type Contract struct {
	Symbol    string
	Exchange  string
	Name      string
	MinVolume decimal.Decimal // 最小下单数量变动
	PriceTick decimal.Decimal // 最小价格变动
}

func (c Contract) VtSymbol() string {
	return VtSymbol(c.Symbol, c.Exchange)
}

// Tick 盘口快照，只包含执行引擎需要读取的字段
type Tick struct {
	Symbol     string
	Exchange   string
	Datetime   time.Time
	LastPrice  decimal.Decimal
	BidPrice1  decimal.Decimal
	AskPrice1  decimal.Decimal
	BidVolume1 decimal.Decimal
	AskVolume1 decimal.Decimal
	LimitUp    decimal.Decimal
	LimitDown  decimal.Decimal
}

func (t Tick) VtSymbol() string {
	return VtSymbol(t.Symbol, t.Exchange)
}

// Order 委托快照，由网关推送，执行引擎只读
type Order struct {
	OrderId   OrderId
	Symbol    string
	Exchange  string
	Direction Direction
	Offset    Offset
	Type      OrderType
	Price     decimal.Decimal
	Volume    decimal.Decimal
	Traded    decimal.Decimal
	Status    OrderStatus
	Reference string
	Datetime  time.Time
}

func (o Order) VtSymbol() string {
	return VtSymbol(o.Symbol, o.Exchange)
}

func (o Order) IsActive() bool {
	return o.Status.IsActive()
}

func (o Order) CreateCancelRequest() CancelRequest {
	return CancelRequest{
		OrderId:  o.OrderId,
		Symbol:   o.Symbol,
		Exchange: o.Exchange,
	}
}

// Trade 成交回报
type Trade struct {
	TradeId   string
	OrderId   OrderId
	Symbol    string
	Exchange  string
	Direction Direction
	Offset    Offset
	Price     decimal.Decimal
	Volume    decimal.Decimal
	Datetime  time.Time
}

func (t Trade) VtSymbol() string {
	return VtSymbol(t.Symbol, t.Exchange)
}

type SubscribeRequest struct {
	Symbol   string
	Exchange string
}

func (r SubscribeRequest) VtSymbol() string {
	return VtSymbol(r.Symbol, r.Exchange)
}

type OrderRequest struct {
	Symbol    string
	Exchange  string
	Direction Direction
	Type      OrderType
	Price     decimal.Decimal
	Volume    decimal.Decimal
	Offset    Offset
	Reference string
}

func (r OrderRequest) VtSymbol() string {
	return VtSymbol(r.Symbol, r.Exchange)
}

// CreateOrder 根据请求生成初始委托快照
func (r OrderRequest) CreateOrder(id OrderId, now time.Time) Order {
	return Order{
		OrderId:   id,
		Symbol:    r.Symbol,
		Exchange:  r.Exchange,
		Direction: r.Direction,
		Offset:    r.Offset,
		Type:      r.Type,
		Price:     r.Price,
		Volume:    r.Volume,
		Traded:    decimal.Zero,
		Status:    OrderStatusSubmitting,
		Reference: r.Reference,
		Datetime:  now,
	}
}

type CancelRequest struct {
	OrderId  OrderId
	Symbol   string
	Exchange string
}
