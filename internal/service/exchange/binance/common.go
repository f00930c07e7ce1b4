package binance

import (
	"github.com/KNICEX/algo-trading/internal/service/exchange"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
)

const ExchangeName = "BINANCE"

func futuresSide(direction exchange.Direction) futures.SideType {
	switch direction {
	case exchange.DirectionLong:
		return futures.SideTypeBuy
	case exchange.DirectionShort:
		return futures.SideTypeSell
	default:
		return ""
	}
}

func fromFuturesSide(side futures.SideType) exchange.Direction {
	switch side {
	case futures.SideTypeBuy:
		return exchange.DirectionLong
	case futures.SideTypeSell:
		return exchange.DirectionShort
	default:
		return exchange.Direction(side)
	}
}

func futuresOrderType(typ exchange.OrderType) futures.OrderType {
	switch typ {
	case exchange.OrderTypeLimit:
		return futures.OrderTypeLimit
	case exchange.OrderTypeMarket:
		return futures.OrderTypeMarket
	default:
		return ""
	}
}

// futuresPositionSide 双向持仓模式下，开仓与方向同侧，平仓与方向反侧；NONE 走单向持仓
func futuresPositionSide(direction exchange.Direction, offset exchange.Offset) futures.PositionSideType {
	switch offset {
	case exchange.OffsetOpen:
		if direction == exchange.DirectionLong {
			return futures.PositionSideTypeLong
		}
		return futures.PositionSideTypeShort
	case exchange.OffsetClose, exchange.OffsetCloseToday, exchange.OffsetCloseYesterday:
		if direction == exchange.DirectionLong {
			return futures.PositionSideTypeShort
		}
		return futures.PositionSideTypeLong
	default:
		return futures.PositionSideTypeBoth
	}
}

func fromFuturesOrderStatus(status futures.OrderStatusType) exchange.OrderStatus {
	switch status {
	case futures.OrderStatusTypeNew:
		return exchange.OrderStatusNotTraded
	case futures.OrderStatusTypePartiallyFilled:
		return exchange.OrderStatusPartTraded
	case futures.OrderStatusTypeFilled:
		return exchange.OrderStatusAllTraded
	case futures.OrderStatusTypeCanceled, futures.OrderStatusTypeExpired:
		return exchange.OrderStatusCancelled
	case futures.OrderStatusTypeRejected:
		return exchange.OrderStatusRejected
	default:
		return exchange.OrderStatus(status)
	}
}

// parseDecimal 交易所推送的数字都是字符串，空串按 0 处理
func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// fromFuturesSymbol 从交易规则里取数量步长和价格步长
func fromFuturesSymbol(s futures.Symbol) exchange.Contract {
	contract := exchange.Contract{
		Symbol:    s.Symbol,
		Exchange:  ExchangeName,
		Name:      s.BaseAsset + "/" + s.QuoteAsset,
		MinVolume: decimal.Zero,
		PriceTick: decimal.Zero,
	}
	if f := s.LotSizeFilter(); f != nil {
		contract.MinVolume = parseDecimal(f.StepSize)
	}
	if f := s.PriceFilter(); f != nil {
		contract.PriceTick = parseDecimal(f.TickSize)
	}
	return contract
}
