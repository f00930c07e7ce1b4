package algo

import (
	"fmt"

	"github.com/KNICEX/algo-trading/internal/service/exchange"
	"github.com/shopspring/decimal"
)

var stopFactory = Factory{
	Name:        "StopAlgo",
	DisplayName: "Stop 条件委托",
	DefaultSetting: []Field{
		{Name: "price_add", Value: 0},
	},
	Variables: []string{"vt_orderid", "traded", "order_status"},
	New:       newStopAlgo,
}

// StopAlgo 最新价触及触发价后，以触发价加减 price_add 发出一笔委托，只触发一次
type StopAlgo struct {
	*Template
	callbacks

	priceAdd decimal.Decimal

	orderId     exchange.OrderId
	orderTraded decimal.Decimal
	orderStatus exchange.OrderStatus

	err error
}

func newStopAlgo(t *Template, setting Setting) Strategy {
	r := newSettingReader(setting)
	a := &StopAlgo{
		Template:    t,
		priceAdd:    r.Decimal("price_add", decimal.Zero),
		orderTraded: decimal.Zero,
	}
	a.err = r.Err()
	return a
}

func (a *StopAlgo) Validate() error {
	if a.err != nil {
		return a.err
	}
	if a.priceAdd.IsNegative() {
		return fmt.Errorf("price_add must not be negative, got %s", a.priceAdd)
	}
	return nil
}

func (a *StopAlgo) OnTick(tick exchange.Tick) {
	if !a.orderId.IsZero() {
		return
	}

	switch a.direction {
	case exchange.DirectionLong:
		if tick.LastPrice.GreaterThanOrEqual(a.price) {
			price := a.price.Add(a.priceAdd)
			if tick.LimitUp.IsPositive() {
				price = decimal.Min(price, tick.LimitUp)
			}
			a.orderId = a.Buy(price, a.Left(), exchange.OrderTypeLimit, a.offset)
		}
	case exchange.DirectionShort:
		if tick.LastPrice.LessThanOrEqual(a.price) {
			price := a.price.Sub(a.priceAdd)
			if tick.LimitDown.IsPositive() {
				price = decimal.Max(price, tick.LimitDown)
			}
			a.orderId = a.Sell(price, a.Left(), exchange.OrderTypeLimit, a.offset)
		}
	}

	if !a.orderId.IsZero() {
		a.WriteLog(fmt.Sprintf("stop triggered at %s, order %s", tick.LastPrice, a.orderId))
	}
	a.PutEvent()
}

func (a *StopAlgo) OnOrder(order exchange.Order) {
	if order.OrderId != a.orderId {
		return
	}
	a.orderTraded = order.Traded
	a.orderStatus = order.Status

	if !order.IsActive() {
		a.Finish()
		return
	}
	a.PutEvent()
}

func (a *StopAlgo) OnTrade(exchange.Trade) {
	if a.Left().LessThanOrEqual(decimal.Zero) {
		a.Finish()
		return
	}
	a.PutEvent()
}

func (a *StopAlgo) Parameters() []Field {
	return []Field{
		{Name: "price_add", Value: a.priceAdd},
	}
}

func (a *StopAlgo) Variables() []Field {
	return []Field{
		{Name: "vt_orderid", Value: a.orderId},
		{Name: "traded", Value: a.orderTraded},
		{Name: "order_status", Value: a.orderStatus},
	}
}
