package algo

import (
	"fmt"

	"github.com/KNICEX/algo-trading/internal/service/exchange"
	"github.com/shopspring/decimal"
)

var icebergFactory = Factory{
	Name:        "IcebergAlgo",
	DisplayName: "Iceberg 冰山",
	DefaultSetting: []Field{
		{Name: "display_volume", Value: 0},
		{Name: "interval", Value: 0},
	},
	Variables: []string{"timer_count", "vt_orderid"},
	New:       newIcebergAlgo,
}

// IcebergAlgo 同一时间只挂出 display_volume 的数量
type IcebergAlgo struct {
	*Template
	callbacks

	displayVolume decimal.Decimal
	interval      int

	timerCount int
	orderId    exchange.OrderId

	err error
}

func newIcebergAlgo(t *Template, setting Setting) Strategy {
	r := newSettingReader(setting)
	a := &IcebergAlgo{
		Template:      t,
		displayVolume: r.Decimal("display_volume", decimal.Zero),
		interval:      r.Int("interval", 0),
	}
	a.err = r.Err()
	return a
}

func (a *IcebergAlgo) Validate() error {
	if a.err != nil {
		return a.err
	}
	if !a.displayVolume.IsPositive() {
		return fmt.Errorf("display_volume must be positive, got %s", a.displayVolume)
	}
	if a.interval <= 0 {
		return fmt.Errorf("interval must be positive, got %d", a.interval)
	}
	return nil
}

func (a *IcebergAlgo) OnOrder(order exchange.Order) {
	a.WriteLog(fmt.Sprintf("order %s status %s", order.OrderId, order.Status))
	if order.OrderId == a.orderId && !order.IsActive() {
		a.orderId = ""
		a.PutEvent()
	}
}

func (a *IcebergAlgo) OnTrade(exchange.Trade) {
	if a.Left().LessThanOrEqual(decimal.Zero) {
		a.Finish()
		return
	}
	a.PutEvent()
}

func (a *IcebergAlgo) OnTimer() {
	a.timerCount++
	if a.timerCount < a.interval {
		a.PutEvent()
		return
	}
	a.timerCount = 0

	tick, ok := a.GetTick()
	if !ok {
		return
	}

	if a.orderId.IsZero() {
		volume := decimal.Min(a.displayVolume, a.Left())
		if volume.IsPositive() {
			a.orderId = a.Send(a.price, volume)
		}
	} else if a.touchCrossed(tick) {
		// 对手价已越过委托价仍未成交，撤单后等回报再重新挂单
		a.WriteLog(fmt.Sprintf("touch crossed limit, cancel order %s", a.orderId))
		a.CancelOrder(a.orderId)
	}

	a.PutEvent()
}

func (a *IcebergAlgo) touchCrossed(tick exchange.Tick) bool {
	if a.direction == exchange.DirectionLong {
		return tick.AskPrice1.LessThanOrEqual(a.price)
	}
	return tick.BidPrice1.GreaterThanOrEqual(a.price)
}

func (a *IcebergAlgo) Parameters() []Field {
	return []Field{
		{Name: "display_volume", Value: a.displayVolume},
		{Name: "interval", Value: a.interval},
	}
}

func (a *IcebergAlgo) Variables() []Field {
	return []Field{
		{Name: "timer_count", Value: a.timerCount},
		{Name: "vt_orderid", Value: a.orderId},
	}
}
