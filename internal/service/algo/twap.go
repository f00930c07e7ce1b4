package algo

import (
	"errors"
	"fmt"

	"github.com/KNICEX/algo-trading/internal/service/exchange"
	"github.com/KNICEX/algo-trading/pkg/decimalx"
	"github.com/shopspring/decimal"
)

var twapFactory = Factory{
	Name:        "TwapAlgo",
	DisplayName: "TWAP 时间加权平均",
	DefaultSetting: []Field{
		{Name: "time", Value: 600},
		{Name: "interval", Value: 60},
	},
	Variables: []string{"order_volume", "timer_count", "total_count", "slice_count"},
	New:       newTwapAlgo,
}

// TwapAlgo 在 time 秒内每隔 interval 秒下一笔等量的限价单
type TwapAlgo struct {
	*Template
	callbacks

	time     int
	interval int

	orderVolume decimal.Decimal
	timerCount  int
	totalCount  int
	sliceCount  int

	err error
}

func newTwapAlgo(t *Template, setting Setting) Strategy {
	r := newSettingReader(setting)
	a := &TwapAlgo{
		Template:    t,
		time:        r.Int("time", 600),
		interval:    r.Int("interval", 60),
		orderVolume: decimal.Zero,
	}
	a.err = r.Err()

	if a.err == nil && a.time > 0 && a.interval > 0 {
		a.orderVolume = t.volume.Mul(decimal.NewFromInt(int64(a.interval))).Div(decimal.NewFromInt(int64(a.time)))
		if contract, ok := t.GetContract(); ok {
			a.orderVolume = decimalx.RoundTo(a.orderVolume, contract.MinVolume)
		}
	}
	return a
}

func (a *TwapAlgo) Validate() error {
	if a.err != nil {
		return a.err
	}
	if a.time <= 0 {
		return fmt.Errorf("time must be positive, got %d", a.time)
	}
	if a.interval <= 0 {
		return fmt.Errorf("interval must be positive, got %d", a.interval)
	}
	if a.interval > a.time {
		return errors.New("interval must not exceed time")
	}
	return nil
}

func (a *TwapAlgo) OnTrade(exchange.Trade) {
	if a.Left().LessThanOrEqual(decimal.Zero) {
		a.Finish()
		return
	}
	a.PutEvent()
}

// OnTimer 每到间隔计一期切片，到期的最后一期只计数不下单，随后结束
func (a *TwapAlgo) OnTimer() {
	a.timerCount++
	a.totalCount++
	a.PutEvent()

	if a.timerCount >= a.interval {
		a.timerCount = 0
		a.sliceCount++
		if a.totalCount < a.time {
			a.sendSlice()
		}
	}

	if a.totalCount >= a.time {
		a.WriteLog("execution time elapsed")
		a.Finish()
	}
}

func (a *TwapAlgo) sendSlice() {
	tick, ok := a.GetTick()
	if !ok {
		return
	}

	a.CancelAll()

	volume := decimal.Min(a.orderVolume, a.Left())
	if !volume.IsPositive() {
		return
	}

	switch a.direction {
	case exchange.DirectionLong:
		if tick.AskPrice1.LessThanOrEqual(a.price) {
			a.Buy(a.price, volume, exchange.OrderTypeLimit, a.offset)
		}
	case exchange.DirectionShort:
		if tick.BidPrice1.GreaterThanOrEqual(a.price) {
			a.Sell(a.price, volume, exchange.OrderTypeLimit, a.offset)
		}
	}
}

func (a *TwapAlgo) Parameters() []Field {
	return []Field{
		{Name: "time", Value: a.time},
		{Name: "interval", Value: a.interval},
	}
}

func (a *TwapAlgo) Variables() []Field {
	return []Field{
		{Name: "order_volume", Value: a.orderVolume},
		{Name: "timer_count", Value: a.timerCount},
		{Name: "total_count", Value: a.totalCount},
		{Name: "slice_count", Value: a.sliceCount},
	}
}
