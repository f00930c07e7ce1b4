package paper

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// KlineProvider K线数据提供者接口
// 可以有多种实现：币安API、模拟数据等
type KlineProvider interface {
	GetKlines(ctx context.Context, symbol string, interval Interval, start, end time.Time) ([]Kline, error)
}

var _ KlineProvider = (*BinanceKlineProvider)(nil)

// BinanceKlineProvider 从币安合约公开接口拉取历史K线，不需要 api key
type BinanceKlineProvider struct {
	cli *futures.Client
}

func NewBinanceKlineProvider(cli *futures.Client) *BinanceKlineProvider {
	return &BinanceKlineProvider{cli: cli}
}

func (p *BinanceKlineProvider) GetKlines(ctx context.Context, symbol string, interval Interval, start, end time.Time) ([]Kline, error) {
	svc := p.cli.NewKlinesService().Symbol(symbol).Interval(interval.ToString()).Limit(1500)
	if !start.IsZero() {
		svc.StartTime(start.UnixMilli())
	}
	if !end.IsZero() {
		svc.EndTime(end.UnixMilli())
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("get klines %s: %w", symbol, err)
	}
	return convertKlines(res)
}

func convertKlines(klines []*futures.Kline) ([]Kline, error) {
	kls := make([]Kline, len(klines))
	for i, k := range klines {
		values := make([]decimal.Decimal, 5)
		for j, s := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
			v, err := decimal.NewFromString(s)
			if err != nil {
				return nil, fmt.Errorf("parse kline at %d: %w", k.OpenTime, err)
			}
			values[j] = v
		}
		kls[i] = Kline{
			OpenTime:  time.UnixMilli(k.OpenTime),
			CloseTime: time.UnixMilli(k.CloseTime),
			Open:      values[0],
			High:      values[1],
			Low:       values[2],
			Close:     values[3],
			Volume:    values[4],
		}
	}
	return kls, nil
}

// TrendType 模拟K线的走势
type TrendType string

const (
	TrendUp       TrendType = "up"
	TrendDown     TrendType = "down"
	TrendVolatile TrendType = "volatile"
	TrendSideways TrendType = "sideways"
)

var _ KlineProvider = (*MockKlineProvider)(nil)

// MockKlineProvider 模拟K线数据提供者，用于离线模拟盘和测试
type MockKlineProvider struct {
	klines map[string][]Kline // key: symbol_interval
}

func NewMockKlineProvider() *MockKlineProvider {
	return &MockKlineProvider{
		klines: make(map[string][]Kline),
	}
}

func (p *MockKlineProvider) key(symbol string, interval Interval) string {
	return symbol + "_" + interval.ToString()
}

func (p *MockKlineProvider) AddKlines(symbol string, interval Interval, klines []Kline) {
	p.klines[p.key(symbol, interval)] = klines
}

// GenerateKlines 生成模拟K线数据
func (p *MockKlineProvider) GenerateKlines(
	symbol string,
	interval Interval,
	startTime time.Time,
	basePrice float64,
	count int,
	trend TrendType,
) error {
	step, err := interval.Duration()
	if err != nil {
		return err
	}

	klines := make([]Kline, count)
	for i := 0; i < count; i++ {
		var price float64
		switch trend {
		case TrendUp:
			// 每根K线涨0.5%
			price = basePrice * (1 + float64(i)*0.005)
		case TrendDown:
			price = basePrice * (1 - float64(i)*0.005)
		case TrendVolatile:
			if i%2 == 0 {
				price = basePrice * (1 + float64(i%10)*0.002)
			} else {
				price = basePrice * (1 - float64(i%10)*0.002)
			}
		default:
			// 横盘：小幅波动
			price = basePrice * (1 + (float64(i%5)-2)*0.001)
		}

		openTime := startTime.Add(time.Duration(i) * step)
		klines[i] = Kline{
			OpenTime:  openTime,
			CloseTime: openTime.Add(step),
			Open:      decimal.NewFromFloat(price * 0.999),
			High:      decimal.NewFromFloat(price * 1.005),
			Low:       decimal.NewFromFloat(price * 0.995),
			Close:     decimal.NewFromFloat(price),
			Volume:    decimal.NewFromFloat(1000 + float64(i)*10),
		}
	}

	p.AddKlines(symbol, interval, klines)
	return nil
}

func (p *MockKlineProvider) GetKlines(_ context.Context, symbol string, interval Interval, start, end time.Time) ([]Kline, error) {
	all := p.klines[p.key(symbol, interval)]
	return lo.Filter(all, func(k Kline, _ int) bool {
		if !start.IsZero() && k.OpenTime.Before(start) {
			return false
		}
		if !end.IsZero() && !k.OpenTime.Before(end) {
			return false
		}
		return true
	}), nil
}
