package paper

import (
	"context"
	"log/slog"
	"time"

	"github.com/KNICEX/algo-trading/internal/service/exchange"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
)

type ContractConfig struct {
	Symbol    string  `mapstructure:"symbol"` // <code>.<EXCHANGE>
	MinVolume string  `mapstructure:"min_volume"`
	PriceTick string  `mapstructure:"price_tick"`
	BasePrice float64 `mapstructure:"base_price"` // 仅 mock 数据源使用
}

type ReplayConfig struct {
	Source       string           `mapstructure:"source"` // binance | mock
	Interval     Interval         `mapstructure:"interval"`
	Lookback     time.Duration    `mapstructure:"lookback"`
	TickInterval time.Duration    `mapstructure:"tick_interval"`
	Trend        TrendType        `mapstructure:"trend"`
	Contracts    []ContractConfig `mapstructure:"contracts"`
}

// Replayer 把K线拆成行情逐笔喂给模拟网关，每个合约一个 goroutine
type Replayer struct {
	gw       *Gateway
	provider KlineProvider
	cfg      ReplayConfig
}

func NewReplayer(gw *Gateway, provider KlineProvider, cfg ReplayConfig) *Replayer {
	if cfg.Interval == "" {
		cfg.Interval = Interval1m
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 24 * time.Hour
	}
	return &Replayer{gw: gw, provider: provider, cfg: cfg}
}

func (r *Replayer) Name() string {
	return "kline replayer"
}

func (r *Replayer) Run(ctx context.Context) error {
	end := time.Now()
	start := end.Add(-r.cfg.Lookback)

	p := pool.New().WithContext(ctx)
	for _, c := range r.cfg.Contracts {
		contract, ok := r.gw.GetContract(c.Symbol)
		if !ok {
			slog.Warn("replay skipped, contract not registered", "symbol", c.Symbol)
			continue
		}
		p.Go(func(ctx context.Context) error {
			return r.replay(ctx, contract, start, end)
		})
	}
	return p.Wait()
}

func (r *Replayer) replay(ctx context.Context, contract exchange.Contract, start, end time.Time) error {
	klines, err := r.provider.GetKlines(ctx, contract.Symbol, r.cfg.Interval, start, end)
	if err != nil {
		return err
	}
	slog.Info("replay started", "symbol", contract.VtSymbol(), "klines", len(klines))

	for _, kline := range klines {
		for _, tick := range KlineToTicks(contract, kline) {
			r.gw.UpdateTick(tick)
			if r.cfg.TickInterval <= 0 {
				continue
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(r.cfg.TickInterval):
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	slog.Info("replay finished", "symbol", contract.VtSymbol())
	return nil
}

// KlineToTicks 按开-低-高-收（阴线为开-高-低-收）拆成四笔行情，
// 买一为价格本身，卖一高一个最小变动价位，盘口数量取K线成交量的四分之一
func KlineToTicks(contract exchange.Contract, k Kline) []exchange.Tick {
	prices := []decimal.Decimal{k.Open, k.Low, k.High, k.Close}
	if k.Close.LessThan(k.Open) {
		prices = []decimal.Decimal{k.Open, k.High, k.Low, k.Close}
	}

	step := k.CloseTime.Sub(k.OpenTime) / time.Duration(len(prices))
	volume := k.Volume.Div(decimal.NewFromInt(int64(len(prices))))

	ticks := make([]exchange.Tick, len(prices))
	for i, price := range prices {
		ticks[i] = exchange.Tick{
			Symbol:     contract.Symbol,
			Exchange:   contract.Exchange,
			Datetime:   k.OpenTime.Add(step * time.Duration(i)),
			LastPrice:  price,
			BidPrice1:  price,
			AskPrice1:  price.Add(contract.PriceTick),
			BidVolume1: volume,
			AskVolume1: volume,
			LimitUp:    decimal.Zero,
			LimitDown:  decimal.Zero,
		}
	}
	return ticks
}
