package monitor

import (
	"context"
	"fmt"

	"github.com/KNICEX/algo-trading/internal/service/event"
	"github.com/KNICEX/algo-trading/internal/service/notification"
)

// Registrar 事件注册接口，event.Engine 实现了它
type Registrar interface {
	Register(typ event.Type, handler event.Handler)
}

type consoleNotifier struct {
}

func (c consoleNotifier) Notify(ctx context.Context, msg notification.Message) error {
	switch {
	case msg.Log != nil:
		fmt.Println(msg.Log.Time.Format("15:04:05"), msg.Log.Msg)
	case msg.Algo != nil:
		fmt.Printf("%s %s traded %s/%s @ %s\n", msg.Algo.Name, msg.Algo.Status,
			msg.Algo.Traded, msg.Algo.Volume, msg.Algo.TradedPrice)
	}
	return nil
}
