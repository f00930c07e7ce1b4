package ioc

import (
	"log/slog"

	"github.com/KNICEX/algo-trading/internal/schedule"
	"github.com/KNICEX/algo-trading/internal/service/notification"
	"github.com/KNICEX/algo-trading/internal/service/notification/kafka"
	"github.com/KNICEX/algo-trading/internal/service/notification/ws"
	"github.com/spf13/viper"
)

// InitNotifiers 返回启用的通知渠道、需要运行的任务以及退出时的清理函数
func InitNotifiers() ([]notification.Notifier, []schedule.Task, func()) {
	var kafkaCfg kafka.Config
	if err := viper.UnmarshalKey("notification.kafka", &kafkaCfg); err != nil {
		panic(err)
	}
	var wsCfg ws.Config
	if err := viper.UnmarshalKey("notification.websocket", &wsCfg); err != nil {
		panic(err)
	}

	var (
		notifiers []notification.Notifier
		tasks     []schedule.Task
		closers   []func() error
	)
	if kafkaCfg.Enabled {
		p := kafka.NewPublisher(kafkaCfg)
		notifiers = append(notifiers, p)
		closers = append(closers, p.Close)
	}
	if wsCfg.Enabled {
		hub := ws.NewHub(wsCfg)
		notifiers = append(notifiers, hub)
		tasks = append(tasks, hub)
	}

	return notifiers, tasks, func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Error("close notifier", "error", err)
			}
		}
	}
}
