package notification

import (
	"context"

	"github.com/KNICEX/algo-trading/internal/service/algo"
)

type MessageType string

const (
	MessageAlgoUpdate MessageType = "algo_update"
	MessageAlgoLog    MessageType = "algo_log"
)

// Message 推送给外部观察者的算法事件，Algo 与 Log 二选一
type Message struct {
	Type MessageType    `json:"type"`
	Algo *algo.Snapshot `json:"algo,omitempty"`
	Log  *algo.LogEntry `json:"log,omitempty"`
}

// Key 消息归属的算法实例名，引擎自身的日志为空
func (m Message) Key() string {
	switch {
	case m.Algo != nil:
		return m.Algo.Name
	case m.Log != nil:
		return m.Log.AlgoName
	}
	return ""
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}
