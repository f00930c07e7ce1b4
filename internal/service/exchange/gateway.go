package exchange

import "errors"

var (
	ErrUnknownContract = errors.New("contract not found")
	ErrUnknownOrder    = errors.New("order not found")
	ErrInvalidRequest  = errors.New("invalid order request")
)

// Gateway 交易网关，执行引擎通过它查询合约/行情/委托并收发指令。
// SendOrder 与 CancelOrder 不等待交易所确认，结果通过 eOrder/eTrade 事件异步回报。
type Gateway interface {
	Name() string

	GetContract(vtSymbol string) (Contract, bool)
	GetTick(vtSymbol string) (Tick, bool)
	GetOrder(id OrderId) (Order, bool)

	Subscribe(req SubscribeRequest) error
	SendOrder(req OrderRequest) (OrderId, error)
	CancelOrder(req CancelRequest) error
}
