// internal/service/order/domain/state.go
package domain

// State 定义了订单的生命周期状态。
// undecided 是唯一的非终态：协调器在有界等待超时后不猜测结果，
// 把订单挂起，交给对账 worker 去核实。
type State string

const (
	StateConfirmed State = "confirmed" // 扣减成功，终态
	StateFailed    State = "failed"    // 确定性失败（库存不足等）或对账次数耗尽，终态
	StateUndecided State = "undecided" // 扣减结果未知，等待对账
)

// IsTerminal 判断状态是否为终态。终态一旦写入就不再改变。
func (s State) IsTerminal() bool {
	return s == StateConfirmed || s == StateFailed
}
