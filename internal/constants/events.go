package constants

// 事件类型常量
const (
	// 结算事件
	EventSettlementCompleted = "settlement.completed"

	// 收益事件: 单次运行或当日收益超过阈值
	EventHighEarnings = "earnings.high"

	// 订单事件
	EventOrderFailed = "order.failed"
)
