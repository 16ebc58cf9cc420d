// internal/service/inventory/domain/errors.go
package domain

import "errors"

var (
	// ErrProductNotFound 商品不存在，属于确定性失败，不重试
	ErrProductNotFound = errors.New("product not found")
	// ErrInsufficientStock 库存不足。注意：这种拒绝不落操作记录，
	// 调整后的新订单必须还能成功
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidInput 请求参数非法（数量 <= 0、缺少字段等）
	ErrInvalidInput = errors.New("invalid input")
	// ErrOperationNotFound 指定订单没有扣减记录
	ErrOperationNotFound = errors.New("inventory operation not found")
)
