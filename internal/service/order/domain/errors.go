// internal/service/order/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// ErrOrderNotFound 订单不存在。
var ErrOrderNotFound = errors.New("order not found")

// ErrOrderAlreadyExists 同号订单已存在。两个携带同一幂等键的并发请求
// 会同时错过幂等检查，输掉插入的一方收到这个错误，按重放处理。
var ErrOrderAlreadyExists = errors.New("order already exists")

// RejectionError 表示下游的确定性业务拒绝（库存不足、商品不存在、参数非法）。
// 这类错误直接把订单置为 failed，对账不会重试。
type RejectionError struct {
	Code    string
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsDefinitiveRejection 判断错误是否为确定性业务拒绝。
// 其余错误（超时、连接拒绝、5xx）一律按瞬态处理，由对账 worker 退避重试。
func IsDefinitiveRejection(err error) bool {
	var rejection *RejectionError
	return errors.As(err, &rejection)
}
