// internal/service/order/infrastructure/adapter/inventory_http_adapter.go
package adapter

import (
	"context"
	"encoding/json"
	"net/http"

	pkgerrors "github.com/pkg/errors"

	"orderflow/internal/pkg/constants"
	"orderflow/internal/pkg/httpclient"
	"orderflow/internal/service/order/domain"
	"orderflow/internal/service/order/domain/port"
)

// InventoryHTTPAdapter 是 port.DeductionService 的 HTTP 实现。
// 下游的确定性拒绝（400/404/409）翻译成 *domain.RejectionError，
// 其余一切（网络错误、超时、5xx）原样返回，按瞬态处理。
type InventoryHTTPAdapter struct {
	client *httpclient.Client
}

func NewInventoryHTTPAdapter(client *httpclient.Client) *InventoryHTTPAdapter {
	return &InventoryHTTPAdapter{client: client}
}

type deductRequest struct {
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type deductErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Deduct 调用 inventory-service 执行（幂等的）库存扣减。
func (a *InventoryHTTPAdapter) Deduct(ctx context.Context, orderID, productID string, quantity int) (*port.DeductionResult, error) {
	req := deductRequest{OrderID: orderID, ProductID: productID, Quantity: quantity}

	// 成功和失败的响应体形状不同，先拿原始状态码再决定怎么解
	status, body, err := a.client.PostJSON(ctx, constants.InventoryService, constants.InventoryDeductPath, req)
	if err != nil {
		// 传输层错误：连接拒绝、context 超时等，瞬态
		return nil, pkgerrors.Wrap(err, "deduct call failed")
	}

	switch status {
	case http.StatusOK:
		var result port.DeductionResult
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, pkgerrors.Wrap(err, "failed to decode deduct response")
		}
		return &result, nil
	case http.StatusBadRequest, http.StatusNotFound, http.StatusConflict:
		// 确定性拒绝。响应体解不出来时用状态码兜底构造错误码
		var errBody deductErrorBody
		_ = json.Unmarshal(body, &errBody)
		code := errBody.Error.Code
		if code == "" {
			code = codeForStatus(status)
		}
		return nil, &domain.RejectionError{Code: code, Message: errBody.Error.Message}
	default:
		return nil, pkgerrors.Errorf("inventory service returned status %d", status)
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "INVALID_INPUT"
	case http.StatusNotFound:
		return "PRODUCT_NOT_FOUND"
	case http.StatusConflict:
		return "INSUFFICIENT_STOCK"
	default:
		return "UNKNOWN"
	}
}
