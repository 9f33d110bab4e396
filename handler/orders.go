package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	"shop-assistant/internal/domain"
	"shop-assistant/internal/usecase"
)

type quantityRequest struct {
	Quantity *int64 `json:"quantity"`
}

type removedResponse struct {
	Removed int `json:"removed"`
}

type ordersResponse struct {
	Status string                `json:"status"`
	Orders []domain.OrderSummary `json:"orders"`
}

type adminOrdersResponse struct {
	Status string         `json:"status"`
	Orders []domain.Order `json:"orders"`
}

func (h *Handler) updatePurchase(ctx context.Context, req events.APIGatewayProxyRequest, productID, cid string) events.APIGatewayProxyResponse {
	var body quantityRequest
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil || body.Quantity == nil {
		return errorJSON(http.StatusBadRequest, string(usecase.ErrorInvalidInput), "invalid_json", cid)
	}
	line, err := h.uc.UpdateCartLine(ctx, callerFrom(req).identity, productID, *body.Quantity)
	if err != nil {
		return h.fromError(ctx, err, cid)
	}
	return okJSON(http.StatusOK, line)
}

// removePurchases takes a JSON array of product ids.
func (h *Handler) removePurchases(ctx context.Context, req events.APIGatewayProxyRequest, cid string) events.APIGatewayProxyResponse {
	var ids []string
	if err := json.Unmarshal([]byte(req.Body), &ids); err != nil {
		return errorJSON(http.StatusBadRequest, string(usecase.ErrorInvalidInput), "invalid_json", cid)
	}
	n, err := h.uc.RemoveCartLines(ctx, callerFrom(req).identity, ids)
	if err != nil {
		return h.fromError(ctx, err, cid)
	}
	return okJSON(http.StatusOK, removedResponse{Removed: n})
}

func (h *Handler) buy(ctx context.Context, req events.APIGatewayProxyRequest, cid string) events.APIGatewayProxyResponse {
	var items []usecase.BuyItem
	if err := json.Unmarshal([]byte(req.Body), &items); err != nil {
		return errorJSON(http.StatusBadRequest, string(usecase.ErrorInvalidInput), "invalid_json", cid)
	}
	c := callerFrom(req)
	sum, err := h.uc.Buy(ctx, c.identity, items)
	if err != nil {
		return h.fromError(ctx, err, cid)
	}
	zerolog.Ctx(ctx).Info().Str("order_id", sum.ID).Str("user_id", c.identity.UserID).Int("items", len(items)).Msg("products bought")
	return okJSON(http.StatusCreated, sum)
}

// listOrders returns the caller's orders, or every customer's for admins.
func (h *Handler) listOrders(ctx context.Context, req events.APIGatewayProxyRequest, cid string) events.APIGatewayProxyResponse {
	c := callerFrom(req)
	if !c.identity.Authenticated() {
		return errorJSON(http.StatusUnauthorized, string(usecase.ErrorUnauthorized), "login_required", cid)
	}
	status, ok := statusQuery(req)
	if !ok {
		return errorJSON(http.StatusBadRequest, string(usecase.ErrorInvalidInput), "invalid_status", cid)
	}

	if c.role == adminRole {
		limit := 0
		if raw := strings.TrimSpace(req.QueryStringParameters["limit"]); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return errorJSON(http.StatusBadRequest, string(usecase.ErrorInvalidInput), "invalid_limit", cid)
			}
			limit = n
		}
		orders, err := h.uc.AdminListOrders(ctx, status, limit)
		if err != nil {
			return h.fromError(ctx, err, cid)
		}
		return okJSON(http.StatusOK, adminOrdersResponse{Status: status.String(), Orders: orders})
	}

	orders, err := h.uc.ListOrders(ctx, c.identity, status)
	if err != nil {
		return h.fromError(ctx, err, cid)
	}
	return okJSON(http.StatusOK, ordersResponse{Status: status.String(), Orders: orders})
}

func (h *Handler) orderDetail(ctx context.Context, req events.APIGatewayProxyRequest, orderID, cid string) events.APIGatewayProxyResponse {
	c := callerFrom(req)
	o, err := h.uc.OrderDetail(ctx, c.identity, orderID, c.role == adminRole)
	if err != nil {
		return h.fromError(ctx, err, cid)
	}
	return okJSON(http.StatusOK, o)
}

func (h *Handler) cancelOrder(ctx context.Context, req events.APIGatewayProxyRequest, orderID, cid string) events.APIGatewayProxyResponse {
	c := callerFrom(req)
	sum, err := h.uc.CancelOrderByID(ctx, c.identity, orderID)
	if err != nil {
		return h.fromError(ctx, err, cid)
	}
	zerolog.Ctx(ctx).Info().Str("order_id", sum.ID).Str("by", c.identity.UserID).Msg("order cancelled")
	return okJSON(http.StatusOK, sum)
}
