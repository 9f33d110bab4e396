package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"shop-assistant/internal/domain"
	"shop-assistant/internal/usecase"
)

const (
	headerCorrelationID = "X-Correlation-Id"
	headerSessionID     = "X-Session-Id"
	sessionCookie       = "sessionId"
	sessionCookieMaxAge = 30 * 24 * 60 * 60
	adminRole           = "admin"
	errorForbidden      = "FORBIDDEN"
)

type UseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	History(ctx context.Context, id domain.Identity) ([]domain.Message, error)
	ListPurchases(ctx context.Context, id domain.Identity, status domain.Status) ([]domain.CartLine, error)
	AdvanceOrderStatus(ctx context.Context, orderID string, next domain.Status) (domain.OrderSummary, error)
	UpdateCartLine(ctx context.Context, id domain.Identity, productID string, quantity int64) (domain.CartLine, error)
	RemoveCartLines(ctx context.Context, id domain.Identity, productIDs []string) (int, error)
	Buy(ctx context.Context, id domain.Identity, items []usecase.BuyItem) (domain.OrderSummary, error)
	CancelOrderByID(ctx context.Context, id domain.Identity, orderID string) (domain.OrderSummary, error)
	ListOrders(ctx context.Context, id domain.Identity, status domain.Status) ([]domain.OrderSummary, error)
	AdminListOrders(ctx context.Context, status domain.Status, limit int) ([]domain.Order, error)
	OrderDetail(ctx context.Context, id domain.Identity, orderID string, staff bool) (domain.Order, error)
}

type Handler struct {
	uc  UseCase
	log zerolog.Logger
}

type chatRequest struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"sessionId,omitempty"`
}

type historyResponse struct {
	Messages []domain.Message `json:"messages"`
}

type purchasesResponse struct {
	Status    string            `json:"status"`
	Purchases []domain.CartLine `json:"purchases"`
}

type statusRequest struct {
	Status json.RawMessage `json:"status"`
}

type errorResponse struct {
	Error         string `json:"error"`
	Reason        string `json:"reason,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// caller is who sent the request, as asserted by the API Gateway authorizer.
type caller struct {
	identity domain.Identity
	role     string
}

func NewHandler(uc UseCase, log zerolog.Logger) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc, log: log}, nil
}

// Handle routes one API Gateway proxy request.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	start := time.Now()
	cid := headerValue(req.Headers, headerCorrelationID)
	if cid == "" {
		cid = req.RequestContext.RequestID
	}
	if cid == "" {
		cid = uuid.NewString()
	}
	log := h.log.With().Str("correlation_id", cid).Str("method", req.HTTPMethod).Str("path", req.Path).Logger()
	ctx = log.WithContext(ctx)

	resp := h.route(ctx, req, cid)
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers[headerCorrelationID] = cid
	log.Info().Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("request handled")
	return resp, nil
}

func (h *Handler) route(ctx context.Context, req events.APIGatewayProxyRequest, cid string) events.APIGatewayProxyResponse {
	path := strings.TrimRight(req.Path, "/")
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	switch {
	case req.HTTPMethod == http.MethodPost && path == "/chat":
		return h.chat(ctx, req, cid)
	case req.HTTPMethod == http.MethodGet && path == "/chat/history":
		return h.history(ctx, req, cid)
	case req.HTTPMethod == http.MethodGet && path == "/purchases":
		return h.purchases(ctx, req, cid)
	case req.HTTPMethod == http.MethodDelete && path == "/purchases":
		return h.removePurchases(ctx, req, cid)
	case req.HTTPMethod == http.MethodPost && path == "/purchases/buy-products":
		return h.buy(ctx, req, cid)
	case req.HTTPMethod == http.MethodPut && len(parts) == 2 && parts[0] == "purchases":
		return h.updatePurchase(ctx, req, pathParam(req, "id", parts[1]), cid)
	case req.HTTPMethod == http.MethodGet && path == "/orders":
		return h.listOrders(ctx, req, cid)
	case req.HTTPMethod == http.MethodGet && len(parts) == 2 && parts[0] == "orders":
		return h.orderDetail(ctx, req, pathParam(req, "id", parts[1]), cid)
	case req.HTTPMethod == http.MethodPost && len(parts) == 3 && parts[0] == "orders" && parts[2] == "cancel":
		return h.cancelOrder(ctx, req, pathParam(req, "id", parts[1]), cid)
	case req.HTTPMethod == http.MethodPatch && len(parts) == 3 && parts[0] == "orders" && parts[2] == "status":
		return h.advanceStatus(ctx, req, pathParam(req, "id", parts[1]), cid)
	default:
		return errorJSON(http.StatusNotFound, string(usecase.ErrorNotFound), "route_not_found", cid)
	}
}

// pathParam prefers the value API Gateway extracted for name and falls back
// to the raw path segment.
func pathParam(req events.APIGatewayProxyRequest, name, segment string) string {
	if v := strings.TrimSpace(req.PathParameters[name]); v != "" {
		return v
	}
	return segment
}

func (h *Handler) chat(ctx context.Context, req events.APIGatewayProxyRequest, cid string) events.APIGatewayProxyResponse {
	var body chatRequest
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return errorJSON(http.StatusBadRequest, string(usecase.ErrorInvalidInput), "invalid_json", cid)
	}
	c := callerFrom(req)
	sessionID := c.identity.SessionID
	if sessionID == "" {
		sessionID = strings.TrimSpace(body.SessionID)
	}

	out, err := h.uc.Chat(ctx, usecase.ChatInput{
		Prompt:    body.Prompt,
		UserID:    c.identity.UserID,
		SessionID: sessionID,
	})
	if err != nil {
		return h.fromError(ctx, err, cid)
	}
	resp := okJSON(http.StatusOK, out)
	if out.NewSession {
		cookie := &http.Cookie{
			Name:     sessionCookie,
			Value:    out.SessionID,
			Path:     "/",
			MaxAge:   sessionCookieMaxAge,
			HttpOnly: true,
			Secure:   true,
			SameSite: http.SameSiteLaxMode,
		}
		resp.Headers["Set-Cookie"] = cookie.String()
	}
	return resp
}

func (h *Handler) history(ctx context.Context, req events.APIGatewayProxyRequest, cid string) events.APIGatewayProxyResponse {
	c := callerFrom(req)
	msgs, err := h.uc.History(ctx, c.identity)
	if err != nil {
		return h.fromError(ctx, err, cid)
	}
	return okJSON(http.StatusOK, historyResponse{Messages: msgs})
}

func (h *Handler) purchases(ctx context.Context, req events.APIGatewayProxyRequest, cid string) events.APIGatewayProxyResponse {
	status, ok := statusQuery(req)
	if !ok {
		return errorJSON(http.StatusBadRequest, string(usecase.ErrorInvalidInput), "invalid_status", cid)
	}
	lines, err := h.uc.ListPurchases(ctx, callerFrom(req).identity, status)
	if err != nil {
		return h.fromError(ctx, err, cid)
	}
	return okJSON(http.StatusOK, purchasesResponse{Status: status.String(), Purchases: lines})
}

func (h *Handler) advanceStatus(ctx context.Context, req events.APIGatewayProxyRequest, orderID, cid string) events.APIGatewayProxyResponse {
	c := callerFrom(req)
	if !c.identity.Authenticated() {
		return errorJSON(http.StatusUnauthorized, string(usecase.ErrorUnauthorized), "login_required", cid)
	}
	if c.role != adminRole {
		return errorJSON(http.StatusForbidden, errorForbidden, "admin_only", cid)
	}

	var body statusRequest
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil || len(body.Status) == 0 {
		return errorJSON(http.StatusBadRequest, string(usecase.ErrorInvalidInput), "invalid_json", cid)
	}
	next, err := domain.LookupStatus(strings.Trim(string(body.Status), `"`))
	if err != nil {
		return errorJSON(http.StatusBadRequest, string(usecase.ErrorInvalidInput), "invalid_status", cid)
	}

	sum, err := h.uc.AdvanceOrderStatus(ctx, orderID, next)
	if err != nil {
		return h.fromError(ctx, err, cid)
	}
	zerolog.Ctx(ctx).Info().Str("order_id", sum.ID).Str("to", next.String()).Str("by", c.identity.UserID).Msg("order status advanced")
	return okJSON(http.StatusOK, sum)
}

// statusQuery reads the optional status query parameter; absent means all.
func statusQuery(req events.APIGatewayProxyRequest) (domain.Status, bool) {
	raw := strings.TrimSpace(req.QueryStringParameters["status"])
	if raw == "" {
		return domain.StatusAll, true
	}
	s, err := domain.LookupStatus(raw)
	return s, err == nil
}

func (h *Handler) fromError(ctx context.Context, err error, cid string) events.APIGatewayProxyResponse {
	var ue *usecase.Error
	if !errors.As(err, &ue) {
		zerolog.Ctx(ctx).Error().Err(err).Msg("unexpected error")
		return errorJSON(http.StatusInternalServerError, string(usecase.ErrorInternal), "", cid)
	}
	status := statusFor(ue.Code)
	ev := zerolog.Ctx(ctx).Warn()
	if status >= http.StatusInternalServerError {
		ev = zerolog.Ctx(ctx).Error()
	}
	ev.Err(ue.Err).Str("code", string(ue.Code)).Str("reason", ue.Reason).Msg("request failed")
	return errorJSON(status, string(ue.Code), ue.Reason, cid)
}

func statusFor(code usecase.ErrorCode) int {
	switch code {
	case usecase.ErrorInvalidInput:
		return http.StatusBadRequest
	case usecase.ErrorUnauthorized:
		return http.StatusUnauthorized
	case usecase.ErrorNotFound:
		return http.StatusNotFound
	case usecase.ErrorConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// callerFrom reads the verified identity from the authorizer context and
// the anonymous session from the X-Session-Id header or the session cookie.
func callerFrom(req events.APIGatewayProxyRequest) caller {
	claims := req.RequestContext.Authorizer
	if nested, ok := claims["claims"].(map[string]interface{}); ok {
		claims = nested
	}
	c := caller{
		identity: domain.Identity{
			UserID:    firstString(claims, "userId", "sub"),
			SessionID: headerValue(req.Headers, headerSessionID),
		},
		role: strings.ToLower(firstString(claims, "role", "custom:role")),
	}
	if c.identity.SessionID == "" {
		c.identity.SessionID = sessionFromCookie(req)
	}
	return c
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func sessionFromCookie(req events.APIGatewayProxyRequest) string {
	header := http.Header{}
	for k, v := range req.Headers {
		if strings.EqualFold(k, "Cookie") {
			header.Add("Cookie", v)
		}
	}
	for k, vs := range req.MultiValueHeaders {
		if strings.EqualFold(k, "Cookie") {
			for _, v := range vs {
				header.Add("Cookie", v)
			}
		}
	}
	c, err := (&http.Request{Header: header}).Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func okJSON(status int, v any) events.APIGatewayProxyResponse {
	b, err := json.Marshal(v)
	if err != nil {
		return errorJSON(http.StatusInternalServerError, string(usecase.ErrorInternal), "encode_error", "")
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(b),
	}
}

func errorJSON(status int, code, reason, cid string) events.APIGatewayProxyResponse {
	b, _ := json.Marshal(errorResponse{Error: code, Reason: reason, CorrelationID: cid})
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(b),
	}
}
