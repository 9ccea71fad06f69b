// Package grpcsvc — gRPC-граница сервиса заказов.
package grpcsvc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/domain"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/service/idempotency"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/service/saga"
)

const (
	idempotencyKeyHeader = "idempotency-key"
	errorDomain          = "orders.kubeshop"
)

// OrderService реализует gRPC API поверх оркестратора заказов.
type OrderService struct {
	orders saga.Orchestrator
	guard  *idempotency.Guard
	logger *log.Entry
}

// NewOrderService конструирует сервис. guard может быть nil.
func NewOrderService(orders saga.Orchestrator, guard *idempotency.Guard, logger *log.Entry) *OrderService {
	if logger == nil {
		logger = log.New().WithField("component", "order-service")
	}
	return &OrderService{orders: orders, guard: guard, logger: logger}
}

// CreateOrder принимает {userId} и возвращает {orderId, totalAmount, status}.
// Необязательный ключ идемпотентности передаётся в метаданных idempotency-key.
func (s *OrderService) CreateOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, toStatus(domain.ErrUserRequired)
	}
	key := readIdempotencyKey(ctx)
	if key == "" || s.guard == nil {
		return s.createOrder(ctx, req)
	}
	return s.withIdempotency(ctx, key, req)
}

func (s *OrderService) createOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID := stringField(req, "userId")
	order, err := s.orders.CreateOrder(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrReconciliationHazard) {
			s.logger.WithError(err).WithField("user_id", userID).Error("create order left a reconciliation hazard")
		}
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]interface{}{
		"orderId":     order.ID,
		"totalAmount": domain.FormatAmount(order.TotalAmount),
		"status":      string(order.Status),
	})
}

// GetOrder принимает {orderId} и возвращает заказ с позициями.
func (s *OrderService) GetOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	order, err := s.orders.GetOrder(ctx, stringField(req, "orderId"))
	if err != nil {
		return nil, toStatus(err)
	}

	items := make([]interface{}, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, map[string]interface{}{
			"productId": item.ProductID,
			"quantity":  item.Quantity,
			"unitPrice": domain.FormatAmount(item.UnitPrice),
		})
	}
	return structpb.NewStruct(map[string]interface{}{
		"orderId":     order.ID,
		"userId":      order.UserID,
		"totalAmount": domain.FormatAmount(order.TotalAmount),
		"status":      string(order.Status),
		"createdAt":   order.CreatedAt.UTC().Format(time.RFC3339Nano),
		"items":       items,
	})
}

type idempotencyErrorPayload struct {
	Code    int32  `json:"code"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func (s *OrderService) withIdempotency(ctx context.Context, key string, req *structpb.Struct) (*structpb.Struct, error) {
	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(req)
	if err != nil {
		s.logger.WithError(err).Warn("failed to build idempotency request hash")
		return nil, status.Error(codes.Internal, "failed to initialize idempotency request")
	}

	record, replay, err := s.guard.Begin(ctx, key, idempotency.RequestHash(MethodCreateOrder, data))
	if err != nil {
		return nil, toStatus(err)
	}
	if replay {
		return s.replay(record)
	}

	resp, runErr := s.createOrder(ctx, req)
	if runErr != nil {
		st := status.Convert(runErr)
		payload, encErr := json.Marshal(idempotencyErrorPayload{
			Code:    int32(st.Code()), //nolint:gosec // codes.Code is a bounded enum value.
			Reason:  reasonOf(st),
			Message: st.Message(),
		})
		if encErr != nil {
			s.logger.WithError(encErr).WithField("idempotency_key", key).Warn("failed to encode idempotency failure payload")
		}
		s.guard.Complete(ctx, key, false, payload, int(st.Code()))
		return nil, runErr
	}

	body, err := protojson.Marshal(resp)
	if err != nil {
		s.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to encode idempotent response")
		return resp, nil
	}
	s.guard.Complete(ctx, key, true, body, int(codes.OK))
	return resp, nil
}

func (s *OrderService) replay(record domain.IdempotencyRecord) (*structpb.Struct, error) {
	if record.Status == domain.IdempotencyStatusFailed {
		return nil, decodeIdempotencyFailure(record)
	}
	resp := new(structpb.Struct)
	if err := protojson.Unmarshal(record.ResponseBody, resp); err != nil {
		s.logger.WithError(err).WithField("idempotency_key", record.Key).Warn("failed to decode cached idempotency response")
		return nil, status.Error(codes.Internal, "failed to decode cached idempotency response")
	}
	return resp, nil
}

func decodeIdempotencyFailure(record domain.IdempotencyRecord) error {
	const fallback = "previous request with the same idempotency key failed"

	var payload idempotencyErrorPayload
	if err := json.Unmarshal(record.ResponseBody, &payload); err != nil {
		return status.Error(codes.Internal, fallback)
	}
	code, ok := grpcCodeFromInt32(payload.Code)
	if !ok || code == codes.OK {
		code = codes.Internal
	}
	if payload.Message == "" {
		payload.Message = fallback
	}
	if payload.Reason == "" {
		return status.Error(code, payload.Message)
	}
	return withReason(code, domain.ErrorKind(payload.Reason), payload.Message)
}

func grpcCodeFromInt32(value int32) (codes.Code, bool) {
	if value < int32(codes.OK) || value > int32(codes.Unauthenticated) {
		return codes.Internal, false
	}
	return codes.Code(uint32(value)), true
}

// CodeForKind возвращает gRPC-код для вида ошибки.
func CodeForKind(kind domain.ErrorKind) codes.Code {
	switch kind {
	case domain.KindInvalidRequest:
		return codes.InvalidArgument
	case domain.KindEmptyCart, domain.KindInsufficientStock:
		return codes.FailedPrecondition
	case domain.KindPaymentFailed:
		return codes.Aborted
	case domain.KindPersistenceFailed, domain.KindDownstreamUnavailable:
		return codes.Unavailable
	case domain.KindReconciliationHazard:
		return codes.DataLoss
	case domain.KindNotFound:
		return codes.NotFound
	case domain.KindConflict:
		return codes.AlreadyExists
	default:
		return codes.Internal
	}
}

// toStatus переводит доменную ошибку в gRPC-статус с ErrorInfo.Reason = вид ошибки.
func toStatus(err error) error {
	kind := domain.KindOf(err)
	msg := err.Error()
	if kind == domain.KindInternal {
		msg = "internal error"
	}
	return withReason(CodeForKind(kind), kind, msg)
}

func withReason(code codes.Code, kind domain.ErrorKind, msg string) error {
	st := status.New(code, msg)
	detailed, err := st.WithDetails(&errdetails.ErrorInfo{Reason: string(kind), Domain: errorDomain})
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

// ReasonOf достаёт вид ошибки из деталей статуса.
func ReasonOf(err error) domain.ErrorKind {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	return domain.ErrorKind(reasonOf(st))
}

func reasonOf(st *status.Status) string {
	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok {
			return info.GetReason()
		}
	}
	return ""
}

func readIdempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(idempotencyKeyHeader)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func stringField(req *structpb.Struct, name string) string {
	if req == nil {
		return ""
	}
	return strings.TrimSpace(req.GetFields()[name].GetStringValue())
}

var _ OrderServiceServer = (*OrderService)(nil)
