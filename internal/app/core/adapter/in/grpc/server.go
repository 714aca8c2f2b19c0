package grpc

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-account-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-account-ledger/internal/app/core/usecase"
)

// GrpcServer 實作 ledger.v1.Ledger，把請求轉給 CoreUseCase
type GrpcServer struct {
	core   *usecase.CoreUseCase
	logger *slog.Logger
}

var _ LedgerServer = (*GrpcServer)(nil)

func NewGrpcServer(core *usecase.CoreUseCase, logger *slog.Logger) *GrpcServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &GrpcServer{core: core, logger: logger}
}

func (s *GrpcServer) Register(ctx context.Context, req *RegisterRequest) (*AccountReply, error) {
	account, err := s.core.Register(ctx, req.FirstName, req.LastName)
	if err != nil {
		return nil, s.toStatus(ctx, "Register", err)
	}
	return accountReply(account), nil
}

func (s *GrpcServer) Deposit(ctx context.Context, req *AmountRequest) (*OperationReply, error) {
	return s.apply(ctx, "Deposit", domain.Deposit(req.Amount), req.RequestID)
}

func (s *GrpcServer) Withdraw(ctx context.Context, req *AmountRequest) (*OperationReply, error) {
	return s.apply(ctx, "Withdraw", domain.Withdrawal(req.Amount), req.RequestID)
}

func (s *GrpcServer) Transfer(ctx context.Context, req *TransferRequest) (*OperationReply, error) {
	return s.apply(ctx, "Transfer", domain.Transfer(req.Amount, req.RecipientEmail), req.RequestID)
}

func (s *GrpcServer) Summary(ctx context.Context, _ *SummaryRequest) (*SummaryReply, error) {
	summary, err := s.core.Summary(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, "Summary", err)
	}
	return summaryReply(summary), nil
}

func (s *GrpcServer) Reconcile(ctx context.Context, _ *ReconcileRequest) (*ReconcileReply, error) {
	report, err := s.core.Reconcile(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, "Reconcile", err)
	}
	return reconcileReply(report), nil
}

func (s *GrpcServer) apply(ctx context.Context, method string, op domain.Operation, requestID string) (*OperationReply, error) {
	if requestID != "" {
		id, err := uuid.Parse(requestID)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, "request_id must be a uuid")
		}
		op = op.WithRequestID(id)
	}
	result, err := s.core.Apply(ctx, op)
	if err != nil {
		return nil, s.toStatus(ctx, method, err)
	}
	return operationReply(result), nil
}

// toStatus 把 domain 錯誤轉成 gRPC status
// 驗證錯誤回傳原因；系統錯誤只回傳通用訊息，細節寫 log
func (s *GrpcServer) toStatus(ctx context.Context, method string, err error) error {
	code := statusCode(err)
	switch code {
	case codes.Internal:
		s.logger.ErrorContext(ctx, "request failed", "method", method, "error", err)
		return status.Error(codes.Internal, "internal error")
	case codes.Unavailable, codes.Aborted:
		s.logger.WarnContext(ctx, "request failed", "method", method, "error", err)
		return status.Error(code, publicReason(err))
	default:
		s.logger.DebugContext(ctx, "request rejected", "method", method, "error", err)
		return status.Error(code, publicReason(err))
	}
}

func statusCode(err error) codes.Code {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrSameAccount):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrInsufficientFunds):
		return codes.FailedPrecondition
	case errors.Is(err, domain.ErrRecipientNotFound), errors.Is(err, domain.ErrAccountNotFound):
		return codes.NotFound
	case errors.Is(err, domain.ErrUnauthenticated):
		return codes.Unauthenticated
	case errors.Is(err, domain.ErrTransientConflict):
		return codes.Aborted
	case errors.Is(err, domain.ErrStoreUnavailable):
		return codes.Unavailable
	case errors.Is(err, domain.ErrDuplicateRequest):
		return codes.AlreadyExists
	default:
		return codes.Internal
	}
}

// publicReason 只回傳 sentinel 本身的訊息，不外洩內部 wrap 的細節
func publicReason(err error) string {
	for _, sentinel := range []error{
		domain.ErrInvalidAmount,
		domain.ErrSameAccount,
		domain.ErrInsufficientFunds,
		domain.ErrRecipientNotFound,
		domain.ErrAccountNotFound,
		domain.ErrUnauthenticated,
		domain.ErrTransientConflict,
		domain.ErrStoreUnavailable,
		domain.ErrDuplicateRequest,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal error"
}
