package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName gRPC 服務名稱
const ServiceName = protoPackage + ".Ledger"

// LedgerServer ledger.v1.Ledger 的伺服端介面
type LedgerServer interface {
	Register(context.Context, *RegisterRequest) (*AccountReply, error)
	Deposit(context.Context, *AmountRequest) (*OperationReply, error)
	Withdraw(context.Context, *AmountRequest) (*OperationReply, error)
	Transfer(context.Context, *TransferRequest) (*OperationReply, error)
	Summary(context.Context, *SummaryRequest) (*SummaryReply, error)
	Reconcile(context.Context, *ReconcileRequest) (*ReconcileReply, error)
}

// ServiceDesc ledger.v1.Ledger 的服務描述
//
// 線上格式是標準 protobuf (application/grpc)，訊息由 descriptor.go 的 ledgerFile 描述
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Register", Handler: unaryHandler("Register", LedgerServer.Register)},
		{MethodName: "Deposit", Handler: unaryHandler("Deposit", LedgerServer.Deposit)},
		{MethodName: "Withdraw", Handler: unaryHandler("Withdraw", LedgerServer.Withdraw)},
		{MethodName: "Transfer", Handler: unaryHandler("Transfer", LedgerServer.Transfer)},
		{MethodName: "Summary", Handler: unaryHandler("Summary", LedgerServer.Summary)},
		{MethodName: "Reconcile", Handler: unaryHandler("Reconcile", LedgerServer.Reconcile)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: ProtoFile,
}

// RegisterLedgerServer 把實作註冊到 grpc.Server
func RegisterLedgerServer(s grpc.ServiceRegistrar, srv LedgerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unaryHandler 產生 MethodDesc.Handler：解碼 protobuf 請求、套用攔截器、呼叫實作、編碼回應
//
// 攔截器看到的 req / resp 是 messages.go 的 Go 型別
func unaryHandler[Req, Resp any, PReq wirePtr[Req], PResp wirePtr[Resp]](method string, call func(LedgerServer, context.Context, PReq) (PResp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	fullName := fullMethod(method)
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		wireIn := newWire(in.protoName())
		if err := dec(wireIn); err != nil {
			return nil, err
		}
		in.unmarshalProto(wireIn)

		if interceptor == nil {
			out, err := call(srv.(LedgerServer), ctx, in)
			if err != nil {
				return nil, err
			}
			return toWire(out), nil
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LedgerServer), ctx, req.(PReq))
		}
		resp, err := interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullName}, handler)
		if err != nil {
			return nil, err
		}
		out, ok := resp.(PResp)
		if !ok {
			return nil, status.Errorf(codes.Internal, "%s: interceptor returned %T", fullName, resp)
		}
		return toWire(out), nil
	}
}

// Client ledger.v1.Ledger 的客戶端
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any, PResp wirePtr[Resp]](ctx context.Context, cc grpc.ClientConnInterface, method string, in wireMessage, opts []grpc.CallOption) (PResp, error) {
	out := PResp(new(Resp))
	wireOut := newWire(out.protoName())
	if err := cc.Invoke(ctx, fullMethod(method), toWire(in), wireOut, opts...); err != nil {
		return nil, err
	}
	out.unmarshalProto(wireOut)
	return out, nil
}

func (c *Client) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*AccountReply, error) {
	return invoke[AccountReply](ctx, c.cc, "Register", in, opts)
}

func (c *Client) Deposit(ctx context.Context, in *AmountRequest, opts ...grpc.CallOption) (*OperationReply, error) {
	return invoke[OperationReply](ctx, c.cc, "Deposit", in, opts)
}

func (c *Client) Withdraw(ctx context.Context, in *AmountRequest, opts ...grpc.CallOption) (*OperationReply, error) {
	return invoke[OperationReply](ctx, c.cc, "Withdraw", in, opts)
}

func (c *Client) Transfer(ctx context.Context, in *TransferRequest, opts ...grpc.CallOption) (*OperationReply, error) {
	return invoke[OperationReply](ctx, c.cc, "Transfer", in, opts)
}

func (c *Client) Summary(ctx context.Context, in *SummaryRequest, opts ...grpc.CallOption) (*SummaryReply, error) {
	return invoke[SummaryReply](ctx, c.cc, "Summary", in, opts)
}

func (c *Client) Reconcile(ctx context.Context, in *ReconcileRequest, opts ...grpc.CallOption) (*ReconcileReply, error) {
	return invoke[ReconcileReply](ctx, c.cc, "Reconcile", in, opts)
}
