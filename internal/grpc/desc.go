package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "beancounter.BeanCounter"

// beanCounterHandlers is the method set the service descriptor binds.
type beanCounterHandlers interface {
	GetBalance(ctx context.Context, req *GetBalanceRequest) (*GetBalanceResponse, error)
	GetTransactions(ctx context.Context, req *GetTransactionsRequest) (*GetTransactionsResponse, error)
	AddCredits(ctx context.Context, req *AddCreditsRequest) (*AddCreditsResponse, error)
	AddPromo(ctx context.Context, req *AddPromoRequest) (*AddPromoResponse, error)
	AddPayment(ctx context.Context, req *AddPaymentRequest) (*AddPaymentResponse, error)
	SettlePayment(ctx context.Context, req *SettlePaymentRequest) (*SettlePaymentResponse, error)
	StripeCharge(ctx context.Context, req *StripeChargeRequest) (*StripeChargeResponse, error)
	GetConnectAccount(ctx context.Context, req *GetConnectAccountRequest) (*GetConnectAccountResponse, error)
	CompleteConnectOauth(ctx context.Context, req *CompleteConnectOauthRequest) (*CompleteConnectOauthResponse, error)
	UpdateConnectAccountPrefs(ctx context.Context, req *UpdateConnectAccountPrefsRequest) (*UpdateConnectAccountPrefsResponse, error)
	ConnectPayout(ctx context.Context, req *ConnectPayoutRequest) (*ConnectPayoutResponse, error)
	Check(ctx context.Context, req *HealthCheckRequest) (*HealthCheckResponse, error)
}

// unary builds a grpc.MethodDesc handler for one unary method.
func unary[Req any, Resp any](method string, call func(beanCounterHandlers, context.Context, *Req) (*Resp, error)) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(beanCounterHandlers), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(beanCounterHandlers), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var beanCounterServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*beanCounterHandlers)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetBalance",
			Handler: unary("GetBalance", func(h beanCounterHandlers, ctx context.Context, req *GetBalanceRequest) (*GetBalanceResponse, error) {
				return h.GetBalance(ctx, req)
			}),
		},
		{
			MethodName: "GetTransactions",
			Handler: unary("GetTransactions", func(h beanCounterHandlers, ctx context.Context, req *GetTransactionsRequest) (*GetTransactionsResponse, error) {
				return h.GetTransactions(ctx, req)
			}),
		},
		{
			MethodName: "AddCredits",
			Handler: unary("AddCredits", func(h beanCounterHandlers, ctx context.Context, req *AddCreditsRequest) (*AddCreditsResponse, error) {
				return h.AddCredits(ctx, req)
			}),
		},
		{
			MethodName: "AddPromo",
			Handler: unary("AddPromo", func(h beanCounterHandlers, ctx context.Context, req *AddPromoRequest) (*AddPromoResponse, error) {
				return h.AddPromo(ctx, req)
			}),
		},
		{
			MethodName: "AddPayment",
			Handler: unary("AddPayment", func(h beanCounterHandlers, ctx context.Context, req *AddPaymentRequest) (*AddPaymentResponse, error) {
				return h.AddPayment(ctx, req)
			}),
		},
		{
			MethodName: "SettlePayment",
			Handler: unary("SettlePayment", func(h beanCounterHandlers, ctx context.Context, req *SettlePaymentRequest) (*SettlePaymentResponse, error) {
				return h.SettlePayment(ctx, req)
			}),
		},
		{
			MethodName: "StripeCharge",
			Handler: unary("StripeCharge", func(h beanCounterHandlers, ctx context.Context, req *StripeChargeRequest) (*StripeChargeResponse, error) {
				return h.StripeCharge(ctx, req)
			}),
		},
		{
			MethodName: "GetConnectAccount",
			Handler: unary("GetConnectAccount", func(h beanCounterHandlers, ctx context.Context, req *GetConnectAccountRequest) (*GetConnectAccountResponse, error) {
				return h.GetConnectAccount(ctx, req)
			}),
		},
		{
			MethodName: "CompleteConnectOauth",
			Handler: unary("CompleteConnectOauth", func(h beanCounterHandlers, ctx context.Context, req *CompleteConnectOauthRequest) (*CompleteConnectOauthResponse, error) {
				return h.CompleteConnectOauth(ctx, req)
			}),
		},
		{
			MethodName: "UpdateConnectAccountPrefs",
			Handler: unary("UpdateConnectAccountPrefs", func(h beanCounterHandlers, ctx context.Context, req *UpdateConnectAccountPrefsRequest) (*UpdateConnectAccountPrefsResponse, error) {
				return h.UpdateConnectAccountPrefs(ctx, req)
			}),
		},
		{
			MethodName: "ConnectPayout",
			Handler: unary("ConnectPayout", func(h beanCounterHandlers, ctx context.Context, req *ConnectPayoutRequest) (*ConnectPayoutResponse, error) {
				return h.ConnectPayout(ctx, req)
			}),
		},
		{
			MethodName: "Check",
			Handler: unary("Check", func(h beanCounterHandlers, ctx context.Context, req *HealthCheckRequest) (*HealthCheckResponse, error) {
				return h.Check(ctx, req)
			}),
		},
	},
	Streams: []grpc.StreamDesc{},
}

// MethodPath returns the full gRPC method path for a method name,
// for clients using conn.Invoke directly.
func MethodPath(method string) string {
	return "/" + ServiceName + "/" + method
}
