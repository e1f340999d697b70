package server

import (
	"TokenLedger/internal/command"
	"context"
	"net/http"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "tokenledger.v1.TokenLedger"

// LedgerServer is the handler type behind ServiceDesc.
type LedgerServer interface {
	Submit(ctx context.Context, typeName string, w *command.Wire) (*CommandResponse, error)
}

type queryFunc func(*LedgerService, context.Context, *QueryRequest) (interface{}, error)

// queryMethod binds one read operation to its gRPC method name and HTTP
// route.
type queryMethod struct {
	name   string
	verb   string
	path   string
	handle queryFunc
}

var queryMethods = []queryMethod{
	// access control
	{"IsAdmin", http.MethodGet, "/v1/admins/{account}", (*LedgerService).IsAdmin},
	{"Admins", http.MethodGet, "/v1/admins", (*LedgerService).Admins},
	{"IsWhitelisted", http.MethodGet, "/v1/whitelist/{account}", (*LedgerService).IsWhitelisted},

	// balances and metadata
	{"BalanceOf", http.MethodGet, "/v1/books/{book}/balances/{account}/{asset_id}", (*LedgerService).BalanceOf},
	{"TotalSupply", http.MethodGet, "/v1/books/{book}/supply/{asset_id}", (*LedgerService).TotalSupply},
	{"Uri", http.MethodGet, "/v1/books/{book}/uri/{asset_id}", (*LedgerService).URI},
	{"Metadata", http.MethodGet, "/v1/books/{book}/metadata", (*LedgerService).Metadata},

	// sale
	{"PresaleTokenPrice", http.MethodGet, "/v1/presale/price", (*LedgerService).PresaleTokenPrice},
	{"PresaleRemaining", http.MethodGet, "/v1/presale/remaining", (*LedgerService).PresaleRemaining},
	{"MzcalTokenPrice", http.MethodGet, "/v1/mzcal/price", (*LedgerService).MzcalTokenPrice},
	{"MzcalTokenLaunched", http.MethodGet, "/v1/mzcal/launched", (*LedgerService).MzcalTokenLaunched},
	{"Treasury", http.MethodGet, "/v1/treasury", (*LedgerService).Treasury},

	// marketplace
	{"TokenPrice", http.MethodGet, "/v1/market/prices/{asset_id}", (*LedgerService).TokenPrice},
	{"TradeBasket", http.MethodGet, "/v1/market/baskets/{account}", (*LedgerService).TradeBasket},

	// read model
	{"GetHoldings", http.MethodGet, "/v1/accounts/{account}/holdings", (*LedgerService).GetHoldings},
	{"ListPurchases", http.MethodGet, "/v1/accounts/{account}/purchases", (*LedgerService).ListPurchases},
	{"ListMovements", http.MethodGet, "/v1/accounts/{account}/movements", (*LedgerService).ListMovements},
	{"GetEnvelope", http.MethodGet, "/v1/envelopes/{sequence}", (*LedgerService).GetEnvelope},

	// admin
	{"VerifyIntegrity", http.MethodGet, "/v1/admin/integrity", (*LedgerService).VerifyIntegrity},
	{"RebuildProjections", http.MethodPost, "/v1/admin/rebuild-projections", (*LedgerService).RebuildProjections},
	{"GetEventLogInfo", http.MethodGet, "/v1/admin/event-log", (*LedgerService).GetEventLogInfo},
}

// CommandMethod returns the gRPC method name for a command type:
// "buy_asset" becomes "BuyAsset".
func CommandMethod(t command.Type) string {
	var b strings.Builder
	for _, part := range strings.Split(t.String(), "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

// ServiceDesc describes the ledger service: one unary method per command
// type and one per query. Messages are JSON, see CodecName.
var ServiceDesc = buildServiceDesc()

func buildServiceDesc() grpc.ServiceDesc {
	desc := grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*LedgerServer)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "tokenledger/v1/ledger.json",
	}
	for _, t := range command.Types() {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: CommandMethod(t),
			Handler:    commandHandler(t),
		})
	}
	for _, m := range queryMethods {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: m.name,
			Handler:    queryHandler(m),
		})
	}
	return desc
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func commandHandler(t command.Type) grpc.MethodHandler {
	method := fullMethod(CommandMethod(t))
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(command.Wire)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return srv.(LedgerServer).Submit(ctx, t.String(), in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.(LedgerServer).Submit(ctx, t.String(), req.(*command.Wire))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func queryHandler(m queryMethod) grpc.MethodHandler {
	method := fullMethod(m.name)
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(QueryRequest)
		if err := dec(in); err != nil {
			return nil, err
		}
		svc, ok := srv.(*LedgerService)
		if !ok {
			return nil, status.Errorf(codes.Unimplemented, "%s is not served by %T", m.name, srv)
		}
		if interceptor == nil {
			return m.handle(svc, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return m.handle(svc, ctx, req.(*QueryRequest))
		}
		return interceptor(ctx, in, info, handler)
	}
}
