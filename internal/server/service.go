package server

import (
	"TokenLedger/internal/command"
	"TokenLedger/internal/core"
	"TokenLedger/internal/event"
	"TokenLedger/internal/fault"
	"TokenLedger/internal/ledger"
	"TokenLedger/internal/persistence"
	"TokenLedger/internal/projection"
	"TokenLedger/internal/query"
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LedgerService implements the tokenledger.v1.TokenLedger gRPC service and
// backs the HTTP gateway routes. Read-model methods need queries and db.
type LedgerService struct {
	engine  *core.Engine
	queries *query.QueryService
	db      *sql.DB
	snaps   *persistence.SnapshotManager
	logger  zerolog.Logger
}

// ServiceDeps holds the dependencies of LedgerService. Only Engine is
// required.
type ServiceDeps struct {
	Engine      *core.Engine
	Queries     *query.QueryService
	DB          *sql.DB
	SnapshotMgr *persistence.SnapshotManager
	Logger      zerolog.Logger
}

func NewLedgerService(deps ServiceDeps) *LedgerService {
	return &LedgerService{
		engine:  deps.Engine,
		queries: deps.Queries,
		db:      deps.DB,
		snaps:   deps.SnapshotMgr,
		logger:  deps.Logger,
	}
}

// --- messages ---

// CommandResponse reports an applied (or deduplicated) command.
type CommandResponse struct {
	Sequence  int64          `json:"sequence"`
	RequestID string         `json:"request_id"`
	Duplicate bool           `json:"duplicate"`
	Refund    string         `json:"refund"`
	StateHash string         `json:"state_hash,omitempty"`
	Events    []event.Record `json:"events,omitempty"`
}

// QueryRequest carries the parameters of every query; each method reads
// the fields it needs.
type QueryRequest struct {
	Account  string `json:"account,omitempty"`
	Book     string `json:"book,omitempty"`
	AssetID  uint64 `json:"asset_id,omitempty"`
	Sequence int64  `json:"sequence,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Before   int64  `json:"before,omitempty"`
}

type BoolResponse struct {
	Value bool `json:"value"`
}

type AmountResponse struct {
	Value string `json:"value"`
}

type PriceResponse struct {
	Price string `json:"price"`
	Set   bool   `json:"set"`
}

type AdminsResponse struct {
	Admins []string `json:"admins"`
}

type BasketResponse struct {
	Owner   string       `json:"owner"`
	Entries []BasketItem `json:"entries"`
}

type BasketItem struct {
	ContractRef string `json:"contract_ref"`
	AssetID     uint64 `json:"asset_id"`
	Amount      string `json:"amount"`
}

type URIResponse struct {
	URI string `json:"uri"`
}

type MetadataResponse struct {
	Book    string `json:"book"`
	Name    string `json:"name,omitempty"`
	Symbol  string `json:"symbol,omitempty"`
	URI     string `json:"uri"`
	Address string `json:"address"`
}

type EventLogInfoResponse struct {
	LastPersistedSequence int64  `json:"last_persisted_sequence"`
	NextSequence          int64  `json:"next_sequence"`
	StateHash             string `json:"state_hash"`
}

type RebuildResponse struct {
	Rebuilt bool `json:"rebuilt"`
}

// --- commands ---

// Submit decodes and applies one command. typeName, when set, overrides
// the type in the body.
func (s *LedgerService) Submit(ctx context.Context, typeName string, w *command.Wire) (*CommandResponse, error) {
	if typeName != "" {
		w.Type = typeName
	}
	cmd, err := w.Command()
	if err != nil {
		return nil, statusFromError(err)
	}

	receipt, err := s.engine.Process(cmd)
	if err != nil {
		return nil, statusFromError(err)
	}
	return commandResponse(receipt)
}

func commandResponse(r *core.Receipt) (*CommandResponse, error) {
	resp := &CommandResponse{
		Sequence:  r.Sequence,
		RequestID: r.RequestID,
		Duplicate: r.Duplicate,
		Refund:    "0",
	}
	if r.Duplicate {
		return resp, nil
	}

	resp.Refund = r.Refund.Dec()
	resp.StateHash = hexHash(r.StateHash)
	for _, e := range r.Events {
		rec, err := event.Encode(e)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "encode event: %v", err)
		}
		resp.Events = append(resp.Events, rec)
	}
	return resp, nil
}

// --- engine queries ---

func (s *LedgerService) IsAdmin(ctx context.Context, req *QueryRequest) (interface{}, error) {
	id, err := account(req)
	if err != nil {
		return nil, err
	}
	return &BoolResponse{Value: s.engine.IsAdmin(id)}, nil
}

func (s *LedgerService) Admins(ctx context.Context, req *QueryRequest) (interface{}, error) {
	admins := s.engine.Admins()
	out := make([]string, 0, len(admins))
	for _, a := range admins {
		out = append(out, a.Hex())
	}
	return &AdminsResponse{Admins: out}, nil
}

func (s *LedgerService) IsWhitelisted(ctx context.Context, req *QueryRequest) (interface{}, error) {
	id, err := account(req)
	if err != nil {
		return nil, err
	}
	return &BoolResponse{Value: s.engine.IsWhitelisted(id)}, nil
}

func (s *LedgerService) BalanceOf(ctx context.Context, req *QueryRequest) (interface{}, error) {
	id, err := account(req)
	if err != nil {
		return nil, err
	}
	b, err := book(req)
	if err != nil {
		return nil, err
	}
	return &AmountResponse{Value: s.engine.BalanceOf(b, id, ledger.AssetID(req.AssetID)).Dec()}, nil
}

func (s *LedgerService) TotalSupply(ctx context.Context, req *QueryRequest) (interface{}, error) {
	b, err := book(req)
	if err != nil {
		return nil, err
	}
	return &AmountResponse{Value: s.engine.TotalSupply(b, ledger.AssetID(req.AssetID)).Dec()}, nil
}

func (s *LedgerService) PresaleTokenPrice(ctx context.Context, req *QueryRequest) (interface{}, error) {
	return &AmountResponse{Value: s.engine.PresaleTokenPrice().Dec()}, nil
}

func (s *LedgerService) MzcalTokenPrice(ctx context.Context, req *QueryRequest) (interface{}, error) {
	return &AmountResponse{Value: s.engine.MainTokenPrice().Dec()}, nil
}

func (s *LedgerService) MzcalTokenLaunched(ctx context.Context, req *QueryRequest) (interface{}, error) {
	return &BoolResponse{Value: s.engine.Launched()}, nil
}

func (s *LedgerService) PresaleRemaining(ctx context.Context, req *QueryRequest) (interface{}, error) {
	return &AmountResponse{Value: s.engine.PresaleRemaining().Dec()}, nil
}

func (s *LedgerService) Treasury(ctx context.Context, req *QueryRequest) (interface{}, error) {
	return &AmountResponse{Value: s.engine.Treasury().Dec()}, nil
}

// TokenPrice is the marketplace price of a seasonal asset.
func (s *LedgerService) TokenPrice(ctx context.Context, req *QueryRequest) (interface{}, error) {
	price, ok := s.engine.AssetPrice(ledger.AssetID(req.AssetID))
	if !ok {
		return &PriceResponse{Price: "0", Set: false}, nil
	}
	return &PriceResponse{Price: price.Dec(), Set: true}, nil
}

func (s *LedgerService) TradeBasket(ctx context.Context, req *QueryRequest) (interface{}, error) {
	id, err := account(req)
	if err != nil {
		return nil, err
	}
	resp := &BasketResponse{Owner: id.Hex(), Entries: []BasketItem{}}
	for _, e := range s.engine.TradeBasket(id) {
		resp.Entries = append(resp.Entries, BasketItem{
			ContractRef: e.ContractRef.Hex(),
			AssetID:     uint64(e.AssetID),
			Amount:      e.Amount.Dec(),
		})
	}
	return resp, nil
}

func (s *LedgerService) URI(ctx context.Context, req *QueryRequest) (interface{}, error) {
	b, err := book(req)
	if err != nil {
		return nil, err
	}
	return &URIResponse{URI: s.engine.URI(b, ledger.AssetID(req.AssetID))}, nil
}

func (s *LedgerService) Metadata(ctx context.Context, req *QueryRequest) (interface{}, error) {
	b, err := book(req)
	if err != nil {
		return nil, err
	}
	m := s.engine.Metadata(b)
	return &MetadataResponse{
		Book:    b.String(),
		Name:    m.Name,
		Symbol:  m.Symbol,
		URI:     m.URI,
		Address: s.engine.Address(b).Hex(),
	}, nil
}

// --- read model ---

func (s *LedgerService) GetHoldings(ctx context.Context, req *QueryRequest) (interface{}, error) {
	if s.queries == nil {
		return nil, errReadModelDisabled
	}
	id, err := account(req)
	if err != nil {
		return nil, err
	}
	out, err := s.queries.GetHoldings(ctx, id)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "get holdings: %v", err)
	}
	return out, nil
}

func (s *LedgerService) ListPurchases(ctx context.Context, req *QueryRequest) (interface{}, error) {
	if s.queries == nil {
		return nil, errReadModelDisabled
	}
	id, err := account(req)
	if err != nil {
		return nil, err
	}
	out, err := s.queries.GetPurchases(ctx, id, req.Limit, before(req))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "list purchases: %v", err)
	}
	return out, nil
}

func (s *LedgerService) ListMovements(ctx context.Context, req *QueryRequest) (interface{}, error) {
	if s.queries == nil {
		return nil, errReadModelDisabled
	}
	id, err := account(req)
	if err != nil {
		return nil, err
	}
	out, err := s.queries.GetMovementHistory(ctx, id, req.Limit, before(req))
	if err != nil {
		return nil, status.Errorf(codes.Internal, "list movements: %v", err)
	}
	return out, nil
}

func (s *LedgerService) GetEnvelope(ctx context.Context, req *QueryRequest) (interface{}, error) {
	if s.queries == nil {
		return nil, errReadModelDisabled
	}
	out, err := s.queries.GetEnvelope(ctx, req.Sequence)
	if errors.Is(err, query.ErrNotFound) {
		return nil, status.Errorf(codes.NotFound, "no envelope at sequence %d", req.Sequence)
	}
	if err != nil {
		return nil, status.Errorf(codes.Internal, "get envelope: %v", err)
	}
	return out, nil
}

// --- admin ---

func (s *LedgerService) VerifyIntegrity(ctx context.Context, req *QueryRequest) (interface{}, error) {
	if s.queries == nil {
		return nil, errReadModelDisabled
	}
	report, err := s.queries.VerifyIntegrity(ctx)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "verify integrity: %v", err)
	}
	return report, nil
}

func (s *LedgerService) RebuildProjections(ctx context.Context, req *QueryRequest) (interface{}, error) {
	if s.db == nil {
		return nil, errReadModelDisabled
	}
	if err := projection.RebuildProjections(ctx, s.db, s.logger); err != nil {
		return nil, status.Errorf(codes.Internal, "rebuild failed: %v", err)
	}
	return &RebuildResponse{Rebuilt: true}, nil
}

func (s *LedgerService) GetEventLogInfo(ctx context.Context, req *QueryRequest) (interface{}, error) {
	resp := &EventLogInfoResponse{
		NextSequence: s.engine.GetSequence(),
		StateHash:    hexHash(s.engine.GetStateHash()),
	}
	if s.snaps != nil {
		latest, err := s.snaps.GetLatestSequence(ctx)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "get latest sequence: %v", err)
		}
		resp.LastPersistedSequence = latest
	}
	return resp, nil
}

// --- helpers ---

var errReadModelDisabled = status.Error(codes.Unavailable, "read model is not configured")

func account(req *QueryRequest) (ledger.Identity, error) {
	id, err := command.ParseIdentity("account", req.Account)
	if err != nil {
		return ledger.Identity{}, statusFromError(err)
	}
	return id, nil
}

// book parses the book name; empty means the token book.
func book(req *QueryRequest) (ledger.Book, error) {
	if req.Book == "" {
		return ledger.BookToken, nil
	}
	b, ok := ledger.ParseBook(strings.ToLower(req.Book))
	if !ok {
		return 0, statusFromError(fmt.Errorf("%w: %q", fault.ErrUnknownBook, req.Book))
	}
	return b, nil
}

func before(req *QueryRequest) *int64 {
	if req.Before <= 0 {
		return nil
	}
	return &req.Before
}

func hexHash(h [32]byte) string {
	return "0x" + hex.EncodeToString(h[:])
}

// statusFromError maps ledger errors onto gRPC status codes. Errors that
// already carry a status pass through.
func statusFromError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var code codes.Code
	switch {
	case errors.Is(err, core.ErrEngineClosed):
		code = codes.Unavailable
	case fault.IsErrPermission(err):
		code = codes.PermissionDenied
	case fault.IsErrExists(err):
		code = codes.AlreadyExists
	case fault.IsErrNotFound(err):
		code = codes.NotFound
	case fault.IsErrPayment(err), fault.IsErrState(err):
		code = codes.FailedPrecondition
	case fault.IsErrInvalid(err):
		code = codes.InvalidArgument
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}
