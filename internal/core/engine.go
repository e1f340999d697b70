package core

import (
	"TokenLedger/internal/command"
	"TokenLedger/internal/event"
	"TokenLedger/internal/fault"
	"TokenLedger/internal/ledger"
	"TokenLedger/internal/observability"
	"TokenLedger/internal/state"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
)

// fullCheckEvery is how often (in sequences) conservation is verified for
// every asset rather than only the touched ones.
const fullCheckEvery = 1000

// ErrEngineClosed is returned by Process once Close has been called. It is
// not a domain error: the command was never looked at and may be retried
// against a running instance.
var ErrEngineClosed = errors.New("ledger engine closed")

// Config carries the construction parameters of the ledger.
type Config struct {
	Deployer      ledger.Identity
	TokenAddress  ledger.Identity
	MarketAddress ledger.Identity
	TokenURI      string
	MarketURI     string
	PresaleCap    *uint256.Int // nil means state.DefaultPresaleCap
	PresalePrice  *uint256.Int // nil means state.DefaultPresalePrice
	MainPrice     *uint256.Int // nil means state.DefaultMainPrice
	DedupCapacity int
}

// Engine is the single-writer command processor. Process holds the write
// lock for the whole command; queries take the read lock.
type Engine struct {
	mu sync.RWMutex

	sequence    int64
	hasher      *StateHasher
	balances    *ledger.BalanceTracker
	validator   *ledger.InvariantValidator
	access      *state.AccessControl
	whitelist   *state.Whitelist
	prices      *state.PriceBook
	presale     *state.Presale
	baskets     *state.TradeBaskets
	tokenMeta   state.Metadata
	marketMeta  state.Metadata
	tokenAddr   ledger.Identity
	marketAddr  ledger.Identity
	idempotency *IdempotencyChecker
	metrics     *observability.Metrics
	logger      zerolog.Logger
	closed      bool

	persistChan    chan<- CoreOutput
	projectionChan chan<- CoreOutput
}

// CoreOutput is everything downstream workers need about one applied
// command.
type CoreOutput struct {
	Envelope   *event.EventEnvelope
	Batch      *ledger.Batch
	StateDelta []byte
}

// Receipt is returned to the caller of Process.
type Receipt struct {
	Sequence  int64
	RequestID string
	// Duplicate is set when the request id was already applied; nothing
	// else is filled in.
	Duplicate bool
	// Refund is the excess native payment returned to the caller.
	Refund    *uint256.Int
	Events    []event.Event
	StateHash [32]byte
}

// plan is what a handler produces once every precondition holds. Nothing
// in it has touched engine state yet.
type plan struct {
	batch   *ledger.Batch
	events  []event.Event
	effects []func()
	refund  *uint256.Int
}

func (p *plan) effect(fn func()) { p.effects = append(p.effects, fn) }
func (p *plan) emit(evts ...event.Event) {
	p.events = append(p.events, evts...)
}

// NewEngine builds an engine at startSequence. Either channel may be nil,
// in which case that output is skipped.
func NewEngine(
	cfg Config,
	startSequence int64,
	persistChan, projectionChan chan<- CoreOutput,
	dbChecker DBIdempotencyChecker,
	metrics *observability.Metrics,
) *Engine {
	balances := ledger.NewBalanceTracker()

	return &Engine{
		sequence:    startSequence,
		hasher:      NewStateHasher(),
		balances:    balances,
		validator:   ledger.NewInvariantValidator(balances),
		access:      state.NewAccessControl(cfg.Deployer),
		whitelist:   state.NewWhitelist(),
		prices:      state.NewPriceBook(cfg.PresalePrice, cfg.MainPrice),
		presale:     state.NewPresale(cfg.PresaleCap),
		baskets:     state.NewTradeBaskets(),
		tokenMeta:   state.Metadata{URI: cfg.TokenURI},
		marketMeta:  state.Metadata{Name: state.SeasonalName, Symbol: state.SeasonalSymbol, URI: cfg.MarketURI},
		tokenAddr:   cfg.TokenAddress,
		marketAddr:  cfg.MarketAddress,
		idempotency: NewIdempotencyChecker(cfg.DedupCapacity, dbChecker, metrics),
		metrics:     metrics,
		logger:      zerolog.Nop(),

		persistChan:    persistChan,
		projectionChan: projectionChan,
	}
}

// SetLogger replaces the default no-op logger.
func (e *Engine) SetLogger(l zerolog.Logger) {
	e.logger = l
}

// Process is the main processing pipeline.
func (e *Engine) Process(cmd command.Command) (*Receipt, error) {
	start := time.Now()
	cmdType := cmd.CommandType().String()

	if cmd.RequestID() == "" {
		e.reject(cmdType, fault.ErrMissingRequestID)
		return nil, fault.ErrMissingRequestID
	}
	if cmd.Caller() == ledger.ZeroIdentity {
		e.reject(cmdType, fault.ErrMissingCaller)
		return nil, fault.ErrMissingCaller
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrEngineClosed
	}
	return e.apply(cmd, start, true)
}

// Close stops the engine from accepting commands. It waits for a command
// already in Process to finish, so once it returns nothing more is sent on
// the output channels and they may be closed. Queries keep working.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
}

// apply runs the pipeline under the write lock. With emit false the
// output is not sent downstream (log replay).
func (e *Engine) apply(cmd command.Command, start time.Time, emit bool) (*Receipt, error) {
	cmdType := cmd.CommandType().String()

	// Step 1: idempotency check. Replayed log entries skip it; the log
	// itself is the record of what was applied.
	if emit {
		if dup, tier := e.idempotency.IsDuplicate(cmd.RequestID()); dup {
			if e.metrics != nil {
				e.metrics.IdempotencyDuplicates.WithLabelValues(cmdType, tier).Inc()
				e.metrics.CommandsRejected.WithLabelValues(cmdType, "duplicate").Inc()
			}
			e.logger.Debug().Str("request_id", cmd.RequestID()).Str("tier", tier).Msg("duplicate command skipped")
			return &Receipt{RequestID: cmd.RequestID(), Duplicate: true}, nil
		}
	}

	// Step 2: handler checks every precondition and builds the plan
	batch := ledger.NewBatch(cmd.RequestID(), e.sequence)
	p, err := e.dispatch(cmd, batch)
	if err != nil {
		e.reject(cmdType, err)
		return nil, err
	}

	// Step 3: apply movements (atomic; leaves state unchanged on error)
	if !p.batch.IsEmpty() {
		if err := e.validator.ValidateBatch(p.batch); err != nil {
			e.reject(cmdType, err)
			return nil, err
		}
		if err := e.balances.ApplyBatch(p.batch); err != nil {
			e.reject(cmdType, err)
			return nil, err
		}
	}

	// Step 4: non-balance state
	for _, fn := range p.effects {
		fn()
	}

	// Step 5: post-check conservation
	if err := e.postCheckInvariants(p.batch); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated after %s: %v", command.Describe(cmd), err))
	}

	// Step 6: events, digest, hash chain
	events := make([]event.Event, 0, len(p.batch.Movements)+len(p.events))
	for _, m := range p.batch.Movements {
		events = append(events, event.FromMovement(m))
	}
	events = append(events, p.events...)

	payload, err := command.Encode(cmd)
	if err != nil {
		panic(fmt.Sprintf("FATAL: applied command cannot be encoded: %v", err))
	}

	hashStart := time.Now()
	digest := e.computeStateDigest(cmd, payload, p.batch)
	prevHash := e.hasher.GetPrevHash()
	stateHash := e.hasher.ComputeHash(e.sequence, digest)
	if e.metrics != nil {
		e.metrics.StateHashDur.Observe(time.Since(hashStart).Seconds())
	}

	envelope := &event.EventEnvelope{
		Sequence:    e.sequence,
		RequestID:   cmd.RequestID(),
		CommandType: cmdType,
		Caller:      cmd.Caller(),
		Timestamp:   cmd.Timestamp(),
		Payload:     payload,
		Events:      events,
		StateHash:   stateHash,
		PrevHash:    prevHash,
	}

	// Step 7: emit outputs. Persistence blocks (backpressure); projection
	// drops when full and is rebuilt from the log.
	if emit {
		e.emit(CoreOutput{Envelope: envelope, Batch: p.batch, StateDelta: digest})
	}

	// Step 8: mark processed
	e.idempotency.MarkProcessed(cmd.RequestID())

	receipt := &Receipt{
		Sequence:  e.sequence,
		RequestID: cmd.RequestID(),
		Refund:    p.refund,
		Events:    events,
		StateHash: stateHash,
	}
	if receipt.Refund == nil {
		receipt.Refund = new(uint256.Int)
	}
	e.sequence++

	if e.metrics != nil {
		e.metrics.CommandsApplied.WithLabelValues(cmdType).Inc()
		e.metrics.CommandDuration.WithLabelValues(cmdType).Observe(time.Since(start).Seconds())
		e.metrics.CoreSequence.Set(float64(e.sequence))
		for _, m := range p.batch.Movements {
			e.metrics.Movements.WithLabelValues(m.Book.String(), m.Type.String()).Inc()
		}
		e.metrics.PresaleMinted.Set(e.balances.Minted(ledger.BookToken, ledger.PresaleID).Float64())
		e.metrics.TreasuryWei.Set(e.presale.Treasury().Float64())
	}

	e.logger.Debug().
		Int64("sequence", receipt.Sequence).
		Str("request_id", receipt.RequestID).
		Str("command", cmdType).
		Int("movements", len(p.batch.Movements)).
		Msg("command applied")

	return receipt, nil
}

func (e *Engine) dispatch(cmd command.Command, b *ledger.Batch) (*plan, error) {
	switch c := cmd.(type) {
	case *command.AddAdmin:
		return e.handleAddAdmin(c, b)
	case *command.RemoveAdmin:
		return e.handleRemoveAdmin(c, b)
	case *command.WhitelistAdd:
		return e.handleWhitelistAdd(c, b)
	case *command.WhitelistRemove:
		return e.handleWhitelistRemove(c, b)
	case *command.WhitelistBulkAdd:
		return e.handleWhitelistBulkAdd(c, b)
	case *command.Mint:
		return e.handleMint(c, b)
	case *command.Burn:
		return e.handleBurn(c, b)
	case *command.BuyPresale:
		return e.handleBuyPresale(c, b)
	case *command.Launch:
		return e.handleLaunch(c, b)
	case *command.Claim:
		return e.handleClaim(c, b)
	case *command.BuyMain:
		return e.handleBuyMain(c, b)
	case *command.SetPresalePrice:
		return e.handleSetPresalePrice(c, b)
	case *command.SetMainPrice:
		return e.handleSetMainPrice(c, b)
	case *command.SetAssetPrice:
		return e.handleSetAssetPrice(c, b)
	case *command.BuyAsset:
		return e.handleBuyAsset(c, b)
	case *command.CreateTradeBasket:
		return e.handleCreateTradeBasket(c, b)
	case *command.ClearTradeBasket:
		return e.handleClearTradeBasket(c, b)
	default:
		return nil, fmt.Errorf("%w: %T", fault.ErrUnknownCommand, cmd)
	}
}

func (e *Engine) reject(cmdType string, err error) {
	if e.metrics != nil {
		e.metrics.CommandsRejected.WithLabelValues(cmdType, fault.Code(err)).Inc()
	}
	e.logger.Debug().Str("command", cmdType).Err(err).Msg("command rejected")
}

func (e *Engine) emit(out CoreOutput) {
	if e.persistChan != nil {
		select {
		case e.persistChan <- out:
		default:
			if e.metrics != nil {
				e.metrics.PersistBackpressure.Inc()
			}
			e.persistChan <- out
		}
	}

	if e.projectionChan != nil {
		select {
		case e.projectionChan <- out:
		default:
			if e.metrics != nil {
				e.metrics.ProjectionDrops.WithLabelValues("core").Inc()
			}
		}
	}

	if e.metrics != nil {
		e.metrics.SetChannelMetrics("persist", len(e.persistChan), cap(e.persistChan))
		e.metrics.SetChannelMetrics("projection", len(e.projectionChan), cap(e.projectionChan))
	}
}

// postCheckInvariants verifies conservation for the assets the batch
// touched, and for every asset periodically.
func (e *Engine) postCheckInvariants(batch *ledger.Batch) error {
	if e.sequence > 0 && e.sequence%fullCheckEvery == 0 {
		return e.validator.ValidateConservation()
	}

	seen := make(map[ledger.SupplyKey]struct{})
	keys := make([]ledger.SupplyKey, 0, 2)
	for _, m := range batch.Movements {
		k := ledger.SupplyKey{Book: m.Book, Asset: m.AssetID}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return e.validator.ValidateAssets(keys)
}

// computeStateDigest creates canonical bytes for the state hash: the
// command payload followed by every touched account and its new balance.
func (e *Engine) computeStateDigest(cmd command.Command, payload []byte, batch *ledger.Batch) []byte {
	affected := make(map[ledger.AccountKey]bool)
	for _, m := range batch.Movements {
		if m.From != ledger.ZeroIdentity {
			affected[ledger.NewAccountKey(m.Book, m.From, m.AssetID)] = true
		}
		if m.To != ledger.ZeroIdentity {
			affected[ledger.NewAccountKey(m.Book, m.To, m.AssetID)] = true
		}
	}

	accounts := make([]ledger.AccountKey, 0, len(affected))
	for key := range affected {
		accounts = append(accounts, key)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountPath() < accounts[j].AccountPath()
	})

	digest := make([]byte, 0, 8+len(payload)+len(accounts)*80)
	digest = appendUint32LE(digest, uint32(len(payload)))
	digest = append(digest, payload...)

	for _, key := range accounts {
		path := key.AccountPath()
		digest = append(digest, byte(len(path)))
		digest = append(digest, path...)

		balance := e.balances.GetBalance(key).Bytes32()
		digest = append(digest, balance[:]...)
	}

	return digest
}

func appendUint32LE(buf []byte, v uint32) []byte {
	return append(buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// GetSequence returns the next sequence to assign.
func (e *Engine) GetSequence() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sequence
}

// GetStateHash returns the current state hash (chain tip).
func (e *Engine) GetStateHash() [32]byte {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.hasher.GetPrevHash()
}

// WarmLRU loads recent request ids into the dedup cache.
func (e *Engine) WarmLRU(keys []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.idempotency.Warm(keys)
}
