package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"proplend/core/events"
	"proplend/core/state"
	"proplend/crypto"
	"proplend/native/bank"
	nativecommon "proplend/native/common"
	"proplend/native/lending"
	"proplend/native/market"
	"proplend/native/tranche"
	"proplend/native/waterfall"
	"proplend/observability"
	"proplend/storage"
)

// Module accounts. Each module holds its currency at a fixed address derived
// from its name.
var (
	LendingPoolAddress  = crypto.ModuleAddress("module/lending")
	DistributorAddress  = crypto.ModuleAddress("module/waterfall")
	MarketEscrowAddress = crypto.ModuleAddress("module/market")
	SeniorYieldAddress  = crypto.ModuleAddress("yield/senior")
	JuniorYieldAddress  = crypto.ModuleAddress("yield/junior")
)

var errZeroAdmin = nativecommon.NewError(nativecommon.ErrInvalidAmount, "ledger: bootstrap admin must not be zero")

// Params bundles the economics of every module.
type Params struct {
	Lending   lending.Params
	Waterfall waterfall.Params
	Market    market.Params
}

func DefaultParams() Params {
	return Params{
		Lending:   lending.DefaultParams(),
		Waterfall: waterfall.DefaultParams(),
		Market:    market.DefaultParams(),
	}
}

// Validate checks the bundled params.
func (p Params) Validate() error {
	if err := p.Lending.Validate(); err != nil {
		return err
	}
	if p.Waterfall.PlatformMarginBps > nativecommon.BasisPointsDenominator {
		return fmt.Errorf("waterfall params: PlatformMarginBps above %d", nativecommon.BasisPointsDenominator)
	}
	if p.Market.TradingFeeBps > nativecommon.BasisPointsDenominator {
		return fmt.Errorf("market params: TradingFeeBps above %d", nativecommon.BasisPointsDenominator)
	}
	return nil
}

// Ledger serialises every operation against one store. Each call runs on a
// fresh state.Manager; its writes land in a single atomic batch on success and
// are dropped on failure, and its events are released only after commit.
type Ledger struct {
	stateMu sync.Mutex

	db      storage.Database
	params  Params
	emitter events.Emitter
	logger  *slog.Logger
	nowFn   func() time.Time
	pauses  nativecommon.PauseView
	tracer  trace.Tracer
}

type Option func(*Ledger)

// WithEmitter receives committed events in order.
func WithEmitter(emitter events.Emitter) Option {
	return func(l *Ledger) {
		if emitter != nil {
			l.emitter = emitter
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.nowFn = now
		}
	}
}

func WithPauses(p nativecommon.PauseView) Option {
	return func(l *Ledger) { l.pauses = p }
}

// NewLedger opens a ledger over db.
func NewLedger(db storage.Database, params Params, opts ...Option) (*Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("ledger: nil database")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	l := &Ledger{
		db:      db,
		params:  params,
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		nowFn:   time.Now,
		tracer:  otel.Tracer("proplend/core"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

func (l *Ledger) Params() Params { return l.params }

// modules is one operation's view of the engines, all bound to the same
// manager and event buffer.
type modules struct {
	manager   *state.Manager
	bank      *bank.Engine
	tranche   *tranche.Engine
	lending   *lending.Engine
	waterfall *waterfall.Engine
	market    *market.Engine
	emitter   events.Emitter
}

func (l *Ledger) newModules(manager *state.Manager, emitter events.Emitter) *modules {
	bankEngine := bank.NewEngine()
	bankEngine.SetState(manager)
	bankEngine.SetAuthorizer(manager)
	bankEngine.SetPauses(l.pauses)
	bankEngine.SetEmitter(emitter)

	trancheEngine := tranche.NewEngine()
	trancheEngine.SetState(manager)
	trancheEngine.SetAuthorizer(manager)
	trancheEngine.SetPauses(l.pauses)
	trancheEngine.SetEmitter(emitter)

	lendingEngine := lending.NewEngine(l.params.Lending)
	waterfallEngine := waterfall.NewEngine(l.params.Waterfall)

	waterfallEngine.SetState(manager)
	waterfallEngine.SetVault(bankEngine.Vault(DistributorAddress))
	waterfallEngine.SetPoolView(lendingEngine)
	waterfallEngine.SetAuthorizer(manager)
	waterfallEngine.SetPauses(l.pauses)
	waterfallEngine.SetEmitter(emitter)

	lendingEngine.SetState(manager)
	lendingEngine.SetShares(trancheEngine)
	lendingEngine.SetVault(bankEngine.Vault(LendingPoolAddress))
	lendingEngine.SetInterestSink(waterfallEngine)
	lendingEngine.SetAuthorizer(manager)
	lendingEngine.SetPauses(l.pauses)
	lendingEngine.SetEmitter(emitter)
	lendingEngine.SetNowFunc(l.nowFn)

	marketEngine := market.NewEngine(MarketEscrowAddress, l.params.Market)
	marketEngine.SetState(manager)
	marketEngine.SetShares(trancheEngine)
	marketEngine.SetCurrency(bankEngine)
	marketEngine.SetAuthorizer(manager)
	marketEngine.SetPauses(l.pauses)
	marketEngine.SetEmitter(emitter)
	marketEngine.SetNowFunc(l.nowFn)

	return &modules{
		manager:   manager,
		bank:      bankEngine,
		tranche:   trancheEngine,
		lending:   lendingEngine,
		waterfall: waterfallEngine,
		market:    marketEngine,
		emitter:   emitter,
	}
}

// execute runs fn as one all-or-nothing operation.
func (l *Ledger) execute(ctx context.Context, op string, fn func(m *modules) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := l.tracer.Start(ctx, "ledger."+op)
	defer span.End()
	started := time.Now()

	if err := ctx.Err(); err != nil {
		l.finish(ctx, span, op, started, nil, err)
		return err
	}

	l.stateMu.Lock()
	defer l.stateMu.Unlock()

	buffer := events.NewBuffer()
	manager := state.NewManager(l.db)
	err := fn(l.newModules(manager, buffer))
	if err == nil {
		if commitErr := manager.Commit(); commitErr != nil {
			err = fmt.Errorf("ledger: commit %s: %w", op, commitErr)
		}
	}
	if err != nil {
		manager.Discard()
		buffer.Flush(nil)
		l.finish(ctx, span, op, started, nil, err)
		return err
	}
	committed := buffer.Events()
	buffer.Flush(l.emitter)
	l.finish(ctx, span, op, started, committed, nil)
	return nil
}

func (l *Ledger) finish(ctx context.Context, span trace.Span, op string, started time.Time, committed []events.Event, err error) {
	outcome := "ok"
	if err != nil {
		outcome = nativecommon.KindName(err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			outcome = "cancelled"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		l.logger.WarnContext(ctx, "ledger operation rejected", "op", op, "kind", outcome, "error", err)
	} else {
		rendered := make([]any, 0, len(committed))
		for _, evt := range committed {
			rendered = append(rendered, events.Canonical(evt))
		}
		span.SetAttributes(attribute.Int("events", len(committed)))
		l.logger.InfoContext(ctx, "ledger operation committed", "op", op, "events", rendered)
	}
	span.SetAttributes(attribute.String("outcome", outcome))
	observability.Ledger().Observe(op, outcome, time.Since(started))
}

// view runs a read-only fn. Nothing it writes is committed.
func (l *Ledger) view(fn func(m *modules) error) error {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	manager := state.NewManager(l.db)
	defer manager.Discard()
	return fn(l.newModules(manager, events.NoopEmitter{}))
}

// BootstrapConfig describes the deployment wiring.
type BootstrapConfig struct {
	// Admin receives the admin role on every scope.
	Admin crypto.Address
	// Treasury receives the platform margin. Zero defaults to Admin.
	Treasury crypto.Address
	// MarketTreasury receives trading fees. Zero defaults to Treasury.
	MarketTreasury crypto.Address
	// Zero recipients default to the module yield accounts.
	SeniorRecipient crypto.Address
	JuniorRecipient crypto.Address
	// Operators may originate and write down loans.
	Operators []crypto.Address
	// DeferDistributor leaves the pool without a distributor; repayments
	// retain their interest until BindDistributor is called.
	DeferDistributor bool
}

// Bootstrap registers both share tokens and binds every module to the
// others in one atomic call. It fails with ErrAlreadySet when run twice.
func (l *Ledger) Bootstrap(ctx context.Context, cfg BootstrapConfig) error {
	if cfg.Admin.IsZero() {
		return errZeroAdmin
	}
	if cfg.Treasury.IsZero() {
		cfg.Treasury = cfg.Admin
	}
	if cfg.MarketTreasury.IsZero() {
		cfg.MarketTreasury = cfg.Treasury
	}
	if cfg.SeniorRecipient.IsZero() {
		cfg.SeniorRecipient = SeniorYieldAddress
	}
	if cfg.JuniorRecipient.IsZero() {
		cfg.JuniorRecipient = JuniorYieldAddress
	}
	admin := cfg.Admin
	return l.execute(ctx, "bootstrap", func(m *modules) error {
		for _, scope := range nativecommon.Scopes {
			if err := m.grant(scope, nativecommon.RoleAdmin, admin, admin); err != nil {
				return err
			}
		}
		senior := tranche.DefaultToken(tranche.Senior)
		junior := tranche.DefaultToken(tranche.Junior)
		for _, token := range []*tranche.Token{senior, junior} {
			if err := m.tranche.Register(token); err != nil {
				return err
			}
			if err := m.grant(token.Class.Scope(), nativecommon.RoleMinter, LendingPoolAddress, admin); err != nil {
				return err
			}
			if err := m.grant(token.Class.Scope(), nativecommon.RoleBurner, LendingPoolAddress, admin); err != nil {
				return err
			}
		}
		if err := m.lending.SetTrancheTokens(admin, senior.Address, junior.Address); err != nil {
			return err
		}
		if err := m.market.SetTrancheTokens(admin, senior.Address, junior.Address); err != nil {
			return err
		}
		if err := m.market.SetTreasury(admin, cfg.MarketTreasury); err != nil {
			return err
		}
		if err := m.waterfall.SetLendingPool(admin, LendingPoolAddress); err != nil {
			return err
		}
		if err := m.grant(nativecommon.ScopeWaterfall, nativecommon.RoleOperator, LendingPoolAddress, admin); err != nil {
			return err
		}
		if err := m.waterfall.SetTreasury(admin, cfg.Treasury); err != nil {
			return err
		}
		if err := m.waterfall.SetPoolRecipients(admin, cfg.SeniorRecipient, cfg.JuniorRecipient); err != nil {
			return err
		}
		if !cfg.DeferDistributor {
			if err := m.lending.SetDistributor(admin, DistributorAddress); err != nil {
				return err
			}
		}
		for _, operator := range cfg.Operators {
			if err := m.grant(nativecommon.ScopeLending, nativecommon.RoleOperator, operator, admin); err != nil {
				return err
			}
		}
		return nil
	})
}

// BindDistributor binds the waterfall distributor to the pool after a
// deferred bootstrap.
func (l *Ledger) BindDistributor(ctx context.Context, caller crypto.Address) error {
	return l.execute(ctx, "bind_distributor", func(m *modules) error {
		return m.lending.SetDistributor(caller, DistributorAddress)
	})
}

// GrantRole gives addr role within scope. Caller must be admin of scope.
func (l *Ledger) GrantRole(ctx context.Context, caller crypto.Address, scope string, role nativecommon.Role, addr crypto.Address) error {
	return l.execute(ctx, "grant_role", func(m *modules) error {
		if err := m.checkRoleChange(caller, scope, role, addr); err != nil {
			return err
		}
		return m.grant(scope, role, addr, caller)
	})
}

// RevokeRole removes role within scope from addr. Caller must be admin of
// scope.
func (l *Ledger) RevokeRole(ctx context.Context, caller crypto.Address, scope string, role nativecommon.Role, addr crypto.Address) error {
	return l.execute(ctx, "revoke_role", func(m *modules) error {
		if err := m.checkRoleChange(caller, scope, role, addr); err != nil {
			return err
		}
		if err := m.manager.RevokeRole(scope, role, addr); err != nil {
			return err
		}
		m.emitter.Emit(events.RoleChanged{Granted: false, Scope: scope, Role: string(role), Account: addr, Admin: caller})
		return nil
	})
}

var (
	errUnknownRole = nativecommon.NewError(nativecommon.ErrInvalidAmount, "ledger: unknown scope or role")
	errZeroMember  = nativecommon.NewError(nativecommon.ErrInvalidAmount, "ledger: role member must not be zero")
)

func (m *modules) checkRoleChange(caller crypto.Address, scope string, role nativecommon.Role, addr crypto.Address) error {
	if !nativecommon.ValidScope(scope) || !nativecommon.ValidRole(role) {
		return errUnknownRole
	}
	if addr.IsZero() {
		return errZeroMember
	}
	return nativecommon.RequireRole(m.manager, scope, nativecommon.RoleAdmin, caller)
}

func (m *modules) grant(scope string, role nativecommon.Role, addr, admin crypto.Address) error {
	if m.manager.HasRole(scope, role, addr) {
		return nil
	}
	if err := m.manager.SetRole(scope, role, addr); err != nil {
		return err
	}
	m.emitter.Emit(events.RoleChanged{Granted: true, Scope: scope, Role: string(role), Account: addr, Admin: admin})
	return nil
}
