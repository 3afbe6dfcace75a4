package commission

import (
	"context"
	"strings"
	"time"

	"staykeeper/internal/app/dto"
	handlersupport "staykeeper/internal/app/handlers/support"
	"staykeeper/internal/app/queries"
	"staykeeper/internal/app/uow"
	domaincommission "staykeeper/internal/domain/commission"
	domainlistings "staykeeper/internal/domain/listings"
	"staykeeper/internal/domain/shared/errs"
	"staykeeper/internal/domain/shared/money"
	domainuser "staykeeper/internal/domain/user"
)

const (
	previewCommissionKey   = "commission.preview"
	getCommissionRateKey   = "commission.rate"
	getCommissionKey       = "commission.get"
	listHostCommissionsKey = "commission.list_host"
	pendingCommissionsKey  = "commission.pending"
	hostEarningsKey        = "commission.host_earnings"
	platformRevenueKey     = "commission.platform_revenue"
)

var (
	ErrNotTransactionParty = errs.Forbidden("commission: transaction belongs to another account")
	ErrInvalidPeriod       = errs.Validation("commission: period end must be after its start")
)

type PreviewCommissionQuery struct {
	Amount   int64  `validate:"gt=0"`
	Currency string `validate:"required,len=3"`
}

func (q PreviewCommissionQuery) Key() string { return previewCommissionKey }

type GetCommissionRateQuery struct{}

func (q GetCommissionRateQuery) Key() string { return getCommissionRateKey }

type GetCommissionQuery struct {
	TransactionID string `validate:"required"`
	ActorIDV      string `validate:"required"`
}

func (q GetCommissionQuery) Key() string { return getCommissionKey }

func (q GetCommissionQuery) ActorID() string { return q.ActorIDV }

type ListHostCommissionsQuery struct {
	HostID string `validate:"required"`
	Status string
}

func (q ListHostCommissionsQuery) Key() string { return listHostCommissionsKey }

func (q ListHostCommissionsQuery) ActorID() string { return q.HostID }

type PendingCommissionsQuery struct {
	HostID   string `validate:"required"`
	Currency string
}

func (q PendingCommissionsQuery) Key() string { return pendingCommissionsKey }

func (q PendingCommissionsQuery) ActorID() string { return q.HostID }

type HostEarningsQuery struct {
	HostID   string `validate:"required"`
	Currency string `validate:"omitempty,len=3"`
}

func (q HostEarningsQuery) Key() string { return hostEarningsKey }

func (q HostEarningsQuery) ActorID() string { return q.HostID }

// PlatformRevenueQuery carries no actor; callers gate it on the platform role.
type PlatformRevenueQuery struct {
	From     time.Time
	To       time.Time
	Currency string `validate:"omitempty,len=3"`
}

func (q PlatformRevenueQuery) Key() string { return platformRevenueKey }

type PreviewCommissionHandler struct {
	Rate domaincommission.Rate
}

func (h *PreviewCommissionHandler) Handle(_ context.Context, q PreviewCommissionQuery) (dto.CommissionPreview, error) {
	amount, err := money.New(q.Amount, q.Currency)
	if err != nil {
		return dto.CommissionPreview{}, err
	}
	split, err := domaincommission.Quote(amount, h.Rate)
	if err != nil {
		return dto.CommissionPreview{}, err
	}
	return dto.MapSplit(split), nil
}

type GetCommissionRateHandler struct {
	Rate domaincommission.Rate
}

func (h *GetCommissionRateHandler) Handle(context.Context, GetCommissionRateQuery) (dto.CommissionRate, error) {
	return dto.CommissionRate{Rate: h.Rate.String()}, nil
}

type GetCommissionHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetCommissionHandler) Handle(ctx context.Context, q GetCommissionQuery) (dto.Commission, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Commission{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	tx, err := unit.Commissions().ByID(execCtx, domaincommission.ID(strings.TrimSpace(q.TransactionID)))
	if err != nil {
		return dto.Commission{}, err
	}
	actor := strings.TrimSpace(q.ActorIDV)
	if actor != string(tx.HostID) && actor != string(tx.GuestID) {
		return dto.Commission{}, ErrNotTransactionParty
	}
	return dto.MapCommission(tx), nil
}

type ListHostCommissionsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListHostCommissionsHandler) Handle(ctx context.Context, q ListHostCommissionsQuery) (dto.CommissionCollection, error) {
	var status domaincommission.Status
	if strings.TrimSpace(q.Status) != "" {
		parsed, err := domaincommission.ParseStatus(q.Status)
		if err != nil {
			return dto.CommissionCollection{}, err
		}
		status = parsed
	}
	items, err := hostCommissions(ctx, h.UoWFactory, q.HostID, status)
	if err != nil {
		return dto.CommissionCollection{}, err
	}
	out := dto.CommissionCollection{Items: make([]dto.Commission, 0, len(items))}
	for _, tx := range items {
		out.Items = append(out.Items, dto.MapCommission(tx))
	}
	return out, nil
}

// PendingCommissionsHandler sums what a host still owes. Hosts with no open
// transactions get a zero total in the requested currency.
type PendingCommissionsHandler struct {
	UoWFactory      uow.UoWFactory
	DefaultCurrency string
}

func (h *PendingCommissionsHandler) Handle(ctx context.Context, q PendingCommissionsQuery) (dto.PendingCommissions, error) {
	items, err := hostCommissions(ctx, h.UoWFactory, q.HostID, domaincommission.StatusPending)
	if err != nil {
		return dto.PendingCommissions{}, err
	}
	currency := strings.ToUpper(strings.TrimSpace(q.Currency))
	if currency == "" && len(items) > 0 {
		currency = items[0].Commission.Currency
	}
	if currency == "" {
		currency = h.DefaultCurrency
	}
	total := money.Zero(currency)
	count := 0
	for _, tx := range items {
		if tx.Commission.Currency != currency {
			continue
		}
		if total, err = total.Add(tx.Commission); err != nil {
			return dto.PendingCommissions{}, err
		}
		count++
	}
	return dto.PendingCommissions{HostID: strings.TrimSpace(q.HostID), Count: count, Total: dto.MapMoney(total)}, nil
}

// HostEarningsHandler summarises a host's transactions in one currency.
type HostEarningsHandler struct {
	UoWFactory      uow.UoWFactory
	Rate            domaincommission.Rate
	DefaultCurrency string
}

func (h *HostEarningsHandler) Handle(ctx context.Context, q HostEarningsQuery) (dto.HostEarnings, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.HostEarnings{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	host := strings.TrimSpace(q.HostID)
	if err := requireHost(execCtx, unit, domainuser.ID(host)); err != nil {
		return dto.HostEarnings{}, err
	}
	currency := pickCurrency(q.Currency, h.DefaultCurrency)
	totals, err := unit.Commissions().Totals(execCtx, domaincommission.TotalsFilter{
		HostID:   domainlistings.HostID(host),
		Currency: currency,
	})
	if err != nil {
		return dto.HostEarnings{}, err
	}
	amount := minorUnits(currency)
	return dto.HostEarnings{
		HostID:            host,
		TotalBookings:     totals.Transactions,
		GrossEarnings:     amount(totals.Gross),
		CommissionCharged: amount(totals.Commission),
		NetEarnings:       amount(totals.Net),
		PendingCommission: amount(totals.Pending),
		PayoutsReceived:   amount(totals.PaidOut),
		CommissionRate:    h.Rate.String(),
	}, nil
}

// PlatformRevenueHandler sums commission across hosts for transactions
// created in [From, To). Zero bounds leave that side open.
type PlatformRevenueHandler struct {
	UoWFactory      uow.UoWFactory
	Rate            domaincommission.Rate
	DefaultCurrency string
}

func (h *PlatformRevenueHandler) Handle(ctx context.Context, q PlatformRevenueQuery) (dto.PlatformRevenue, error) {
	if !q.From.IsZero() && !q.To.IsZero() && !q.To.After(q.From) {
		return dto.PlatformRevenue{}, ErrInvalidPeriod
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.PlatformRevenue{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	currency := pickCurrency(q.Currency, h.DefaultCurrency)
	totals, err := unit.Commissions().Totals(execCtx, domaincommission.TotalsFilter{
		Currency: currency,
		From:     q.From,
		To:       q.To,
	})
	if err != nil {
		return dto.PlatformRevenue{}, err
	}
	amount := minorUnits(currency)
	out := dto.PlatformRevenue{
		TotalTransactions:    totals.Transactions,
		CommissionsEarned:    amount(totals.Commission),
		CommissionsCollected: amount(totals.Collected),
		CommissionsPending:   amount(totals.Pending),
		CommissionRate:       h.Rate.String(),
	}
	if !q.From.IsZero() {
		from := q.From.UTC()
		out.From = &from
	}
	if !q.To.IsZero() {
		to := q.To.UTC()
		out.To = &to
	}
	return out, nil
}

func pickCurrency(requested, fallback string) string {
	if c := strings.ToUpper(strings.TrimSpace(requested)); c != "" {
		return c
	}
	if fallback == "" {
		return money.DefaultCurrency
	}
	return fallback
}

func minorUnits(currency string) func(int64) dto.MoneyDTO {
	return func(amount int64) dto.MoneyDTO {
		return dto.MoneyDTO{Amount: amount, Currency: currency}
	}
}

func hostCommissions(ctx context.Context, factory uow.UoWFactory, hostID string, status domaincommission.Status) ([]*domaincommission.Transaction, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, factory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	host := strings.TrimSpace(hostID)
	if err := requireHost(execCtx, unit, domainuser.ID(host)); err != nil {
		return nil, err
	}
	return unit.Commissions().ListByHost(execCtx, domainlistings.HostID(host), status)
}

var _ queries.Handler[PreviewCommissionQuery, dto.CommissionPreview] = (*PreviewCommissionHandler)(nil)
var _ queries.Handler[GetCommissionRateQuery, dto.CommissionRate] = (*GetCommissionRateHandler)(nil)
var _ queries.Handler[GetCommissionQuery, dto.Commission] = (*GetCommissionHandler)(nil)
var _ queries.Handler[ListHostCommissionsQuery, dto.CommissionCollection] = (*ListHostCommissionsHandler)(nil)
var _ queries.Handler[PendingCommissionsQuery, dto.PendingCommissions] = (*PendingCommissionsHandler)(nil)
var _ queries.Handler[HostEarningsQuery, dto.HostEarnings] = (*HostEarningsHandler)(nil)
var _ queries.Handler[PlatformRevenueQuery, dto.PlatformRevenue] = (*PlatformRevenueHandler)(nil)
