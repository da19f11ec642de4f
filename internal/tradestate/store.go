// Package tradestate is the persisted, reconciled view of everything the
// trading side of the runtime needs to know: which client order ids map to
// which exchange order ids, the want-price a strategy recorded before an
// order was acknowledged, every order's latest state, every fill against
// it, and the account's balances.
//
// Every mutation lands in an in-memory sharded map (github.com/puzpuzpuz/
// xsync) for lock-free-ish concurrent reads, and in a persisted kv.Bucket
// so the state survives a restart. Reconciliation rules (stale-update
// rejection, balance merge-not-replace, missing-account-is-an-error) are
// pinned down by the exact behavior of a reference exchange's trading
// state machine rather than invented here.
package tradestate

import (
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/shopspring/decimal"
	"go.etcd.io/bbolt"

	"github.com/0xtitan6/cryptoconnect/internal/binance/models"
	"github.com/0xtitan6/cryptoconnect/internal/errs"
	"github.com/0xtitan6/cryptoconnect/internal/kv"
)

type priceRecord struct {
	Price decimal.Decimal
}

type idRecord struct {
	ExchangeOrderID uint64
}

type presenceRecord struct{}

// Store is the trading state store for one symbol's trading session
// (callers typically keep one Store per market).
type Store struct {
	coiBucket     *kv.Bucket[idRecord]
	cwpBucket     *kv.Bucket[priceRecord]
	ewpBucket     *kv.Bucket[priceRecord]
	eoBucket      *kv.Bucket[models.Order]
	etBucket      *kv.Bucket[models.UserTrade]
	cooBucket     *kv.Bucket[presenceRecord]
	closedBucket  *kv.Bucket[presenceRecord]
	accountBucket *kv.Bucket[models.Account]

	clientOrderIDToExchangeOrderID *xsync.MapOf[string, uint64]
	clientOrderIDWantPrice         *xsync.MapOf[string, decimal.Decimal]
	exchangeOrderIDWantPrice       *xsync.MapOf[uint64, decimal.Decimal]
	exchangeOrderIDOrder           *xsync.MapOf[uint64, *models.Order]
	exchangeOrderIDTrades          *xsync.MapOf[uint64, *xsync.MapOf[uint64, *models.UserTrade]]
	onOrderClientOrderIDs          *xsync.MapOf[string, struct{}]
	closedExchangeOrderIDs         *xsync.MapOf[uint64, struct{}]

	accountMu sync.RWMutex
	account   *models.Account // guarded by accountMu
}

// Open creates or recovers a Store backed by db. On recovery it replays
// every persisted bucket into the in-memory mirrors before returning.
func Open(db *bbolt.DB) (*Store, error) {
	const op = "tradestate.Open"

	s := &Store{
		clientOrderIDToExchangeOrderID: xsync.NewMapOf[string, uint64](),
		clientOrderIDWantPrice:         xsync.NewMapOf[string, decimal.Decimal](),
		exchangeOrderIDWantPrice:       xsync.NewMapOf[uint64, decimal.Decimal](),
		exchangeOrderIDOrder:           xsync.NewMapOf[uint64, *models.Order](),
		exchangeOrderIDTrades:          xsync.NewMapOf[uint64, *xsync.MapOf[uint64, *models.UserTrade]](),
		onOrderClientOrderIDs:          xsync.NewMapOf[string, struct{}](),
		closedExchangeOrderIDs:         xsync.NewMapOf[uint64, struct{}](),
	}

	var err error
	if s.coiBucket, err = kv.Open[idRecord](db, bucketClientOrderIDExchangeOrderID, nil); err != nil {
		return nil, errs.Storage(op, err, "open coi bucket")
	}
	if s.cwpBucket, err = kv.Open[priceRecord](db, bucketClientOrderIDWantPrice, nil); err != nil {
		return nil, errs.Storage(op, err, "open cwp bucket")
	}
	if s.ewpBucket, err = kv.Open[priceRecord](db, bucketExchangeOrderIDWantPrice, nil); err != nil {
		return nil, errs.Storage(op, err, "open ewp bucket")
	}
	if s.eoBucket, err = kv.Open[models.Order](db, bucketExchangeOrderIDOrder, nil); err != nil {
		return nil, errs.Storage(op, err, "open eo bucket")
	}
	if s.etBucket, err = kv.Open[models.UserTrade](db, bucketExchangeOrderIDTrade, nil); err != nil {
		return nil, errs.Storage(op, err, "open et bucket")
	}
	if s.cooBucket, err = kv.Open[presenceRecord](db, bucketOnOrderClientOrderID, nil); err != nil {
		return nil, errs.Storage(op, err, "open coo bucket")
	}
	if s.closedBucket, err = kv.Open[presenceRecord](db, bucketClosedExchangeOrderID, nil); err != nil {
		return nil, errs.Storage(op, err, "open closed bucket")
	}
	if s.accountBucket, err = kv.Open[models.Account](db, bucketAccount, nil); err != nil {
		return nil, errs.Storage(op, err, "open account bucket")
	}

	if err := s.recover(); err != nil {
		return nil, errs.Storage(op, err, "recover persisted state")
	}
	return s, nil
}

func (s *Store) recover() error {
	if err := s.coiBucket.Iter(func(key []byte, value *idRecord) bool {
		s.clientOrderIDToExchangeOrderID.Store(string(key), value.ExchangeOrderID)
		return true
	}); err != nil {
		return err
	}
	if err := s.cwpBucket.Iter(func(key []byte, value *priceRecord) bool {
		s.clientOrderIDWantPrice.Store(string(key), value.Price)
		return true
	}); err != nil {
		return err
	}
	if err := s.ewpBucket.Iter(func(key []byte, value *priceRecord) bool {
		s.exchangeOrderIDWantPrice.Store(decodeExchangeOrderKey(key), value.Price)
		return true
	}); err != nil {
		return err
	}
	if err := s.eoBucket.Iter(func(key []byte, value *models.Order) bool {
		order := *value
		s.exchangeOrderIDOrder.Store(order.ExchangeOrderID, &order)
		return true
	}); err != nil {
		return err
	}
	if err := s.etBucket.Iter(func(key []byte, value *models.UserTrade) bool {
		s.storeTradeMirror(*value)
		return true
	}); err != nil {
		return err
	}
	if err := s.cooBucket.Iter(func(key []byte, value *presenceRecord) bool {
		s.onOrderClientOrderIDs.Store(string(key), struct{}{})
		return true
	}); err != nil {
		return err
	}
	if err := s.closedBucket.Iter(func(key []byte, value *presenceRecord) bool {
		s.closedExchangeOrderIDs.Store(decodeExchangeOrderKey(key), struct{}{})
		return true
	}); err != nil {
		return err
	}

	account, err := s.accountBucket.Get([]byte(accountSingletonKey))
	if err != nil {
		return err
	}
	if account != nil {
		a := *account
		s.accountMu.Lock()
		s.account = &a
		s.accountMu.Unlock()
	}
	return nil
}

func (s *Store) storeTradeMirror(trade models.UserTrade) {
	inner, _ := s.exchangeOrderIDTrades.LoadOrCompute(trade.ExchangeOrderID, func() *xsync.MapOf[uint64, *models.UserTrade] {
		return xsync.NewMapOf[uint64, *models.UserTrade]()
	})
	t := trade
	inner.Store(trade.TradeID, &t)
}

// SetWantPriceByClientOrderID records the price a strategy intends to quote
// for an order, keyed by client order id. If the client order id is already
// mapped to an exchange order id, the price is also recorded in the
// exchange-order-id-keyed ewp index; otherwise UpdateOrder copies it there
// on first acknowledgment.
func (s *Store) SetWantPriceByClientOrderID(clientOrderID string, price decimal.Decimal) error {
	const op = "tradestate.SetWantPriceByClientOrderID"
	if _, err := s.cwpBucket.Insert(clientOrderKey(clientOrderID), &priceRecord{Price: price}); err != nil {
		return errs.Storage(op, err, "client_order_id=%s", clientOrderID)
	}
	s.clientOrderIDWantPrice.Store(clientOrderID, price)

	if exchangeOrderID, ok := s.clientOrderIDToExchangeOrderID.Load(clientOrderID); ok {
		if _, err := s.ewpBucket.Insert(exchangeOrderKey(exchangeOrderID), &priceRecord{Price: price}); err != nil {
			return errs.Storage(op, err, "persist ewp for %d", exchangeOrderID)
		}
		s.exchangeOrderIDWantPrice.Store(exchangeOrderID, price)
	}
	return nil
}

// UpdateOrder reconciles an order's latest exchange-reported state.
//
// A payload is rejected (a no-op, not an error) if the order is already
// closed, or if it is older than the order currently on file, determined
// by UpdateTime — a closed order never reopens, and applying a stale
// snapshot after a fresher one must never roll state backward regardless
// of arrival order. On first acknowledgment of a client order id, the
// coi/coo indices are populated and any recorded want-price is copied into
// the exchange-order-id-keyed ewp index. A terminal status additionally
// marks the order closed.
func (s *Store) UpdateOrder(order models.Order) error {
	const op = "tradestate.UpdateOrder"

	if s.IsClosed(order.ExchangeOrderID) {
		return nil
	}

	if existing, ok := s.exchangeOrderIDOrder.Load(order.ExchangeOrderID); ok {
		if order.UpdateTime < existing.UpdateTime {
			return nil
		}
	}

	o := order
	if _, err := s.eoBucket.Insert(exchangeOrderKey(order.ExchangeOrderID), &o); err != nil {
		return errs.Storage(op, err, "persist order %d", order.ExchangeOrderID)
	}
	s.exchangeOrderIDOrder.Store(order.ExchangeOrderID, &o)

	if order.ClientOrderID != "" {
		if _, ok := s.clientOrderIDToExchangeOrderID.Load(order.ClientOrderID); !ok {
			if _, err := s.coiBucket.Insert(clientOrderKey(order.ClientOrderID), &idRecord{ExchangeOrderID: order.ExchangeOrderID}); err != nil {
				return errs.Storage(op, err, "persist coi for %s", order.ClientOrderID)
			}
			s.clientOrderIDToExchangeOrderID.Store(order.ClientOrderID, order.ExchangeOrderID)

			if _, err := s.cooBucket.Insert(clientOrderKey(order.ClientOrderID), &presenceRecord{}); err != nil {
				return errs.Storage(op, err, "persist coo for %s", order.ClientOrderID)
			}
			s.onOrderClientOrderIDs.Store(order.ClientOrderID, struct{}{})

			if price, ok := s.clientOrderIDWantPrice.Load(order.ClientOrderID); ok {
				if _, err := s.ewpBucket.Insert(exchangeOrderKey(order.ExchangeOrderID), &priceRecord{Price: price}); err != nil {
					return errs.Storage(op, err, "persist ewp for %d", order.ExchangeOrderID)
				}
				s.exchangeOrderIDWantPrice.Store(order.ExchangeOrderID, price)
			}
		}
	}

	if order.Status.Terminal() {
		if _, err := s.closedBucket.Insert(exchangeOrderKey(order.ExchangeOrderID), &presenceRecord{}); err != nil {
			return errs.Storage(op, err, "persist closed marker for %d", order.ExchangeOrderID)
		}
		s.closedExchangeOrderIDs.Store(order.ExchangeOrderID, struct{}{})
	}

	return nil
}

// UpdateTrade records a fill against an exchange order id.
func (s *Store) UpdateTrade(trade models.UserTrade) error {
	const op = "tradestate.UpdateTrade"

	if _, err := s.etBucket.Insert(tradeKey(trade.ExchangeOrderID, trade.TradeID), &trade); err != nil {
		return errs.Storage(op, err, "persist trade %d for order %d", trade.TradeID, trade.ExchangeOrderID)
	}
	s.storeTradeMirror(trade)
	return nil
}

// SetAccount performs the initial full account load (e.g. from a REST
// snapshot at startup). It always replaces whatever was there.
func (s *Store) SetAccount(account models.Account) error {
	a := account
	if _, err := s.accountBucket.Insert([]byte(accountSingletonKey), &a); err != nil {
		return errs.Storage("tradestate.SetAccount", err, "persist account")
	}
	s.accountMu.Lock()
	s.account = &a
	s.accountMu.Unlock()
	return nil
}

// ApplyAccountUpdate merges a user-data-stream outboundAccountPosition push
// into the account on file. Requires an account to already exist (a push
// before the initial REST snapshot is an error, not a silent no-op, since
// there is nothing to merge into). An update no newer than the account's
// current UpdateTime is ignored entirely.
func (s *Store) ApplyAccountUpdate(update models.AccountUpdate) error {
	const op = "tradestate.ApplyAccountUpdate"

	s.accountMu.Lock()
	defer s.accountMu.Unlock()

	if s.account == nil {
		return errs.State(op, errs.StateAccountAbsent, "account is not set")
	}
	if update.UpdateTime <= s.account.UpdateTime {
		return nil
	}

	merged := *s.account
	if merged.Balances == nil {
		merged.Balances = make(map[string]models.Balance)
	} else {
		clone := make(map[string]models.Balance, len(merged.Balances))
		for k, v := range merged.Balances {
			clone[k] = v
		}
		merged.Balances = clone
	}
	for _, bal := range update.Balances {
		merged.Balances[bal.Asset] = bal
	}
	merged.UpdateTime = update.UpdateTime

	if _, err := s.accountBucket.Insert([]byte(accountSingletonKey), &merged); err != nil {
		return errs.Storage(op, err, "persist merged account")
	}
	s.account = &merged
	return nil
}

// Account returns the current account state, or nil if none has been set.
func (s *Store) Account() *models.Account {
	s.accountMu.RLock()
	defer s.accountMu.RUnlock()
	if s.account == nil {
		return nil
	}
	a := *s.account
	return &a
}

// OrderByExchangeID returns the order on file for the given exchange order
// id, or nil.
func (s *Store) OrderByExchangeID(exchangeOrderID uint64) *models.Order {
	o, ok := s.exchangeOrderIDOrder.Load(exchangeOrderID)
	if !ok {
		return nil
	}
	c := *o
	return &c
}

// ExchangeOrderIDForClientOrderID resolves a client order id to the
// exchange order id it was acknowledged under, if known.
func (s *Store) ExchangeOrderIDForClientOrderID(clientOrderID string) (uint64, bool) {
	return s.clientOrderIDToExchangeOrderID.Load(clientOrderID)
}

// WantPriceForExchangeOrderID returns the want-price recorded for an
// exchange order id, if any.
func (s *Store) WantPriceForExchangeOrderID(exchangeOrderID uint64) (decimal.Decimal, bool) {
	return s.exchangeOrderIDWantPrice.Load(exchangeOrderID)
}

// TradesForOrder returns every recorded fill for an exchange order id,
// sorted by trade id ascending.
func (s *Store) TradesForOrder(exchangeOrderID uint64) []models.UserTrade {
	inner, ok := s.exchangeOrderIDTrades.Load(exchangeOrderID)
	if !ok {
		return nil
	}
	out := make([]models.UserTrade, 0)
	inner.Range(func(_ uint64, t *models.UserTrade) bool {
		out = append(out, *t)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].TradeID < out[j].TradeID })
	return out
}

// IsClosed reports whether an exchange order id has reached a terminal
// status.
func (s *Store) IsClosed(exchangeOrderID uint64) bool {
	_, ok := s.closedExchangeOrderIDs.Load(exchangeOrderID)
	return ok
}

func decodeExchangeOrderKey(key []byte) uint64 {
	var v uint64
	for _, b := range key[:8] {
		v = v<<8 | uint64(b)
	}
	return v
}
