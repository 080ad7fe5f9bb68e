// Package cartsync reconciles the local cart store with the authoritative
// remote order. Mutations are applied optimistically for instant UI
// feedback, then confirmed against the commerce backend, whose answer
// replaces the local state wholesale.
package cartsync

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yohannesjx/jsfashion-frontend/internal/cart"
	"github.com/yohannesjx/jsfashion-frontend/internal/commerce"
)

// OrderAPI is the slice of the commerce client the syncer needs.
type OrderAPI interface {
	AddItemToOrder(ctx context.Context, cookie, variantID string, quantity int) (*commerce.Response, *commerce.OrderResult, error)
	ApplyCouponCode(ctx context.Context, cookie, code string) (*commerce.Response, *commerce.OrderResult, error)
	EligibleShippingMethods(ctx context.Context, cookie string) (*commerce.Response, []commerce.ShippingMethod, error)
}

// Syncer keeps one cart store consistent with the remote order. It tracks
// the shop API session cookie across calls the way a browser would.
//
// Responses can land out of order when the shopper changes quantities
// rapidly. Each remote call is numbered, and a response is only applied if
// no newer response has been applied already; stale answers are dropped.
// The original storefront let the last response win regardless of send
// order, so this is deliberately stricter.
type Syncer struct {
	store  *cart.Store
	api    OrderAPI
	log    logrus.FieldLogger
	tracer trace.Tracer

	mu          sync.Mutex
	cookie      string
	nextSeq     uint64
	appliedSeq  uint64
	deliveryFee int64
	discount    int64
}

// NewSyncer constructor
func NewSyncer(store *cart.Store, api OrderAPI, log logrus.FieldLogger) *Syncer {
	return &Syncer{
		store:  store,
		api:    api,
		log:    log,
		tracer: otel.Tracer("cartsync"),
	}
}

// SyncAdd applies an add-to-cart locally, then confirms it against the
// remote order.
func (s *Syncer) SyncAdd(ctx context.Context, item cart.Item) error {
	ctx, span := s.tracer.Start(ctx, "SyncAdd")
	defer span.End()
	span.SetAttributes(
		attribute.String("app.variant_id", item.ID),
		attribute.Int("app.quantity", item.Quantity),
	)

	if err := s.store.AddItem(ctx, item); err != nil {
		s.log.WithError(err).Warn("cartsync: optimistic add not persisted")
	}
	s.sync(ctx, item.ID, item.Quantity)
	return nil
}

// SyncQuantity sets an item's quantity locally, then confirms it against
// the remote order. A quantity of zero removes the line locally and makes
// no remote call, which is the cart page's behavior.
func (s *Syncer) SyncQuantity(ctx context.Context, itemID string, quantity int) error {
	ctx, span := s.tracer.Start(ctx, "SyncQuantity")
	defer span.End()
	span.SetAttributes(
		attribute.String("app.variant_id", itemID),
		attribute.Int("app.quantity", quantity),
	)

	if quantity <= 0 {
		if err := s.store.RemoveItem(ctx, itemID); err != nil {
			s.log.WithError(err).Warn("cartsync: optimistic remove not persisted")
		}
		s.refreshDeliveryFee(ctx)
		return nil
	}

	if err := s.store.SetQuantityOrRemove(ctx, itemID, quantity); err != nil {
		s.log.WithError(err).Warn("cartsync: optimistic update not persisted")
	}
	s.sync(ctx, itemID, quantity)
	return nil
}

// sync issues the remote mutation and applies the authoritative snapshot.
// Failures of any kind leave the optimistic local state in place; nothing
// is rolled back or retried. The delivery fee is refreshed on every path:
// the optimistic mutation changed the item list even when the confirm
// fails.
func (s *Syncer) sync(ctx context.Context, variantID string, quantity int) {
	defer s.refreshDeliveryFee(ctx)

	s.mu.Lock()
	s.nextSeq++
	seq := s.nextSeq
	cookie := s.cookie
	s.mu.Unlock()

	res, result, err := s.api.AddItemToOrder(ctx, cookie, variantID, quantity)
	if err != nil {
		s.log.WithError(err).WithField("variant_id", variantID).Error("cartsync: remote update failed")
		return
	}
	s.rememberCookie(res)

	if result.Err != nil {
		s.log.WithFields(logrus.Fields{
			"variant_id": variantID,
			"error_code": result.Err.ErrorCode,
		}).Error("cartsync: remote update rejected")
		return
	}

	s.applyOrder(ctx, seq, result.Order)
}

// applyOrder replaces local cart state from the order snapshot, unless a
// newer response has already been applied. The sequence check and the store
// update happen under one lock, so two responses passing the check cannot
// write in the reverse of their sequence order. The store has its own lock
// and never calls back into the syncer, so holding s.mu across Replace is
// safe.
func (s *Syncer) applyOrder(ctx context.Context, seq uint64, order *commerce.Order) {
	items := make([]cart.Item, 0, len(order.Lines))
	for _, line := range order.Lines {
		items = append(items, lineToItem(line))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.appliedSeq {
		s.log.WithFields(logrus.Fields{"seq": seq, "applied": s.appliedSeq}).Debug("cartsync: discarding stale response")
		return
	}
	s.appliedSeq = seq
	if err := s.store.Replace(ctx, items, order.TotalWithTax); err != nil {
		s.log.WithError(err).Warn("cartsync: synced state not persisted")
	}
}

// ApplyCoupon applies a promotion code to the remote order and records the
// resulting discount. The discount tracks the order's first discount entry:
// a rejected code or an order with no discounts resets it to zero, while a
// transport failure keeps the previous value.
func (s *Syncer) ApplyCoupon(ctx context.Context, code string) error {
	ctx, span := s.tracer.Start(ctx, "ApplyCoupon")
	defer span.End()
	span.SetAttributes(attribute.String("app.coupon_code", code))

	s.mu.Lock()
	cookie := s.cookie
	s.mu.Unlock()

	res, result, err := s.api.ApplyCouponCode(ctx, cookie, code)
	if err != nil {
		s.log.WithError(err).Error("cartsync: applying coupon failed")
		return err
	}
	s.rememberCookie(res)

	var discount int64
	if result.Err != nil {
		s.log.WithField("error_code", result.Err.ErrorCode).Warn("cartsync: coupon rejected")
	} else if len(result.Order.Discounts) > 0 {
		discount = result.Order.Discounts[0].AmountWithTax
	}

	s.mu.Lock()
	s.discount = discount
	s.mu.Unlock()
	return nil
}

// Discount returns the discount applied by the last accepted coupon, in
// minor units.
func (s *Syncer) Discount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discount
}

// lineToItem maps a remote order line to a local cart item. The line price
// is the whole line with tax, so the unit price is recovered by dividing by
// the quantity.
func lineToItem(line commerce.OrderLine) cart.Item {
	item := cart.Item{
		ID:       line.ProductVariant.ID,
		Name:     line.ProductVariant.Name,
		Quantity: line.Quantity,
	}
	if line.Quantity > 0 {
		item.UnitPrice = line.LinePriceWithTax / int64(line.Quantity)
	}
	if line.ProductVariant.FeaturedAsset != nil {
		item.Image = line.ProductVariant.FeaturedAsset.Preview
	}
	return item
}

// refreshDeliveryFee re-reads the eligible shipping methods and takes the
// first method's taxed price as the delivery fee. No methods means free
// (zero); a failed read keeps the previous fee and logs.
func (s *Syncer) refreshDeliveryFee(ctx context.Context) {
	s.mu.Lock()
	cookie := s.cookie
	s.mu.Unlock()

	res, methods, err := s.api.EligibleShippingMethods(ctx, cookie)
	if err != nil {
		s.log.WithError(err).Warn("cartsync: delivery fee fetch failed")
		return
	}
	s.rememberCookie(res)

	var fee int64
	if len(methods) > 0 {
		fee = methods[0].PriceWithTax
	}

	s.mu.Lock()
	s.deliveryFee = fee
	s.mu.Unlock()
}

// DeliveryFee returns the last fetched delivery fee in minor units.
func (s *Syncer) DeliveryFee() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deliveryFee
}

func (s *Syncer) rememberCookie(res *commerce.Response) {
	if res == nil || res.SetCookie == "" {
		return
	}
	// Keep only the name=value pair; the attributes are for browsers.
	pair := res.SetCookie
	if i := strings.IndexByte(pair, ';'); i >= 0 {
		pair = pair[:i]
	}
	s.mu.Lock()
	s.cookie = pair
	s.mu.Unlock()
}
