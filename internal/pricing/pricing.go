// Package pricing computes booking amounts.  The base amount is the sum of
// the seat prices; an optional promo code applies a percentage or flat
// discount.  Promotion records mirror the promotion service's data and are
// read-only here except for the redemption counter.
package pricing

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/ridehub/bus-booking/internal/model"
)

// ErrPromoInvalid is returned when a promo code is unknown, outside its
// validity window or out of redemptions.  Booking creation rejects the
// request before any seat is held.
var ErrPromoInvalid = errors.New("promo code invalid")

// PromotionStore provides promotion lookups.
type PromotionStore interface {
    // PromotionByCode returns nil when the code does not exist.
    PromotionByCode(ctx context.Context, code string) (*model.Promotion, error)
    // IncrementUses bumps the redemption counter after a booking applied
    // the promotion.
    IncrementUses(ctx context.Context, promoID uint64) error
}

// Pricer quotes booking amounts.
type Pricer struct {
    promos PromotionStore
    now    func() time.Time
}

// New returns a Pricer over the given promotion store.
func New(promos PromotionStore) *Pricer {
    return &Pricer{promos: promos, now: func() time.Time { return time.Now().UTC() }}
}

// Validate checks a promo code without redeeming it.  An empty code is
// always valid (no discount).  Called before seats are held so an invalid
// code never costs a hold.
func (p *Pricer) Validate(ctx context.Context, code string) error {
    if code == "" {
        return nil
    }
    promo, err := p.promos.PromotionByCode(ctx, code)
    if err != nil {
        return fmt.Errorf("lookup promo %q: %w", code, err)
    }
    if promo == nil || !promo.ValidAt(p.now()) {
        return fmt.Errorf("promo %q: %w", code, ErrPromoInvalid)
    }
    return nil
}

// Quote returns the amount in cents for the given seats after applying the
// promo code, and redeems the code.  A flat discount wins over a percentage
// when a promotion carries both; discounts never push the amount below zero.
func (p *Pricer) Quote(ctx context.Context, seats []model.Seat, code string) (uint32, error) {
    var total uint32
    for _, s := range seats {
        total += s.PriceCents
    }
    if code == "" {
        return total, nil
    }
    promo, err := p.promos.PromotionByCode(ctx, code)
    if err != nil {
        return 0, fmt.Errorf("lookup promo %q: %w", code, err)
    }
    if promo == nil || !promo.ValidAt(p.now()) {
        return 0, fmt.Errorf("promo %q: %w", code, ErrPromoInvalid)
    }
    total = applyDiscount(total, promo)
    if err := p.promos.IncrementUses(ctx, promo.ID); err != nil {
        return 0, fmt.Errorf("redeem promo %q: %w", code, err)
    }
    return total, nil
}

func applyDiscount(total uint32, promo *model.Promotion) uint32 {
    if promo.FlatOffCents > 0 {
        if promo.FlatOffCents >= total {
            return 0
        }
        return total - promo.FlatOffCents
    }
    if promo.PercentOff > 0 {
        off := uint64(total) * uint64(promo.PercentOff) / 100
        return total - uint32(off)
    }
    return total
}
