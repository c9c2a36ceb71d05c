package model

import "time"

// Promotion is a discount code applied during booking creation.  A code
// carries either a percentage or a flat discount (flat wins when both are
// set), is valid inside its [StartsAt, EndsAt) window and may cap the
// number of redemptions.
type Promotion struct {
    ID           uint64    // promotions.id
    Code         string    // promotions.code (unique)
    PercentOff   uint8     // promotions.percent_off (0-100)
    FlatOffCents uint32    // promotions.flat_off_cents
    StartsAt     time.Time // promotions.starts_at
    EndsAt       time.Time // promotions.ends_at
    MaxUses      int       // promotions.max_uses (0 = unlimited)
    Uses         int       // promotions.uses
}

// ValidAt reports whether the promotion may be redeemed at the given
// instant, considering both the validity window and the usage cap.
func (p *Promotion) ValidAt(now time.Time) bool {
    if now.Before(p.StartsAt) || !now.Before(p.EndsAt) {
        return false
    }
    if p.MaxUses > 0 && p.Uses >= p.MaxUses {
        return false
    }
    return true
}
