package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/ridehub/bus-booking/internal/model"
)

// PromotionRepo provides access to the promotions table, a local mirror of
// the promotion service's discount codes.
type PromotionRepo struct {
    db *sql.DB
}

// NewPromotionRepo returns a new PromotionRepo bound to the provided database.
func NewPromotionRepo(db *sql.DB) *PromotionRepo { return &PromotionRepo{db: db} }

// PromotionByCode loads a promotion by its code.  Returns nil when the code
// is unknown.
func (r *PromotionRepo) PromotionByCode(ctx context.Context, code string) (*model.Promotion, error) {
    var p model.Promotion
    err := r.db.QueryRowContext(ctx,
        `SELECT id, code, percent_off, flat_off_cents, starts_at, ends_at, max_uses, uses
         FROM promotions WHERE code = ?`, code,
    ).Scan(&p.ID, &p.Code, &p.PercentOff, &p.FlatOffCents, &p.StartsAt, &p.EndsAt, &p.MaxUses, &p.Uses)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    return &p, nil
}

// IncrementUses bumps the redemption counter.  The guard in the WHERE
// clause keeps a capped code from being redeemed past its limit under
// concurrency.
func (r *PromotionRepo) IncrementUses(ctx context.Context, promoID uint64) error {
    _, err := r.db.ExecContext(ctx,
        `UPDATE promotions SET uses = uses + 1 WHERE id = ? AND (max_uses = 0 OR uses < max_uses)`,
        promoID,
    )
    return err
}
