package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"dealwatcher/internal/analysis"
	"dealwatcher/internal/digest"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertParentSQL = `INSERT INTO parent (
        product_id,
        country,
        name,
        url,
        gender
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    ON CONFLICT (product_id, country) DO UPDATE
    SET
        name       = EXCLUDED.name,
        url        = EXCLUDED.url,
        gender     = EXCLUDED.gender,
        updated_at = now();`

	upsertVariantSQL = `INSERT INTO product_variants (
        product_id,
        country,
        color,
        size
    ) VALUES (
        $1,$2,$3,$4
    )
    ON CONFLICT (product_id, country, color, size) DO UPDATE
    SET last_seen_at = now()
    RETURNING id;`

	insertValueSQL = `INSERT INTO timeseries_values (
        variant_id,
        observed_at,
        promo_price,
        original_price,
        discount_pct,
        rating,
        review_count,
        tier
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    ON CONFLICT (variant_id, observed_at) DO NOTHING;`

	selectObservationsSQL = `SELECT
        p.product_id,
        p.name,
        p.url,
        p.gender,
        v.color,
        v.size,
        t.observed_at,
        t.promo_price,
        t.original_price,
        t.discount_pct,
        t.rating,
        t.review_count,
        t.tier
    FROM timeseries_values t
    JOIN product_variants v ON v.id = t.variant_id
    JOIN parent p ON p.product_id = v.product_id AND p.country = v.country`

	countObservationsSQL = `SELECT COUNT(*) FROM timeseries_values;`

	insertSentSQL = `INSERT INTO sent_digests (
        product_id,
        country,
        sent_at
    ) VALUES (
        $1,$2,$3
    );`

	listSentSinceSQL = `SELECT DISTINCT product_id
    FROM sent_digests
    WHERE country = $1
      AND sent_at >= $2;`

	listBlockedSQL = `SELECT
        product_id,
        country,
        blocked_all,
        colors,
        sizes
    FROM blocked_products
    WHERE country = $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// ObservationStore persists and queries the append-only price series.
type ObservationStore interface {
	RecordObservations(ctx context.Context, country string, obs []analysis.Observation) (int, error)
	ListObservations(ctx context.Context, filter ObservationFilter) ([]analysis.Observation, error)
	ListPriceHistory(ctx context.Context, country, productID string) ([]analysis.Observation, error)
	ListRecentObservations(ctx context.Context, country string, limit int) ([]analysis.Observation, error)
	CountObservations(ctx context.Context) (int64, error)
}

// DigestStore tracks delivered digests and blocked products.
type DigestStore interface {
	MarkSent(ctx context.Context, productIDs []string, country string, at time.Time) error
	SentSince(ctx context.Context, country string, since time.Time) (map[string]struct{}, error)
	ListBlocked(ctx context.Context, country string) (digest.Blocklist, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to observations and digest bookkeeping.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		releaseAdvisoryLock(pooledLockConn{conn}, key)
	}
	return unlock, true, nil
}

// lockConn is the session holding an advisory lock.
type lockConn interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	Release()
	Discard(ctx context.Context) error
}

type pooledLockConn struct {
	*pgxpool.Conn
}

// Discard takes the connection out of the pool and closes it.
func (c pooledLockConn) Discard(ctx context.Context) error {
	return c.Hijack().Close(ctx)
}

func releaseAdvisoryLock(conn lockConn, key int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := conn.Exec(ctx, advisoryUnlockSQL, key); err != nil {
		// 会话级锁: 解锁失败时必须关闭连接, 会话结束后锁才释放
		_ = conn.Discard(ctx)
		return
	}
	conn.Release()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// RecordObservation upserts the product and variant rows and appends one
// time-series value.
func (s *Store) RecordObservation(ctx context.Context, country string, o analysis.Observation) error {
	_, err := s.RecordObservations(ctx, country, []analysis.Observation{o})
	return err
}

// RecordObservations writes a snapshot in one transaction and returns the
// number of newly appended values.
func (s *Store) RecordObservations(ctx context.Context, country string, obs []analysis.Observation) (int, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	if len(obs) == 0 {
		return 0, nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin record tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	parents := make(map[string]struct{})
	variants := make(map[analysis.VariantKey]int64)
	inserted := 0

	for _, o := range obs {
		if _, ok := parents[o.EntityID]; !ok {
			if _, err := tx.Exec(ctx, upsertParentSQL, o.EntityID, country, o.Name, o.URL, o.Gender); err != nil {
				return 0, fmt.Errorf("upsert parent %s: %w", o.EntityID, err)
			}
			parents[o.EntityID] = struct{}{}
		}

		key := o.Key()
		variantID, ok := variants[key]
		if !ok {
			if err := tx.QueryRow(ctx, upsertVariantSQL, o.EntityID, country, o.Color, o.Size).Scan(&variantID); err != nil {
				return 0, fmt.Errorf("upsert variant %s/%s/%s: %w", o.EntityID, o.Color, o.Size, err)
			}
			variants[key] = variantID
		}

		var reviews any
		if o.ReviewCount != nil {
			reviews = *o.ReviewCount
		}
		var rating any
		if o.Rating != nil {
			rating = numericArg(*o.Rating)
		}

		tag, err := tx.Exec(ctx, insertValueSQL,
			variantID,
			o.ObservedAt.UTC(),
			numericArg(o.PromoPrice),
			numericArg(o.OriginalPrice),
			numericArg(o.DiscountPercent),
			rating,
			reviews,
			o.Tier,
		)
		if err != nil {
			return 0, fmt.Errorf("insert timeseries value: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit record tx: %w", err)
	}
	return inserted, nil
}

// ListObservations lists observations matching the filter in time order.
func (s *Store) ListObservations(ctx context.Context, filter ObservationFilter) ([]analysis.Observation, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	query, args := buildObservationQuery(filter)
	rows, queryErr := pool.Query(ctx, query, args...)
	if queryErr != nil {
		return nil, fmt.Errorf("list observations: %w", queryErr)
	}
	defer rows.Close()

	out := make([]analysis.Observation, 0)
	for rows.Next() {
		o, scanErr := scanObservation(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, o)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// ListPriceHistory returns every observation of one product, oldest first.
func (s *Store) ListPriceHistory(ctx context.Context, country, productID string) ([]analysis.Observation, error) {
	return s.ListObservations(ctx, ObservationFilter{ProductID: productID, Country: country})
}

// ListRecentObservations returns the newest observations, newest first.
func (s *Store) ListRecentObservations(ctx context.Context, country string, limit int) ([]analysis.Observation, error) {
	return s.ListObservations(ctx, ObservationFilter{Country: country, Limit: limit, Newest: true})
}

// CountObservations counts stored time-series values.
func (s *Store) CountObservations(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countObservationsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count observations: %w", scanErr)
	}
	return count, nil
}

// MarkSent records that the products were delivered in a digest.
func (s *Store) MarkSent(ctx context.Context, productIDs []string, country string, at time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if len(productIDs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, id := range productIDs {
		batch.Queue(insertSentSQL, id, country, at.UTC())
	}
	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

// SentSince returns the products delivered at or after since.
func (s *Store) SentSince(ctx context.Context, country string, since time.Time) (map[string]struct{}, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSentSinceSQL, country, since.UTC())
	if queryErr != nil {
		return nil, fmt.Errorf("list sent digests: %w", queryErr)
	}
	defer rows.Close()

	sent := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		sent[id] = struct{}{}
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return sent, nil
}

// ListBlocked loads the blocklist rows of a country.
func (s *Store) ListBlocked(ctx context.Context, country string) (digest.Blocklist, error) {
	pool, err := s.getPool()
	if err != nil {
		return digest.Blocklist{}, err
	}

	rows, queryErr := pool.Query(ctx, listBlockedSQL, country)
	if queryErr != nil {
		return digest.Blocklist{}, fmt.Errorf("list blocked products: %w", queryErr)
	}
	defer rows.Close()

	blocked := make([]BlockedProduct, 0)
	for rows.Next() {
		var b BlockedProduct
		if err := rows.Scan(&b.ProductID, &b.Country, &b.BlockedAll, &b.Colors, &b.Sizes); err != nil {
			return digest.Blocklist{}, err
		}
		blocked = append(blocked, b)
	}
	if rows.Err() != nil {
		return digest.Blocklist{}, rows.Err()
	}
	return toBlocklist(blocked), nil
}

func toBlocklist(rows []BlockedProduct) digest.Blocklist {
	bl := digest.Blocklist{Rules: make(map[string]digest.Rule, len(rows))}
	for _, b := range rows {
		bl.Rules[b.ProductID] = digest.Rule{All: b.BlockedAll, Colors: b.Colors, Sizes: b.Sizes}
	}
	return bl
}

// buildObservationQuery appends the filter's WHERE clause to the base select.
func buildObservationQuery(f ObservationFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.ProductID != "" {
		add("p.product_id = $%d", f.ProductID)
	}
	if f.Country != "" {
		add("p.country = $%d", f.Country)
	}
	if f.Gender != "" {
		add("p.gender = $%d", strings.ToLower(f.Gender))
	}
	if len(f.Sizes) > 0 {
		sizes := make([]string, len(f.Sizes))
		for i, s := range f.Sizes {
			sizes[i] = strings.ToUpper(strings.TrimSpace(s))
		}
		add("upper(v.size) = ANY($%d)", sizes)
	}
	if len(f.Tiers) > 0 {
		add("t.tier = ANY($%d)", f.Tiers)
	}
	if !f.Since.IsZero() {
		add("t.observed_at >= $%d", f.Since.UTC())
	}
	if !f.Until.IsZero() {
		add("t.observed_at < $%d", f.Until.UTC())
	}

	var b strings.Builder
	b.WriteString(selectObservationsSQL)
	if len(conds) > 0 {
		b.WriteString("\n    WHERE ")
		b.WriteString(strings.Join(conds, "\n      AND "))
	}
	if f.Newest {
		b.WriteString("\n    ORDER BY t.observed_at DESC, p.product_id, v.color, v.size")
	} else {
		b.WriteString("\n    ORDER BY t.observed_at, p.product_id, v.color, v.size")
	}
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&b, "\n    LIMIT $%d", len(args))
	}
	b.WriteString(";")
	return b.String(), args
}

func scanObservation(rows pgx.Rows) (analysis.Observation, error) {
	var (
		o                         analysis.Observation
		promo, original, discount sql.NullString
		rating                    sql.NullString
		reviews                   sql.NullInt32
		name, url, gender, tier   sql.NullString
	)
	if err := rows.Scan(
		&o.EntityID,
		&name,
		&url,
		&gender,
		&o.Color,
		&o.Size,
		&o.ObservedAt,
		&promo,
		&original,
		&discount,
		&rating,
		&reviews,
		&tier,
	); err != nil {
		return analysis.Observation{}, err
	}

	// TIMESTAMPTZ 按本地时区解码, 统一为 UTC
	o.ObservedAt = o.ObservedAt.UTC()
	o.Name, o.URL, o.Gender, o.Tier = name.String, url.String, gender.String, tier.String

	var err error
	if o.PromoPrice, err = parseNumeric(promo); err != nil {
		return analysis.Observation{}, fmt.Errorf("parse promo price: %w", err)
	}
	if o.OriginalPrice, err = parseNumeric(original); err != nil {
		return analysis.Observation{}, fmt.Errorf("parse original price: %w", err)
	}
	if o.DiscountPercent, err = parseNumeric(discount); err != nil {
		return analysis.Observation{}, fmt.Errorf("parse discount: %w", err)
	}
	if rating.Valid {
		value, err := parseNumeric(rating)
		if err != nil {
			return analysis.Observation{}, fmt.Errorf("parse rating: %w", err)
		}
		o.Rating = &value
	}
	if reviews.Valid {
		value := int(reviews.Int32)
		o.ReviewCount = &value
	}
	return o, nil
}

// numericArg encodes a float for a NUMERIC column; NaN becomes NULL.
func numericArg(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return decimal.NewFromFloat(v).String()
}

// parseNumeric decodes a nullable NUMERIC column; NULL becomes NaN.
func parseNumeric(v sql.NullString) (float64, error) {
	if !v.Valid {
		return math.NaN(), nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}

var (
	_ ObservationStore = (*Store)(nil)
	_ DigestStore      = (*Store)(nil)
	_ AdvisoryLocker   = (*Store)(nil)
)
