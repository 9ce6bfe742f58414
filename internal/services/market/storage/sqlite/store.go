// Package sqlite provides a SQLite-backed market storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/Sreddy08840/agri-connect-sub002/internal/platform/storage/sqlitemigrate"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/listing"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/money"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/order"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/storage"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists market state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite market store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// PutListing inserts one listing record at version 1.
func (s *Store) PutListing(ctx context.Context, l listing.Listing) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(l.ID) == "" {
		return fmt.Errorf("listing id is required")
	}
	imagesJSON, err := json.Marshal(l.Images)
	if err != nil {
		return fmt.Errorf("encode listing images: %w", err)
	}
	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO listings (
		   id, owner_id, name, description, price, stock, min_order_qty,
		   category_id, images_json, featured, status, rejection_reason,
		   created_at, updated_at, version
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		l.ID,
		l.OwnerID,
		l.Name,
		l.Description,
		l.Price.String(),
		l.Stock,
		l.MinOrderQty,
		l.CategoryID,
		string(imagesJSON),
		boolToInt(l.Featured),
		string(l.Status),
		l.RejectionReason,
		toMillis(l.CreatedAt),
		toMillis(l.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// UpdateListing writes the listing guarded by its version. The stored row is
// only replaced when the version still matches, which makes concurrent writers
// lose deterministically instead of silently overwriting each other.
func (s *Store) UpdateListing(ctx context.Context, l listing.Listing) (listing.Listing, error) {
	if err := s.ready(ctx); err != nil {
		return listing.Listing{}, err
	}
	imagesJSON, err := json.Marshal(l.Images)
	if err != nil {
		return listing.Listing{}, fmt.Errorf("encode listing images: %w", err)
	}
	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE listings SET
		   name = ?, description = ?, price = ?, stock = ?, min_order_qty = ?,
		   category_id = ?, images_json = ?, featured = ?, status = ?,
		   rejection_reason = ?, updated_at = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		l.Name,
		l.Description,
		l.Price.String(),
		l.Stock,
		l.MinOrderQty,
		l.CategoryID,
		string(imagesJSON),
		boolToInt(l.Featured),
		string(l.Status),
		l.RejectionReason,
		toMillis(l.UpdatedAt),
		l.ID,
		l.Version,
	)
	if err != nil {
		return listing.Listing{}, fmt.Errorf("update listing: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return listing.Listing{}, fmt.Errorf("update listing rows affected: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetListing(ctx, l.ID); getErr != nil {
			return listing.Listing{}, getErr
		}
		return listing.Listing{}, storage.ErrVersionConflict
	}
	l.Version++
	return l, nil
}

// GetListing loads one listing by id.
func (s *Store) GetListing(ctx context.Context, id string) (listing.Listing, error) {
	if err := s.ready(ctx); err != nil {
		return listing.Listing{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, owner_id, name, description, price, stock, min_order_qty,
		        category_id, images_json, featured, status, rejection_reason,
		        created_at, updated_at, version
		 FROM listings WHERE id = ?`,
		strings.TrimSpace(id),
	)
	return scanListing(row)
}

// DeleteListing removes one listing row.
func (s *Store) DeleteListing(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM listings WHERE id = ?`, strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete listing rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListListingsByOwner returns an owner's listings, newest first.
func (s *Store) ListListingsByOwner(ctx context.Context, ownerID string, limit int) ([]listing.Listing, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, owner_id, name, description, price, stock, min_order_qty,
		        category_id, images_json, featured, status, rejection_reason,
		        created_at, updated_at, version
		 FROM listings WHERE owner_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		strings.TrimSpace(ownerID),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list listings by owner: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var listings []listing.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return listings, nil
}

// CountListingsByStatus counts listings in one status.
func (s *Store) CountListingsByStatus(ctx context.Context, status listing.Status) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var count int
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM listings WHERE status = ?`,
		string(status),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count listings by status: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (listing.Listing, error) {
	var (
		l               listing.Listing
		price           string
		imagesJSON      string
		featured        int
		status          string
		createdAtMillis int64
		updatedAtMillis int64
	)
	err := row.Scan(
		&l.ID, &l.OwnerID, &l.Name, &l.Description, &price, &l.Stock,
		&l.MinOrderQty, &l.CategoryID, &imagesJSON, &featured, &status,
		&l.RejectionReason, &createdAtMillis, &updatedAtMillis, &l.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return listing.Listing{}, storage.ErrNotFound
		}
		return listing.Listing{}, fmt.Errorf("scan listing: %w", err)
	}
	l.Price, err = money.Parse(price)
	if err != nil {
		return listing.Listing{}, fmt.Errorf("decode listing price: %w", err)
	}
	if imagesJSON != "" {
		if err := json.Unmarshal([]byte(imagesJSON), &l.Images); err != nil {
			return listing.Listing{}, fmt.Errorf("decode listing images: %w", err)
		}
	}
	l.Featured = featured != 0
	parsedStatus, ok := listing.ParseStatus(status)
	if !ok {
		return listing.Listing{}, fmt.Errorf("decode listing status %q", status)
	}
	l.Status = parsedStatus
	l.CreatedAt = fromMillis(createdAtMillis)
	l.UpdatedAt = fromMillis(updatedAtMillis)
	return l, nil
}

// PutOrder inserts one order record at version 1.
func (s *Store) PutOrder(ctx context.Context, o order.Order) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(o.ID) == "" {
		return fmt.Errorf("order id is required")
	}
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}
	deliveryJSON, err := json.Marshal(o.Delivery)
	if err != nil {
		return fmt.Errorf("encode order delivery: %w", err)
	}
	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO orders (
		   id, reference, buyer_id, seller_id, status, items_json, total,
		   payment_method, delivery_json, created_at, updated_at, version
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		o.ID,
		o.Reference,
		o.BuyerID,
		o.SellerID,
		string(o.Status),
		string(itemsJSON),
		o.Total.String(),
		string(o.PaymentMethod),
		string(deliveryJSON),
		toMillis(o.CreatedAt),
		toMillis(o.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// UpdateOrder writes the order guarded by its version.
func (s *Store) UpdateOrder(ctx context.Context, o order.Order) (order.Order, error) {
	if err := s.ready(ctx); err != nil {
		return order.Order{}, err
	}
	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE orders SET status = ?, updated_at = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		string(o.Status),
		toMillis(o.UpdatedAt),
		o.ID,
		o.Version,
	)
	if err != nil {
		return order.Order{}, fmt.Errorf("update order: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return order.Order{}, fmt.Errorf("update order rows affected: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.GetOrder(ctx, o.ID); getErr != nil {
			return order.Order{}, getErr
		}
		return order.Order{}, storage.ErrVersionConflict
	}
	o.Version++
	return o, nil
}

// GetOrder loads one order by id.
func (s *Store) GetOrder(ctx context.Context, id string) (order.Order, error) {
	if err := s.ready(ctx); err != nil {
		return order.Order{}, err
	}
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, reference, buyer_id, seller_id, status, items_json, total,
		        payment_method, delivery_json, created_at, updated_at, version
		 FROM orders WHERE id = ?`,
		strings.TrimSpace(id),
	)
	return scanOrder(row)
}

// ListOrdersByParty returns orders where the party is buyer or seller, newest first.
func (s *Store) ListOrdersByParty(ctx context.Context, partyID string, limit int) ([]order.Order, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	partyID = strings.TrimSpace(partyID)
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, reference, buyer_id, seller_id, status, items_json, total,
		        payment_method, delivery_json, created_at, updated_at, version
		 FROM orders WHERE buyer_id = ? OR seller_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		partyID,
		partyID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list orders by party: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var orders []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

// CountOrdersByStatus counts orders in one status.
func (s *Store) CountOrdersByStatus(ctx context.Context, status order.Status) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	var count int
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM orders WHERE status = ?`,
		string(status),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count orders by status: %w", err)
	}
	return count, nil
}

func scanOrder(row rowScanner) (order.Order, error) {
	var (
		o               order.Order
		status          string
		itemsJSON       string
		total           string
		paymentMethod   string
		deliveryJSON    string
		createdAtMillis int64
		updatedAtMillis int64
	)
	err := row.Scan(
		&o.ID, &o.Reference, &o.BuyerID, &o.SellerID, &status, &itemsJSON,
		&total, &paymentMethod, &deliveryJSON, &createdAtMillis,
		&updatedAtMillis, &o.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return order.Order{}, storage.ErrNotFound
		}
		return order.Order{}, fmt.Errorf("scan order: %w", err)
	}
	parsedStatus, ok := order.ParseStatus(status)
	if !ok {
		return order.Order{}, fmt.Errorf("decode order status %q", status)
	}
	o.Status = parsedStatus
	if err := json.Unmarshal([]byte(itemsJSON), &o.Items); err != nil {
		return order.Order{}, fmt.Errorf("decode order items: %w", err)
	}
	o.Total, err = money.Parse(total)
	if err != nil {
		return order.Order{}, fmt.Errorf("decode order total: %w", err)
	}
	parsedMethod, ok := order.ParsePaymentMethod(paymentMethod)
	if !ok {
		return order.Order{}, fmt.Errorf("decode payment method %q", paymentMethod)
	}
	o.PaymentMethod = parsedMethod
	if err := json.Unmarshal([]byte(deliveryJSON), &o.Delivery); err != nil {
		return order.Order{}, fmt.Errorf("decode order delivery: %w", err)
	}
	o.CreatedAt = fromMillis(createdAtMillis)
	o.UpdatedAt = fromMillis(updatedAtMillis)
	return o, nil
}

// AppendAudit inserts one immutable audit record.
func (s *Store) AppendAudit(ctx context.Context, record storage.AuditRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("audit record id is required")
	}
	if strings.TrimSpace(record.EntityID) == "" {
		return fmt.Errorf("audit entity id is required")
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO audit_records (
		   id, entity_kind, entity_id, tag, actor_id, actor_role,
		   from_status, to_status, before_json, after_json, note, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.EntityKind,
		record.EntityID,
		record.Tag,
		record.ActorID,
		record.ActorRole,
		record.FromStatus,
		record.ToStatus,
		record.BeforeJSON,
		record.AfterJSON,
		record.Note,
		toMillis(createdAt),
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// ListAuditByEntity returns audit records for one entity, most recent first.
func (s *Store) ListAuditByEntity(ctx context.Context, entityKind, entityID string, limit int) ([]storage.AuditRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, entity_kind, entity_id, tag, actor_id, actor_role,
		        from_status, to_status, before_json, after_json, note, created_at
		 FROM audit_records WHERE entity_kind = ? AND entity_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		strings.TrimSpace(entityKind),
		strings.TrimSpace(entityID),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []storage.AuditRecord
	for rows.Next() {
		var record storage.AuditRecord
		var createdAtMillis int64
		if err := rows.Scan(
			&record.ID, &record.EntityKind, &record.EntityID, &record.Tag,
			&record.ActorID, &record.ActorRole, &record.FromStatus,
			&record.ToStatus, &record.BeforeJSON, &record.AfterJSON,
			&record.Note, &createdAtMillis,
		); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		record.CreatedAt = fromMillis(createdAtMillis)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return records, nil
}

// AppendMessage inserts one direct message row.
func (s *Store) AppendMessage(ctx context.Context, record storage.MessageRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("message id is required")
	}
	if strings.TrimSpace(record.Channel) == "" {
		return fmt.Errorf("message channel is required")
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO messages (id, channel, sender_id, body, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		record.ID,
		record.Channel,
		record.SenderID,
		record.Body,
		toMillis(createdAt),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListMessagesByChannel returns the latest channel messages in chronological order.
func (s *Store) ListMessagesByChannel(ctx context.Context, channel string, limit int) ([]storage.MessageRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, channel, sender_id, body, created_at
		 FROM messages WHERE channel = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		strings.TrimSpace(channel),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []storage.MessageRecord
	for rows.Next() {
		var record storage.MessageRecord
		var createdAtMillis int64
		if err := rows.Scan(&record.ID, &record.Channel, &record.SenderID, &record.Body, &createdAtMillis); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		record.CreatedAt = fromMillis(createdAtMillis)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	// Reverse to chronological order for history replay.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
