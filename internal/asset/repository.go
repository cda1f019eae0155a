package asset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TryOnTech0/server-api/internal/storage"
)

var recordColumns = []string{
	"id", "original_name", "file_name", "storage_kind",
	"local_path", "bucket", "object_key", "public_url",
	"metadata", "owner_id", "created_at", "updated_at",
}

// Repository stores asset records in Postgres, one table per Kind.
type Repository struct {
	db *pgxpool.Pool
	qb sq.StatementBuilderType
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db, qb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

var _ Store = (*Repository)(nil)

// Create inserts rec into its kind's table and returns it with timestamps set.
func (r *Repository) Create(ctx context.Context, rec *Record) (*Record, error) {
	table, err := tableFor(rec.Kind)
	if err != nil {
		return nil, err
	}
	md, err := json.Marshal(rec.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	sqlStr, args, err := r.qb.Insert(table).
		Columns("id", "original_name", "file_name", "storage_kind",
			"local_path", "bucket", "object_key", "public_url", "metadata", "owner_id").
		Values(rec.ID, rec.OriginalName, rec.FileName, string(rec.StorageKind),
			nullable(rec.Locator.Path), nullable(rec.Locator.Bucket), nullable(rec.Locator.Key),
			rec.PublicURL, md, rec.OwnerID).
		Suffix("RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert: %w", err)
	}

	out := *rec
	if err := r.db.QueryRow(ctx, sqlStr, args...).Scan(&out.CreatedAt, &out.UpdatedAt); err != nil {
		return nil, fmt.Errorf("create %s record: %w", rec.Kind, err)
	}
	return &out, nil
}

// GetByID fetches a record by its UUID.
func (r *Repository) GetByID(ctx context.Context, kind Kind, id string) (*Record, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	sqlStr, args, err := r.qb.Select(recordColumns...).From(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rec, err := scanRecord(r.db.QueryRow(ctx, sqlStr, args...), kind)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s by id: %w", kind, err)
	}
	return rec, nil
}

// List returns the requested page, newest first, together with the total match count.
func (r *Repository) List(ctx context.Context, kind Kind, q ListQuery) (*Page, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	q = q.Normalize()
	countQuery, pageQuery, err := r.listQueries(table, q)
	if err != nil {
		return nil, err
	}

	countSQL, countArgs, err := countQuery.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count: %w", err)
	}
	var total int64
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count %s: %w", kind, err)
	}

	sqlStr, args, err := pageQuery.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}
	rows, err := r.db.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	var items []Record
	for rows.Next() {
		rec, err := scanRecord(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		items = append(items, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s rows: %w", kind, err)
	}
	return newPage(items, total, q), nil
}

// Delete removes a record. It returns ErrNotFound when nothing was deleted.
func (r *Repository) Delete(ctx context.Context, kind Kind, id string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	sqlStr, args, err := r.qb.Delete(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	tag, err := r.db.Exec(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// listQueries returns the total-count query and the page query for a normalized q.
func (r *Repository) listQueries(table string, q ListQuery) (count, page sq.SelectBuilder, err error) {
	where, err := listFilter(q)
	if err != nil {
		return count, page, err
	}
	count = r.qb.Select("COUNT(*)").From(table).Where(where)
	page = r.qb.Select(recordColumns...).From(table).Where(where).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(q.Limit)).
		Offset(uint64(q.Offset()))
	return count, page, nil
}

// listFilter builds the WHERE clause for search, format, tag and owner filters.
func listFilter(q ListQuery) (sq.And, error) {
	where := sq.And{}
	if q.Search != "" {
		like := "%" + escapeLike(q.Search) + "%"
		where = append(where, sq.Or{
			sq.ILike{"original_name": like},
			sq.Expr("metadata->>'description' ILIKE ?", like),
		})
	}
	if q.Format != "" {
		where = append(where, sq.Expr("metadata->>'format' = ?", q.Format))
	}
	if q.Tag != "" {
		tag, err := json.Marshal([]string{q.Tag})
		if err != nil {
			return nil, fmt.Errorf("encode tag filter: %w", err)
		}
		where = append(where, sq.Expr("metadata->'tags' @> ?::jsonb", string(tag)))
	}
	if q.OwnerID != "" {
		where = append(where, sq.Eq{"owner_id": q.OwnerID})
	}
	return where, nil
}

func tableFor(kind Kind) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("%w: unknown asset kind %q", ErrInput, kind)
	}
	return kind.Table(), nil
}

func scanRecord(row pgx.Row, kind Kind) (*Record, error) {
	var (
		rec                    Record
		storageKind            string
		localPath, bucket, key *string
		rawMetadata            []byte
		createdAt, updatedAt   time.Time
	)
	if err := row.Scan(&rec.ID, &rec.OriginalName, &rec.FileName, &storageKind,
		&localPath, &bucket, &key, &rec.PublicURL,
		&rawMetadata, &rec.OwnerID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if len(rawMetadata) > 0 {
		if err := json.Unmarshal(rawMetadata, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", rec.ID, err)
		}
	}
	rec.Kind = kind
	rec.StorageKind = storage.Kind(storageKind)
	rec.Locator = Locator{Path: deref(localPath), Bucket: deref(bucket), Key: deref(key)}
	rec.CreatedAt, rec.UpdatedAt = createdAt, updatedAt
	return &rec, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
