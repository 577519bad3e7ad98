package bookstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"textbook-rag/internal/config"
	"textbook-rag/internal/models"
)

type bookRow struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	BookID        string    `bun:"book_id,pk"`
	Title         string    `bun:"title"`
	Author        string    `bun:"author"`
	Status        string    `bun:"status,notnull"`
	ChunksIndexed int       `bun:"chunks_indexed,notnull,default:0"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Postgres is a Store backed by a books table.
type Postgres struct {
	db *bun.DB
}

// NewPostgres connects to the configured database and ensures the books
// table exists.
func NewPostgres(ctx context.Context, cfg *config.DatabaseConfig) (*Postgres, error) {
	connector := pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DSN),
		pgdriver.WithPassword(cfg.Password),
	)
	sqldb := sql.OpenDB(connector)
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	if _, err := db.NewCreateTable().Model((*bookRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating books table: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Get(ctx context.Context, bookID string) (*models.Book, error) {
	row := new(bookRow)
	err := p.db.NewSelect().Model(row).Where("book_id = ?", bookID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("selecting book %s: %w", bookID, err)
	}
	return fromRow(row), nil
}

// Put upserts by book ID.
func (p *Postgres) Put(ctx context.Context, book *models.Book) error {
	now := time.Now().UTC()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = now

	row := toRow(book)
	_, err := p.db.NewInsert().
		Model(row).
		On("CONFLICT (book_id) DO UPDATE").
		Set("title = EXCLUDED.title").
		Set("author = EXCLUDED.author").
		Set("status = EXCLUDED.status").
		Set("chunks_indexed = EXCLUDED.chunks_indexed").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upserting book %s: %w", book.BookID, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, bookID string) error {
	res, err := p.db.NewDelete().Model((*bookRow)(nil)).Where("book_id = ?", bookID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("deleting book %s: %w", bookID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) List(ctx context.Context) ([]models.Book, error) {
	var rows []bookRow
	if err := p.db.NewSelect().Model(&rows).Order("book_id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	books := make([]models.Book, len(rows))
	for i := range rows {
		books[i] = *fromRow(&rows[i])
	}
	return books, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func toRow(b *models.Book) *bookRow {
	return &bookRow{
		BookID:        b.BookID,
		Title:         b.Title,
		Author:        b.Author,
		Status:        b.Status,
		ChunksIndexed: b.ChunksIndexed,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func fromRow(r *bookRow) *models.Book {
	return &models.Book{
		BookID:        r.BookID,
		Title:         r.Title,
		Author:        r.Author,
		Status:        r.Status,
		ChunksIndexed: r.ChunksIndexed,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}
