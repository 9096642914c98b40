// Package loader provisions the retail database: schema, CSV data,
// embeddings, locations, search vectors and product images.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	errx "github.com/finn-shopping-assistant/server/internal/core/error"
	"github.com/finn-shopping-assistant/server/internal/images"
	logx "github.com/finn-shopping-assistant/server/pkg/logger"
)

// Config is bound with the LOADER prefix.
type Config struct {
	DataDir        string `split_words:"true" default:"data"`
	EmbeddingModel string `split_words:"true" default:"text-embedding-005"`
	EmbeddingDims  int32  `split_words:"true" default:"768"`
	ImageModel     string `split_words:"true" default:"imagen-3.0-generate-002"`
}

// Embedder turns a product description into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ImageGenerator renders a PNG for a prompt.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// ImageSink stores generated images.
type ImageSink interface {
	Exists(ctx context.Context, name string) (bool, error)
	Put(ctx context.Context, name string, data []byte) error
}

var ErrNoEmbedder = errors.New("loader: no embedder configured")

type Loader struct {
	db       *bun.DB
	embedder Embedder
	images   ImageGenerator
	sink     ImageSink
}

type Option func(*Loader)

func WithEmbedder(e Embedder) Option { return func(l *Loader) { l.embedder = e } }

func WithImages(gen ImageGenerator, sink ImageSink) Option {
	return func(l *Loader) {
		l.images = gen
		l.sink = sink
	}
}

func New(db *bun.DB, opts ...Option) *Loader {
	l := &Loader{db: db}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loader) execAll(ctx context.Context, stmts []string) error {
	return l.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return errx.WrapPostgres(fmt.Errorf("%s: %w", firstLine(stmt), err))
			}
		}
		return nil
	})
}

// CreateSchema drops and recreates every table.
func (l *Loader) CreateSchema(ctx context.Context) error {
	stmts := make([]string, 0, len(tables)+len(extensions)+len(createTables))
	for _, t := range tables {
		stmts = append(stmts, "DROP TABLE IF EXISTS "+t+" CASCADE")
	}
	for _, ext := range extensions {
		stmts = append(stmts, "CREATE EXTENSION IF NOT EXISTS "+ext)
	}
	stmts = append(stmts, createTables...)

	if err := l.execAll(ctx, stmts); err != nil {
		return err
	}
	logx.Info().Int("tables", len(createTables)).Msg("Database schema created")
	return nil
}

func copyQuery(table string) string {
	return fmt.Sprintf(`COPY %s FROM STDIN WITH (FORMAT csv, HEADER true, DELIMITER ',', NULL '', QUOTE '"')`, table)
}

// LoadCSV copies <dir>/<table>.csv into each table. A table whose file
// fails is logged and skipped.
func (l *Loader) LoadCSV(ctx context.Context, dir string) error {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return errx.WrapPostgres(err)
	}
	defer conn.Close()

	var failed []string
	for _, table := range csvTables {
		if err := copyTable(ctx, conn, dir, table); err != nil {
			logx.Error().Err(err).Str("table", table).Msg("Error loading CSV")
			failed = append(failed, table)
			continue
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("csv load failed for %s", strings.Join(failed, ", "))
	}
	return nil
}

func copyTable(ctx context.Context, conn bun.Conn, dir, table string) error {
	f, err := os.Open(filepath.Join(dir, table+".csv"))
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := pgdriver.CopyFrom(ctx, conn, f, copyQuery(table))
	if err != nil {
		return errx.WrapPostgres(err)
	}
	n, _ := res.RowsAffected()
	logx.Info().Str("table", table).Int64("rows", n).Msg("CSV loaded")
	return nil
}

type product struct {
	bun.BaseModel `bun:"table:products"`

	ID          int64  `bun:"product_id,pk"`
	Name        string `bun:"name"`
	Description string `bun:"description"`
	Brand       string `bun:"brand"`
}

func (l *Loader) products(ctx context.Context) ([]product, error) {
	var rows []product
	err := l.db.NewSelect().
		Model(&rows).
		Column("product_id", "name", "description", "brand").
		Order("product_id").
		Scan(ctx)
	if err != nil {
		return nil, errx.WrapPostgres(err)
	}
	return rows, nil
}

func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// GenerateEmbeddings stores an embedding of every product description.
// Products that fail are logged and skipped.
func (l *Loader) GenerateEmbeddings(ctx context.Context, dims int32) error {
	if l.embedder == nil {
		return ErrNoEmbedder
	}
	if _, err := l.db.ExecContext(ctx,
		fmt.Sprintf("ALTER TABLE products ADD COLUMN IF NOT EXISTS embedding VECTOR(%d)", dims)); err != nil {
		return errx.WrapPostgres(err)
	}

	rows, err := l.products(ctx)
	if err != nil {
		return err
	}

	stored := 0
	for _, p := range rows {
		vec, err := l.embedder.Embed(ctx, p.Description)
		if err != nil {
			logx.Warn().Err(err).Int64("product_id", p.ID).Msg("Error generating embedding")
			continue
		}
		_, err = l.db.ExecContext(ctx,
			"UPDATE products SET embedding = ?::vector WHERE product_id = ?", vectorLiteral(vec), p.ID)
		if err != nil {
			logx.Warn().Err(err).Int64("product_id", p.ID).Msg("Error storing embedding")
			continue
		}
		stored++
	}
	logx.Info().Int("products", len(rows)).Int("stored", stored).Msg("Embeddings generated")
	return nil
}

func sortedIDs(m map[int64]Point) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// AddLocations adds geography columns to stores and users and fills them.
func (l *Loader) AddLocations(ctx context.Context) error {
	return l.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, t := range []struct {
			table, key string
			points     map[int64]Point
		}{
			{"stores", "store_id", storeLocations},
			{"users", "user_id", userLocations},
		} {
			if _, err := tx.ExecContext(ctx,
				"ALTER TABLE "+t.table+" ADD COLUMN IF NOT EXISTS location geography(Point, 4326)"); err != nil {
				return errx.WrapPostgres(err)
			}
			for _, id := range sortedIDs(t.points) {
				p := t.points[id]
				_, err := tx.ExecContext(ctx,
					"UPDATE ? SET location = ST_SetSRID(ST_MakePoint(?, ?), 4326)::geography WHERE ? = ?",
					bun.Ident(t.table), p.Lon, p.Lat, bun.Ident(t.key), id)
				if err != nil {
					return errx.WrapPostgres(fmt.Errorf("%s %d: %w", t.table, id, err))
				}
			}
			logx.Info().Str("table", t.table).Int("rows", len(t.points)).Msg("Locations set")
		}
		return nil
	})
}

// CreateSearchVector adds the weighted full-text column and its GIN index.
func (l *Loader) CreateSearchVector(ctx context.Context) error {
	if err := l.execAll(ctx, searchVector); err != nil {
		return err
	}
	logx.Info().Msg("Search vector column created and indexed")
	return nil
}

// UpdateImageURLs points every product at images/<name>.png.
func (l *Loader) UpdateImageURLs(ctx context.Context) error {
	res, err := l.db.ExecContext(ctx, "UPDATE products SET image_url = CONCAT('images/', name, '.png')")
	if err != nil {
		return errx.WrapPostgres(err)
	}
	n, _ := res.RowsAffected()
	logx.Info().Int64("products", n).Msg("Image urls updated")
	return nil
}

func (l *Loader) CreateIndexes(ctx context.Context) error {
	if err := l.execAll(ctx, indexes); err != nil {
		return err
	}
	logx.Info().Int("indexes", len(indexes)).Msg("Indexes created")
	return nil
}

func imagePrompt(p product) string {
	return fmt.Sprintf("A professional product photo of %s %s, %s. The image should show only the product "+
		"against a clean background, no text or labels, photorealistic style, high quality product photography",
		p.Brand, p.Name, p.Description)
}

// GenerateImages creates a photo for every product that has none in the
// bucket yet.
func (l *Loader) GenerateImages(ctx context.Context) error {
	if l.images == nil || l.sink == nil {
		return errors.New("loader: no image generator configured")
	}

	rows, err := l.products(ctx)
	if err != nil {
		return err
	}

	created := 0
	for _, p := range rows {
		name := images.FileName(p.Name)
		exists, err := l.sink.Exists(ctx, name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}

		data, err := l.images.Generate(ctx, imagePrompt(p))
		if err != nil {
			logx.Warn().Err(err).Str("product", p.Name).Msg("Error generating image")
			continue
		}
		if err := l.sink.Put(ctx, name, data); err != nil {
			logx.Warn().Err(err).Str("product", p.Name).Msg("Error uploading image")
			continue
		}
		created++
	}
	logx.Info().Int("products", len(rows)).Int("created", created).Msg("Product images generated")
	return nil
}

func firstLine(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		stmt = stmt[:i]
	}
	return strings.TrimSpace(strings.TrimSuffix(stmt, "("))
}
