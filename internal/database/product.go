package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maltedev/lighting-importer/internal/models"
)

// ProductStore writes imported products. Each record is its own transaction
// together with its PRODUCT_IMPORTED outbox event.
type ProductStore struct {
	db     *DB
	outbox *OutboxRepository
}

// NewProductStore creates a store that writes products and their outbox events.
func NewProductStore(db *DB) *ProductStore {
	return &ProductStore{
		db:     db,
		outbox: NewOutboxRepository(db),
	}
}

// productImportedPayload is the body of a PRODUCT_IMPORTED event.
type productImportedPayload struct {
	ID          uuid.UUID          `json:"id"`
	Name        string             `json:"name"`
	Brand       string             `json:"brand"`
	Article     string             `json:"article,omitempty"`
	Price       string             `json:"price"`
	ProductType models.ProductType `json:"product_type"`
	ImageMain   string             `json:"image_main,omitempty"`
	InStock     bool               `json:"in_stock"`
	SourceURL   string             `json:"source_url"`
	ImportedAt  string             `json:"imported_at"`
}

func productImportedEvent(id uuid.UUID, p *models.ProductRecord) (*OutboxEvent, error) {
	payload, err := json.Marshal(productImportedPayload{
		ID:          id,
		Name:        p.Name,
		Brand:       p.Brand,
		Article:     p.Article,
		Price:       p.Price.StringFixed(2),
		ProductType: p.ProductType,
		ImageMain:   p.ImageMain,
		InStock:     p.InStock,
		SourceURL:   p.SourceURL,
		ImportedAt:  p.ImportedAt.Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	return &OutboxEvent{
		AggregateType: AggregateProduct,
		AggregateID:   id.String(),
		EventType:     EventProductImported,
		Payload:       payload,
		TargetStream:  CatalogImportStream,
	}, nil
}

const insertProductQuery = `
	INSERT INTO products (
		id, name, price, brand, article, description, product_type,
		image_main, images_additional,
		brand_country, manufacturer_country, collection, style, color,
		lamp_count, socket_type, lamp_type, lamp_power_watts, total_power_watts, voltage, ip_rating,
		height, diameter, length, width, depth, chain_length,
		has_remote, is_dimmable, has_color_change,
		assembly_instruction_url, rating, review_count, in_stock,
		source_url, imported_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7,
		$8, $9,
		$10, $11, $12, $13, $14,
		$15, $16, $17, $18, $19, $20, $21,
		$22, $23, $24, $25, $26, $27,
		$28, $29, $30,
		$31, $32, $33, $34,
		$35, $36
	)`

// Insert stores one record and returns its new id.
func (s *ProductStore) Insert(ctx context.Context, p *models.ProductRecord) (uuid.UUID, error) {
	id := uuid.New()

	images := p.ImagesAdditional
	if images == nil {
		images = []string{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal images: %w", err)
	}

	event, err := productImportedEvent(id, p)
	if err != nil {
		return uuid.Nil, err
	}

	err = s.db.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertProductQuery,
			id, p.Name, p.Price, p.Brand, nullable(p.Article), nullable(p.Description), string(p.ProductType),
			nullable(p.ImageMain), imagesJSON,
			nullable(p.BrandCountry), nullable(p.ManufacturerCountry), nullable(p.Collection), nullable(p.Style), nullable(p.Color),
			p.LampCount, nullable(p.SocketType), nullable(p.LampType), p.LampPowerWatts, p.TotalPowerWatts, p.Voltage, nullable(p.IPRating),
			p.Height, p.Diameter, p.Length, p.Width, p.Depth, p.ChainLength,
			p.HasRemote, p.IsDimmable, p.HasColorChange,
			nullable(p.AssemblyInstructionURL), p.Rating, p.ReviewCount, p.InStock,
			p.SourceURL, p.ImportedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert product: %w", err)
		}
		return s.outbox.InsertWithTx(ctx, tx, event)
	})
	if err != nil {
		return uuid.Nil, err
	}

	return id, nil
}

// DeleteDuplicateArticles keeps only the newest row per article and returns
// how many rows were removed.
func (s *ProductStore) DeleteDuplicateArticles(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM products older
		USING products newer
		WHERE older.article IS NOT NULL
			AND older.article <> ''
			AND older.article = newer.article
			AND (older.created_at, older.id) < (newer.created_at, newer.id)`

	tag, err := s.db.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete duplicate articles: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Count returns the number of stored products.
func (s *ProductStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM products").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
