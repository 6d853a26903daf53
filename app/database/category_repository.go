package database

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed categories.yml
var categorySeed []byte

var _ CategoryRepository = (*categoryRepository)(nil)

type categoryRepository struct {
	db Querier
}

func NewCategoryRepository(db Querier) CategoryRepository {
	return &categoryRepository{db: db}
}

// Seed inserts the embedded category taxonomy, leaving existing rows alone.
func (r *categoryRepository) Seed(ctx context.Context) error {
	var seed struct {
		Categories []string `yaml:"categories"`
	}
	if err := yaml.Unmarshal(categorySeed, &seed); err != nil {
		return fmt.Errorf("failed to parse category seed: %w", err)
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO categories (name)
		SELECT unnest($1::text[])
		ON CONFLICT (name) DO NOTHING
	`, seed.Categories)
	if err != nil {
		return fmt.Errorf("failed to seed categories: %w", err)
	}
	return nil
}

func (r *categoryRepository) GetAll(ctx context.Context) ([]Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to get categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var category Category
		if err := rows.Scan(&category.ID, &category.Name); err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category rows: %w", err)
	}

	return categories, nil
}
