package database

import (
	"fmt"

	"github.com/geolens/engine/internal/models"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// Migrate applies all schema migrations in order.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202401_core_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&models.DomainModel{},
					&models.TopicModel{},
					&models.PromptModel{},
					&models.PromptRunModel{},
					&models.MentionAnalysisModel{},
					&models.BrandMentionModel{},
				)
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(
					"brand_mentions", "mention_analyses", "prompt_runs", "prompts", "topics", "domains",
				)
			},
		},
		{
			ID: "202402_prompt_run_indexes",
			Migrate: func(tx *gorm.DB) error {
				for _, idx := range aggregationIndexes {
					if tx.Migrator().HasIndex(idx.table, idx.name) {
						continue
					}
					sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				for _, idx := range aggregationIndexes {
					if err := tx.Migrator().DropIndex(idx.table, idx.name); err != nil {
						return err
					}
				}
				return nil
			},
		},
	})

	if err := m.Migrate(); err != nil {
		return fmt.Errorf("run gormigrate migrations: %w", err)
	}
	return nil
}

type namedIndex struct {
	table   string
	name    string
	columns string
}

// aggregationIndexes back the analytics window scans.
var aggregationIndexes = []namedIndex{
	{table: "prompt_runs", name: "idx_prompt_runs_prompt_executed", columns: "prompt_id, executed_at"},
	{table: "prompt_runs", name: "idx_prompt_runs_provider_executed", columns: "llm_provider, executed_at"},
	{table: "brand_mentions", name: "idx_brand_mentions_run_brand", columns: "prompt_run_id, brand_name"},
}
