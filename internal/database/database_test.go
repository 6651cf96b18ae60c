package database_test

import (
	"testing"

	"github.com/geolens/engine/internal/database"
	"github.com/geolens/engine/internal/database/databasetest"
	"github.com/geolens/engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateIsIdempotent(t *testing.T) {
	db := databasetest.New(t)

	require.NoError(t, database.Migrate(db))

	for _, table := range []string{"domains", "topics", "prompts", "prompt_runs", "mention_analyses", "brand_mentions"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasIndex("prompt_runs", "idx_prompt_runs_provider_executed"))
}

func TestMentionAnalysisUniquePerRunAndDomain(t *testing.T) {
	db := databasetest.New(t)

	domain := models.DomainModel{Name: "fairlife.com", BrandName: "Fairlife"}
	require.NoError(t, db.Create(&domain).Error)
	prompt := models.PromptModel{DomainID: domain.ID, Text: "best protein milk", Category: models.CategoryProduct, Active: true}
	require.NoError(t, db.Create(&prompt).Error)
	run := models.PromptRunModel{PromptID: prompt.ID, LLMProvider: "chatgpt"}
	require.NoError(t, db.Create(&run).Error)

	first := models.MentionAnalysisModel{PromptRunID: run.ID, DomainID: domain.ID, Mentioned: true}
	require.NoError(t, db.Create(&first).Error)
	second := models.MentionAnalysisModel{PromptRunID: run.ID, DomainID: domain.ID}
	assert.Error(t, db.Create(&second).Error)
}

func TestDefaultDomainStatusIsPending(t *testing.T) {
	db := databasetest.New(t)

	domain := models.DomainModel{Name: "acme.io", BrandName: "Acme"}
	require.NoError(t, db.Create(&domain).Error)

	var loaded models.DomainModel
	require.NoError(t, db.First(&loaded, "id = ?", domain.ID).Error)
	assert.Equal(t, models.PromptRunPending, loaded.PromptRunStatus)
}
