package models

// PromptCategory classifies the intent of a tracked prompt.
type PromptCategory string

const (
	CategoryBrand           PromptCategory = "brand"
	CategoryProduct         PromptCategory = "product"
	CategoryComparison      PromptCategory = "comparison"
	CategoryRecommendation  PromptCategory = "recommendation"
	CategoryProblemSolution PromptCategory = "problem_solution"
)

func (c PromptCategory) Valid() bool {
	switch c {
	case CategoryBrand, CategoryProduct, CategoryComparison, CategoryRecommendation, CategoryProblemSolution:
		return true
	}
	return false
}

// TopicModel groups prompts of a domain for topic-level visibility.
type TopicModel struct {
	Base
	DomainID string `json:"domain_id" gorm:"type:char(36);index;not null"`
	Name     string `json:"name"      gorm:"type:varchar(191);not null"`
}

func (TopicModel) TableName() string { return "topics" }

// PromptModel is a tracked natural-language query.
type PromptModel struct {
	Base
	DomainID          string         `json:"domain_id"          gorm:"type:char(36);index;not null"`
	Text              string         `json:"text"               gorm:"type:text;not null"`
	Category          PromptCategory `json:"category"           gorm:"type:varchar(32);not null"`
	Active            bool           `json:"active"             gorm:"not null"`
	Archived          bool           `json:"archived"           gorm:"not null"`
	Location          *string        `json:"location"           gorm:"type:varchar(64)"`
	TopicID           *string        `json:"topic_id"           gorm:"type:char(36);index"`
	SelectedProviders StringArray    `json:"selected_providers" gorm:"type:text"`

	Topic *TopicModel      `json:"topic,omitempty" gorm:"foreignKey:TopicID"`
	Runs  []PromptRunModel `json:"-"               gorm:"foreignKey:PromptID;constraint:OnDelete:CASCADE"`
}

func (PromptModel) TableName() string { return "prompts" }

// Targets reports whether the prompt should run against provider.
// An empty selection means every provider.
func (p *PromptModel) Targets(provider string) bool {
	return len(p.SelectedProviders) == 0 || p.SelectedProviders.Contains(provider)
}
