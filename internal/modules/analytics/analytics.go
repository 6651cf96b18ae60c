// Package analytics computes read-only visibility rollups over recorded runs.
// Only runs that produced an answer count towards a score.
package analytics

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/geolens/engine/internal/models"
	"github.com/geolens/engine/internal/modules/signal"
	"gorm.io/gorm"
)

var (
	ErrDomainNotFound = errors.New("domain not found")
	ErrInvalidWindow  = errors.New("from must not be after to")
)

// Service answers the dashboard rollups.
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Score is round(mentioned/total*1000)/10, and 0 for an empty set.
func Score(mentioned, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return share(mentioned, total)
}

func share(count, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(count)/float64(total)*1000) / 10
}

func newVisibility(mentioned, total int64) Visibility {
	return Visibility{MentionedRuns: mentioned, TotalRuns: total, Score: Score(mentioned, total)}
}

func (s *Service) normalize(f Filter) (Filter, error) {
	if f.To.IsZero() {
		f.To = s.now()
	}
	if f.From.IsZero() {
		f.From = f.To.Add(-DefaultWindow)
	}
	f.From, f.To = f.From.UTC(), f.To.UTC()
	if f.From.After(f.To) {
		return f, ErrInvalidWindow
	}
	f.Brand = strings.TrimSpace(f.Brand)
	return f, nil
}

func (s *Service) loadDomain(ctx context.Context, id string) (*models.DomainModel, error) {
	var d models.DomainModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDomainNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// runsQuery selects the domain's runs inside the window.
func (s *Service) runsQuery(ctx context.Context, f Filter) *gorm.DB {
	q := s.db.WithContext(ctx).
		Table("prompt_runs").
		Joins("JOIN prompts ON prompts.id = prompt_runs.prompt_id").
		Where("prompts.domain_id = ? AND prompts.deleted_at IS NULL", f.DomainID).
		Where("prompt_runs.executed_at >= ? AND prompt_runs.executed_at <= ?", f.From, f.To)
	if f.Provider != "" {
		q = q.Where("prompt_runs.llm_provider = ?", string(f.Provider))
	}
	return q
}

func (s *Service) loadRuns(ctx context.Context, f Filter) ([]runRow, error) {
	var rows []runRow
	err := s.runsQuery(ctx, f).
		Select(`prompt_runs.id AS id,
			prompt_runs.llm_provider AS llm_provider,
			prompt_runs.executed_at AS executed_at,
			prompt_runs.duration_ms AS duration_ms,
			prompts.topic_id AS topic_id,
			prompt_runs.error IS NOT NULL AS failed,
			COALESCE(mention_analyses.mentioned, 0) AS mentioned`).
		Joins("LEFT JOIN mention_analyses ON mention_analyses.prompt_run_id = prompt_runs.id AND mention_analyses.domain_id = prompts.domain_id").
		Scan(&rows).Error
	return rows, err
}

// prepare validates the filter and loads the runs it selects.
func (s *Service) prepare(ctx context.Context, f Filter) (Filter, *models.DomainModel, []runRow, error) {
	f, err := s.normalize(f)
	if err != nil {
		return f, nil, nil, err
	}
	domain, err := s.loadDomain(ctx, f.DomainID)
	if err != nil {
		return f, nil, nil, err
	}
	rows, err := s.loadRuns(ctx, f)
	return f, domain, rows, err
}

func tally(rows []runRow) Visibility {
	var m, t int64
	for _, r := range rows {
		if r.Failed {
			continue
		}
		t++
		if r.Mentioned {
			m++
		}
	}
	return newVisibility(m, t)
}

// Visibility is the share of answered runs whose analysis found the tracked brand.
func (s *Service) Visibility(ctx context.Context, f Filter) (*Visibility, error) {
	_, _, rows, err := s.prepare(ctx, f)
	if err != nil {
		return nil, err
	}
	v := tally(rows)
	return &v, nil
}

type citationRow struct {
	Citations models.Citations `gorm:"column:citations"`
}

type mentionRow struct {
	PromptRunID string
	BrandName   string
	BrandDomain *string
}

// Ranking counts distinct runs per brand. The tracked brand's count comes from
// the mention analyses; brand mentions naming it are folded into that row.
func (s *Service) Ranking(ctx context.Context, f Filter) ([]RankingRow, error) {
	f, domain, rows, err := s.prepare(ctx, f)
	if err != nil {
		return nil, err
	}
	vis := tally(rows)

	var mentions []mentionRow
	err = s.runsQuery(ctx, f).
		Where("prompt_runs.error IS NULL").
		Joins("JOIN brand_mentions ON brand_mentions.prompt_run_id = prompt_runs.id").
		Select("brand_mentions.prompt_run_id AS prompt_run_id, brand_mentions.brand_name AS brand_name, brand_mentions.brand_domain AS brand_domain").
		Order("brand_mentions.position ASC").
		Scan(&mentions).Error
	if err != nil {
		return nil, err
	}

	trackedKey := strings.ToLower(strings.TrimSpace(domain.BrandName))
	trackedBase := signal.BaseDomain(domain.Name)

	type bucket struct {
		name string
		runs map[string]struct{}
	}
	buckets := make(map[string]*bucket)
	for _, m := range mentions {
		key := strings.ToLower(strings.TrimSpace(m.BrandName))
		if key == "" || key == trackedKey {
			continue
		}
		if m.BrandDomain != nil && trackedBase != "" && signal.BaseDomain(*m.BrandDomain) == trackedBase {
			continue
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{name: strings.TrimSpace(m.BrandName), runs: make(map[string]struct{})}
			buckets[key] = b
		}
		b.runs[m.PromptRunID] = struct{}{}
	}

	out := make([]RankingRow, 0, len(buckets)+1)
	out = append(out, RankingRow{
		Name:    domain.BrandName,
		Count:   vis.MentionedRuns,
		Share:   share(vis.MentionedRuns, vis.TotalRuns),
		Tracked: true,
	})
	for _, b := range buckets {
		n := int64(len(b.runs))
		out = append(out, RankingRow{Name: b.name, Count: n, Share: share(n, vis.TotalRuns)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	if len(out) > rankingLimit {
		out = out[:rankingLimit]
	}
	return out, nil
}

// SourceDomains counts cited hostnames. Citations without a resolvable host
// are skipped and excluded from the share denominator.
func (s *Service) SourceDomains(ctx context.Context, f Filter) ([]SourceRow, error) {
	f, err := s.normalize(f)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadDomain(ctx, f.DomainID); err != nil {
		return nil, err
	}

	q := s.runsQuery(ctx, f).Where("prompt_runs.error IS NULL")
	if f.Brand != "" {
		q = q.Where("EXISTS (SELECT 1 FROM brand_mentions WHERE brand_mentions.prompt_run_id = prompt_runs.id AND LOWER(brand_mentions.brand_name) = ?)", strings.ToLower(f.Brand))
	}
	var cited []citationRow
	if err := q.Select("prompt_runs.citations AS citations").Scan(&cited).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64)
	var resolvable int64
	for _, row := range cited {
		for _, c := range row.Citations {
			host := signal.Hostname(c.URL)
			if host == "" {
				continue
			}
			counts[host]++
			resolvable++
		}
	}

	out := make([]SourceRow, 0, len(counts))
	for host, n := range counts {
		out = append(out, SourceRow{Domain: host, Count: n, Share: share(n, resolvable)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Domain < out[j].Domain
	})
	return out, nil
}

// Topics groups visibility by prompt topic.
func (s *Service) Topics(ctx context.Context, f Filter) ([]TopicRow, error) {
	f, _, rows, err := s.prepare(ctx, f)
	if err != nil {
		return nil, err
	}

	var topics []models.TopicModel
	if err := s.db.WithContext(ctx).Where("domain_id = ?", f.DomainID).Find(&topics).Error; err != nil {
		return nil, err
	}
	names := make(map[string]string, len(topics))
	for _, t := range topics {
		names[t.ID] = t.Name
	}

	groups := make(map[string][]runRow)
	for _, r := range rows {
		key := ""
		if r.TopicID != nil {
			key = *r.TopicID
		}
		groups[key] = append(groups[key], r)
	}

	out := make([]TopicRow, 0, len(groups))
	for id, group := range groups {
		name, ok := names[id]
		if id == "" || !ok {
			id, name = "", uncategorizedName
		}
		out = append(out, TopicRow{TopicID: id, Name: name, Visibility: tally(group)})
	}
	out = mergeUncategorized(out)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// mergeUncategorized folds rows whose topic was deleted into the empty topic.
func mergeUncategorized(rows []TopicRow) []TopicRow {
	out := rows[:0]
	var merged *TopicRow
	for _, r := range rows {
		if r.TopicID != "" {
			out = append(out, r)
			continue
		}
		if merged == nil {
			cp := r
			merged = &cp
			continue
		}
		merged.MentionedRuns += r.MentionedRuns
		merged.TotalRuns += r.TotalRuns
	}
	if merged != nil {
		merged.Visibility = newVisibility(merged.MentionedRuns, merged.TotalRuns)
		out = append(out, *merged)
	}
	return out
}

// Models groups visibility by provider, with failure counts and latency.
func (s *Service) Models(ctx context.Context, f Filter) ([]ModelRow, error) {
	_, _, rows, err := s.prepare(ctx, f)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]runRow)
	for _, r := range rows {
		groups[r.LLMProvider] = append(groups[r.LLMProvider], r)
	}
	out := make([]ModelRow, 0, len(groups))
	for p, group := range groups {
		row := ModelRow{Provider: p, Visibility: tally(group)}
		var total int64
		for _, r := range group {
			total += r.DurationMs
			if r.Failed {
				row.FailedRuns++
			}
		}
		row.AvgDurationMs = math.Round(float64(total) / float64(len(group)))
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out, nil
}

// Trend returns one point per UTC day of the window, oldest first.
func (s *Service) Trend(ctx context.Context, f Filter) ([]TrendPoint, error) {
	f, _, rows, err := s.prepare(ctx, f)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string][]runRow)
	for _, r := range rows {
		key := dayKey(r.ExecutedAt)
		byDay[key] = append(byDay[key], r)
	}

	var out []TrendPoint
	for day := startOfDay(f.From); !day.After(f.To); day = day.AddDate(0, 0, 1) {
		key := dayKey(day)
		out = append(out, TrendPoint{Date: key, Visibility: tally(byDay[key])})
	}
	return out, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dayKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
