package services

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"research-showcase-api/config"
	"research-showcase-api/models"
	"research-showcase-api/utils"
)

const (
	SortByDate  = "date"
	SortByTitle = "title"
)

// SearchParams are the public search filters. Empty fields mean "not supplied".
type SearchParams struct {
	Query         string
	StartSemester string
	EndSemester   string
	SortBy        string
}

// SearchResult is the matched projects plus the semester selector state.
type SearchResult struct {
	Projects      []models.ResearchProject `json:"projects"`
	Query         string                   `json:"query"`
	Semesters     []string                 `json:"semesters"`
	StartSemester string                   `json:"start_semester"`
	EndSemester   string                   `json:"end_semester"`
	SortBy        string                   `json:"sort_by"`
	DateFiltered  bool                     `json:"date_filtered"`
}

// SearchService answers read-only queries over approved projects.
type SearchService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSearchService(db *gorm.DB) *SearchService {
	if db == nil {
		db = config.DB
	}
	return &SearchService{db: db, now: time.Now}
}

// Search filters approved projects by text and semester range. The date
// predicate applies only when at least one semester was supplied; a missing
// bound falls back to the default range.
func (s *SearchService) Search(ctx context.Context, p SearchParams) (*SearchResult, error) {
	var start, end *utils.Semester
	if label := strings.TrimSpace(p.StartSemester); label != "" {
		sem, err := utils.ResolveSemester(label)
		if err != nil {
			return nil, utils.ErrValidation("start_semester", err.Error())
		}
		start = &sem
	}
	if label := strings.TrimSpace(p.EndSemester); label != "" {
		sem, err := utils.ResolveSemester(label)
		if err != nil {
			return nil, utils.ErrValidation("end_semester", err.Error())
		}
		end = &sem
	}

	defaults, err := s.DefaultRange(ctx)
	if err != nil {
		return nil, err
	}
	filtered := start != nil || end != nil
	if start == nil {
		start = &defaults.Start
	}
	if end == nil {
		end = &defaults.End
	}
	from, to := utils.OrderedBounds(*start, *end)

	sortBy := SortByDate
	if strings.EqualFold(strings.TrimSpace(p.SortBy), SortByTitle) {
		sortBy = SortByTitle
	}

	query := utils.SanitizeInput(p.Query)
	q := s.db.WithContext(ctx).Model(&models.ResearchProject{}).
		Where("approval_status = ?", models.StatusApproved)
	if query != "" {
		like := "%" + escapeLike(strings.ToLower(query)) + "%"
		q = q.Where("(LOWER(title) LIKE ? ESCAPE '!' OR LOWER(abstract) LIKE ? ESCAPE '!' OR LOWER(project_sponsor) LIKE ? ESCAPE '!')",
			like, like, like)
	}
	if filtered {
		q = q.Where("date_presented >= ? AND date_presented <= ?", from.Start, endOfDay(to.End))
	}
	if sortBy == SortByTitle {
		q = q.Order("title ASC")
	} else {
		q = q.Order("CASE WHEN date_presented IS NULL THEN 1 ELSE 0 END").
			Order("date_presented DESC").
			Order("submission_date DESC")
	}

	projects := []models.ResearchProject{}
	if err := q.Find(&projects).Error; err != nil {
		return nil, utils.ErrPersistence(err, "failed to search research projects")
	}

	return &SearchResult{
		Projects:      projects,
		Query:         query,
		Semesters:     utils.SemesterLabels(defaults.Semesters),
		StartSemester: from.Label(),
		EndSemester:   to.Label(),
		SortBy:        sortBy,
		DateFiltered:  filtered,
	}, nil
}

// DefaultRange derives the selectable semesters from the presented dates of approved projects.
func (s *SearchService) DefaultRange(ctx context.Context) (utils.SemesterRange, error) {
	earliest, err := s.boundary(ctx, "ASC")
	if err != nil {
		return utils.SemesterRange{}, err
	}
	latest, err := s.boundary(ctx, "DESC")
	if err != nil {
		return utils.SemesterRange{}, err
	}
	return utils.DefaultSemesterRange(earliest, latest, s.now()), nil
}

func (s *SearchService) boundary(ctx context.Context, dir string) (*time.Time, error) {
	var rows []models.ResearchProject
	err := s.db.WithContext(ctx).
		Select("date_presented").
		Where("approval_status = ? AND date_presented IS NOT NULL", models.StatusApproved).
		Order("date_presented " + dir).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, utils.ErrPersistence(err, "failed to load presentation dates")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].DatePresented, nil
}

// endOfDay returns the last instant of d so that drivers storing dates with a
// time part still match the final day inclusively.
func endOfDay(d time.Time) time.Time {
	return d.Add(24*time.Hour - time.Microsecond)
}

func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}
