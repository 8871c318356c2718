package models

import (
	"fmt"
	"time"
)

// SubjectKind distinguishes registered users from guests
type SubjectKind string

const (
	SubjectUser  SubjectKind = "user"
	SubjectGuest SubjectKind = "guest"
)

// Subject identifies whose summary a record belongs to
type Subject struct {
	Kind SubjectKind `json:"kind"`
	ID   string      `json:"id"`
}

// ParseSubjectKind converts a path value into a SubjectKind
func ParseSubjectKind(s string) (SubjectKind, bool) {
	switch SubjectKind(s) {
	case SubjectUser, SubjectGuest:
		return SubjectKind(s), true
	default:
		return "", false
	}
}

// Valid reports whether the subject has a known kind and a non-empty id
func (s Subject) Valid() bool {
	_, ok := ParseSubjectKind(string(s.Kind))
	return ok && s.ID != ""
}

// Column returns the daily_summaries/sessions column holding this subject's id
func (s Subject) Column() string {
	if s.Kind == SubjectGuest {
		return "guest_id"
	}
	return "user_id"
}

// String returns "kind:id"
func (s Subject) String() string {
	return fmt.Sprintf("%s:%s", s.Kind, s.ID)
}

// Work category names. The set is fixed.
const (
	CategoryPlanning = "planning"
	CategoryFrontend = "frontend"
	CategoryBackend  = "backend"
	CategoryQA       = "qa"
	CategoryDevops   = "devops"
	CategoryResearch = "research"
	CategoryOther    = "other"
)

// CategoryNames lists the seven work categories in canonical order
var CategoryNames = []string{
	CategoryPlanning,
	CategoryFrontend,
	CategoryBackend,
	CategoryQA,
	CategoryDevops,
	CategoryResearch,
	CategoryOther,
}

// IsCategory reports whether name is one of the seven work categories
func IsCategory(name string) bool {
	for _, c := range CategoryNames {
		if c == name {
			return true
		}
	}
	return false
}

// CategoryAllocation is the time spent in one work category
type CategoryAllocation struct {
	Minutes     int     `json:"minutes"`
	Percentage  float64 `json:"percentage"`
	Description *string `json:"description"`
}

// WorkCategories maps each category name to its allocation.
// Values built by NewWorkCategories always carry all seven keys.
type WorkCategories map[string]CategoryAllocation

// NewWorkCategories returns all seven categories zeroed
func NewWorkCategories() WorkCategories {
	wc := make(WorkCategories, len(CategoryNames))
	for _, name := range CategoryNames {
		wc[name] = CategoryAllocation{}
	}
	return wc
}

// TotalPercentage sums the percentage of every category
func (wc WorkCategories) TotalPercentage() float64 {
	var total float64
	for _, a := range wc {
		total += a.Percentage
	}
	return total
}

// TodoItem is a single follow-up task for a project
type TodoItem struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

// ProjectTodoList holds the to-dos for one project
type ProjectTodoList struct {
	ProjectID   *string    `json:"project_id"`
	ProjectName string     `json:"project_name"`
	Todos       []TodoItem `json:"todos"`
}

// ProjectTodos maps a project slug to its to-do list
type ProjectTodos map[string]ProjectTodoList

// ProjectText is the concatenated user text for one project on one day
type ProjectText struct {
	ProjectName string `json:"project_name"`
	UserText    string `json:"user_text"`

	// PromptCount is the number of messages joined into UserText.
	// Zero when unknown, e.g. for caller-supplied texts.
	PromptCount int `json:"-"`
}

// SummaryRecord is a generated daily work summary.
// Exactly one of UserID and GuestID is set.
type SummaryRecord struct {
	ID                      int64             `json:"id,omitempty"`
	UserID                  *string           `json:"user_id"`
	GuestID                 *string           `json:"guest_id"`
	Date                    string            `json:"date"` // Format: YYYY-MM-DD
	Summary                 map[string]string `json:"summary"`
	WorkCategories          WorkCategories    `json:"work_categories"`
	ProjectTodos            ProjectTodos      `json:"project_todos"`
	QualityScore            float64           `json:"quality_score"`
	QualityScoreExplanation string            `json:"quality_score_explanation"`
	RawText                 string            `json:"raw_text"`
	CreatedAt               time.Time         `json:"created_at"`
}

// NewSummaryRecord returns an empty record owned by subject
func NewSummaryRecord(subject Subject, date string) *SummaryRecord {
	rec := &SummaryRecord{
		Date:           date,
		Summary:        map[string]string{},
		WorkCategories: NewWorkCategories(),
		ProjectTodos:   ProjectTodos{},
	}
	rec.SetSubject(subject)
	return rec
}

// SetSubject assigns the owner, clearing the other reference
func (r *SummaryRecord) SetSubject(subject Subject) {
	id := subject.ID
	r.UserID, r.GuestID = nil, nil
	if subject.Kind == SubjectGuest {
		r.GuestID = &id
	} else {
		r.UserID = &id
	}
}

// Subject returns the owner of the record
func (r *SummaryRecord) Subject() Subject {
	if r.GuestID != nil {
		return Subject{Kind: SubjectGuest, ID: *r.GuestID}
	}
	if r.UserID != nil {
		return Subject{Kind: SubjectUser, ID: *r.UserID}
	}
	return Subject{}
}

// SummaryOutcome is the result of validating (and possibly caching) a summary
type SummaryOutcome struct {
	Record       *SummaryRecord `json:"record"`
	ParseSuccess bool           `json:"parse_success"`
	Errors       []string       `json:"errors"`
	Warnings     []string       `json:"warnings"`
	Cached       bool           `json:"cached"`
}

// RangeResult partitions the dates of a batch regeneration
type RangeResult struct {
	Generated   []string          `json:"generated"`
	Skipped     []string          `json:"skipped"`
	SkipReasons map[string]string `json:"skip_reasons"` // date -> why it was skipped
}
