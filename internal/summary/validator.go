package summary

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/session-insights/internal/models"
)

// Field limits, in characters
const (
	MaxSummaryChars     = 500
	MaxExplanationChars = 300
)

// percentageTolerance is how far the category percentages may drift from 100 before a warning
const percentageTolerance = 1.0

// Validation is the normalized form of a model response.
// Decoded is false only when the payload was not structured data at all;
// such a result must not be cached.
type Validation struct {
	Record   *models.SummaryRecord
	Decoded  bool
	Errors   []string
	Warnings []string
}

// ParseSuccess reports whether the record has content and no field errors
func (v *Validation) ParseSuccess() bool {
	return v.Decoded && len(v.Record.Summary) > 0 && len(v.Errors) == 0
}

// Outcome converts the validation into the caller-facing shape
func (v *Validation) Outcome() *models.SummaryOutcome {
	return &models.SummaryOutcome{
		Record:       v.Record,
		ParseSuccess: v.ParseSuccess(),
		Errors:       nonNil(v.Errors),
		Warnings:     nonNil(v.Warnings),
	}
}

func (v *Validation) errorf(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

func (v *Validation) warnf(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}

// Validate parses a raw model response into a summary record.
// It never fails: problems are reported through Errors and Warnings,
// and each field is checked independently of the others.
// The returned record has no subject or date; the caller assigns them.
func Validate(raw string) *Validation {
	v := &Validation{Record: emptyRecord(raw)}

	payload := strings.TrimSpace(raw)
	if !strings.HasPrefix(payload, "{") {
		payload = strings.TrimSpace(stripFence(payload))
	}
	if payload == "" {
		v.errorf("decode: empty response")
		return v
	}

	if isLegacyMarkdown(payload) {
		parseLegacyMarkdown(payload, v)
		return v
	}

	fields, notes, err := decodeResponseObject(payload)
	if err != nil {
		v.errorf("decode: %v", err)
		return v
	}
	v.Decoded = true
	for _, note := range notes {
		v.warnf("decode: %s", note)
	}

	v.Record.Summary = validateSummary(fields["summary"], v)
	v.Record.WorkCategories = validateWorkCategories(fields["work_categories"], v)
	v.Record.ProjectTodos = validateProjectTodos(fields["project_todos"], v)
	v.Record.QualityScore = validateQualityScore(fields["quality_score"], v)
	v.Record.QualityScoreExplanation = validateExplanation(fields["quality_score_explanation"], v)

	return v
}

func emptyRecord(raw string) *models.SummaryRecord {
	return &models.SummaryRecord{
		Summary:        map[string]string{},
		WorkCategories: models.NewWorkCategories(),
		ProjectTodos:   models.ProjectTodos{},
		RawText:        raw,
	}
}

// stripFence returns the body of a fenced code block, or s unchanged when there is none
func stripFence(s string) string {
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}

	body := s[start+3:]
	// Skip the language tag, e.g. ```json
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.Contains(body[:nl], "{") {
		body = body[nl+1:]
	}
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return body
}

// jsonKind names the JSON type of a raw value
func jsonKind(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "missing"
	}
	switch trimmed[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

func decodeString(raw json.RawMessage) (string, bool) {
	if jsonKind(raw) != "string" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func decodeNumber(raw json.RawMessage) (float64, bool) {
	if jsonKind(raw) != "number" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, true
}

func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	if jsonKind(raw) != "object" {
		return nil, false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return m, true
}

func validateSummary(raw json.RawMessage, v *Validation) map[string]string {
	result := map[string]string{}

	entries, ok := decodeObject(raw)
	if !ok {
		v.errorf("summary: expected object keyed by project, got %s", jsonKind(raw))
		return result
	}

	for _, key := range sortedKeys(entries) {
		text, ok := decodeString(entries[key])
		if !ok {
			v.errorf("summary[%q]: expected string, got %s", key, jsonKind(entries[key]))
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		result[key] = truncateRunes(text, MaxSummaryChars)
	}

	return result
}

func validateWorkCategories(raw json.RawMessage, v *Validation) models.WorkCategories {
	result := models.NewWorkCategories()

	entries, ok := decodeObject(raw)
	if !ok {
		v.errorf("work_categories: expected object, got %s", jsonKind(raw))
		return result
	}

	for _, name := range models.CategoryNames {
		sub, present := entries[name]
		if !present {
			continue
		}
		fields, ok := decodeObject(sub)
		if !ok {
			v.errorf("work_categories.%s: expected object, got %s", name, jsonKind(sub))
			continue
		}
		result[name] = validateAllocation(name, fields, v)
	}

	for _, key := range sortedKeys(entries) {
		if !models.IsCategory(key) {
			v.warnf("work_categories: ignoring unknown category %q", key)
		}
	}

	total := result.TotalPercentage()
	if math.Abs(total-100) > percentageTolerance {
		v.warnf("work_categories: percentages sum to %.1f, expected 100", total)
	}

	return result
}

func validateAllocation(name string, fields map[string]json.RawMessage, v *Validation) models.CategoryAllocation {
	var alloc models.CategoryAllocation

	if raw, present := fields["minutes"]; present && jsonKind(raw) != "null" {
		minutes, ok := decodeNumber(raw)
		if !ok {
			v.errorf("work_categories.%s.minutes: expected number, got %s", name, jsonKind(raw))
		} else {
			alloc.Minutes = clampMinutes(minutes)
		}
	}

	if raw, present := fields["percentage"]; present && jsonKind(raw) != "null" {
		pct, ok := decodeNumber(raw)
		if !ok {
			v.errorf("work_categories.%s.percentage: expected number, got %s", name, jsonKind(raw))
		} else {
			alloc.Percentage = clamp(pct, 0, 100)
		}
	}

	if raw, present := fields["description"]; present && jsonKind(raw) != "null" {
		desc, ok := decodeString(raw)
		if !ok {
			v.errorf("work_categories.%s.description: expected string or null, got %s", name, jsonKind(raw))
		} else if desc = strings.TrimSpace(desc); desc != "" {
			alloc.Description = &desc
		}
	}

	return alloc
}

func validateProjectTodos(raw json.RawMessage, v *Validation) models.ProjectTodos {
	result := models.ProjectTodos{}

	entries, ok := decodeObject(raw)
	if !ok {
		v.errorf("project_todos: expected object keyed by project, got %s", jsonKind(raw))
		return result
	}

	for _, key := range sortedKeys(entries) {
		fields, ok := decodeObject(entries[key])
		if !ok {
			v.errorf("project_todos[%q]: expected object with a todos array, got %s; entry dropped", key, jsonKind(entries[key]))
			continue
		}

		todosRaw := fields["todos"]
		if jsonKind(todosRaw) != "array" {
			v.errorf("project_todos[%q].todos: expected array, got %s; entry dropped", key, jsonKind(todosRaw))
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(todosRaw, &items); err != nil {
			v.errorf("project_todos[%q].todos: %v; entry dropped", key, err)
			continue
		}

		list := models.ProjectTodoList{
			ProjectName: key,
			Todos:       make([]models.TodoItem, 0, len(items)),
		}
		if name, ok := decodeString(fields["project_name"]); ok && strings.TrimSpace(name) != "" {
			list.ProjectName = strings.TrimSpace(name)
		}
		if id, ok := decodeString(fields["project_id"]); ok && id != "" {
			list.ProjectID = &id
		}

		for i, item := range items {
			todo, err := normalizeTodo(item)
			if err != "" {
				v.errorf("project_todos[%q].todos[%d]: %s", key, i, err)
				continue
			}
			list.Todos = append(list.Todos, todo)
		}

		result[key] = list
	}

	return result
}

// normalizeTodo returns the todo or a reason it was rejected
func normalizeTodo(raw json.RawMessage) (models.TodoItem, string) {
	fields, ok := decodeObject(raw)
	if !ok {
		return models.TodoItem{}, fmt.Sprintf("expected object, got %s", jsonKind(raw))
	}

	text, _ := decodeString(fields["text"])
	text = strings.TrimSpace(text)
	if text == "" {
		return models.TodoItem{}, "missing text"
	}

	return models.TodoItem{Text: text, Category: normalizeCategory(fields["category"])}, ""
}

// normalizeCategory maps anything outside the seven names to "other"
func normalizeCategory(raw json.RawMessage) string {
	category, ok := decodeString(raw)
	if !ok {
		return models.CategoryOther
	}
	category = strings.ToLower(strings.TrimSpace(category))
	if !models.IsCategory(category) {
		return models.CategoryOther
	}
	return category
}

func validateQualityScore(raw json.RawMessage, v *Validation) float64 {
	score, ok := decodeNumber(raw)
	if !ok {
		v.errorf("quality_score: expected number, got %s", jsonKind(raw))
		return 0
	}
	return clamp(score, 0, 1)
}

func validateExplanation(raw json.RawMessage, v *Validation) string {
	text, ok := decodeString(raw)
	if !ok {
		v.errorf("quality_score_explanation: expected string, got %s", jsonKind(raw))
		return ""
	}
	return truncateRunes(strings.TrimSpace(text), MaxExplanationChars)
}

func clamp(f, lo, hi float64) float64 {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}

func clampMinutes(f float64) int {
	f = math.Round(f)
	if f < 0 {
		return 0
	}
	if f > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(f)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
