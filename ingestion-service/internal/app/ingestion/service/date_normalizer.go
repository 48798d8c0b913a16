package service

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"mlreviews/ingestion-service/internal/app/ingestion/entity"
	"mlreviews/ingestion-service/internal/app/ingestion/sentiment"
)

// DateNormalizer превращает исходный текст даты отзыва в время и статус.
// fetchedAt - момент загрузки, от него считаются относительные даты.
type DateNormalizer interface {
	Normalize(text string, fetchedAt time.Time) (*time.Time, entity.DateStatus)
}

var absoluteLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
}

var spanishMonths = map[string]time.Month{
	"enero": time.January, "ene": time.January,
	"febrero": time.February, "feb": time.February,
	"marzo": time.March, "mar": time.March,
	"abril": time.April, "abr": time.April,
	"mayo": time.May, "may": time.May,
	"junio": time.June, "jun": time.June,
	"julio": time.July, "jul": time.July,
	"agosto": time.August, "ago": time.August,
	"septiembre": time.September, "setiembre": time.September, "sep": time.September, "set": time.September,
	"octubre": time.October, "oct": time.October,
	"noviembre": time.November, "nov": time.November,
	"diciembre": time.December, "dic": time.December,
}

// Шаблоны применяются к тексту после sentiment.Fold (нижний регистр, без
// диакритики и знаков препинания): "2 de enero de 2024", "02 ene. 2024", "ene 2024"
var (
	dayMonthYearRe = regexp.MustCompile(`^(\d{1,2}) (?:de )?([a-z]+) (?:de )?(\d{4})$`)
	monthYearRe    = regexp.MustCompile(`^([a-z]+) (?:de )?(\d{4})$`)
	dayMonthRe     = regexp.MustCompile(`^(\d{1,2}) (?:de )?([a-z]+)$`)
	relativeRe     = regexp.MustCompile(`^hace (\d+|un|una) (dia|dias|semana|semanas|mes|meses|ano|anos)$`)
)

// SourceDateNormalizer понимает форматы, которые встречаются в ответах
// маркетплейса. Будущая дата в следующем календарном году, которая после
// сдвига на год назад уже не в будущем, исправляется (статус corrected).
// Прочие будущие и нераспознанные даты сохраняются как unresolved без времени.
type SourceDateNormalizer struct{}

func NewSourceDateNormalizer() *SourceDateNormalizer {
	return &SourceDateNormalizer{}
}

func (n *SourceDateNormalizer) Normalize(text string, fetchedAt time.Time) (*time.Time, entity.DateStatus) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, entity.DateMissing
	}
	fetchedAt = fetchedAt.UTC()

	for _, layout := range absoluteLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return checkFuture(t.UTC(), fetchedAt)
		}
	}

	folded := sentiment.Fold(text)

	if t, ok := parseRelative(folded, fetchedAt); ok {
		return &t, entity.DateRelative
	}

	if m := dayMonthYearRe.FindStringSubmatch(folded); m != nil {
		if t, ok := buildDate(m[3], m[2], m[1]); ok {
			return checkFuture(t, fetchedAt)
		}
	}

	if m := monthYearRe.FindStringSubmatch(folded); m != nil {
		if t, ok := buildDate(m[2], m[1], "1"); ok {
			return checkFuture(t, fetchedAt)
		}
	}

	// "12 dic" без года: год загрузки, либо предыдущий, если дата еще не наступила
	if m := dayMonthRe.FindStringSubmatch(folded); m != nil {
		if t, ok := buildDate(strconv.Itoa(fetchedAt.Year()), m[2], m[1]); ok {
			if t.After(fetchedAt) {
				t = t.AddDate(-1, 0, 0)
			}
			return &t, entity.DateParsed
		}
	}

	return nil, entity.DateUnresolved
}

func checkFuture(t, fetchedAt time.Time) (*time.Time, entity.DateStatus) {
	if !t.After(fetchedAt) {
		return &t, entity.DateParsed
	}

	if t.Year() == fetchedAt.Year()+1 {
		back := t.AddDate(-1, 0, 0)
		if !back.After(fetchedAt) {
			return &back, entity.DateCorrected
		}
	}

	return nil, entity.DateUnresolved
}

func buildDate(year, month, day string) (time.Time, bool) {
	mon, ok := spanishMonths[month]
	if !ok {
		return time.Time{}, false
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return time.Time{}, false
	}

	t := time.Date(y, mon, d, 0, 0, 0, 0, time.UTC)
	// 31 feb и подобные time.Date переносит на следующий месяц
	if t.Month() != mon {
		return time.Time{}, false
	}
	return t, true
}

func parseRelative(folded string, fetchedAt time.Time) (time.Time, bool) {
	switch folded {
	case "hoy":
		return truncateDay(fetchedAt), true
	case "ayer":
		return truncateDay(fetchedAt.AddDate(0, 0, -1)), true
	}

	m := relativeRe.FindStringSubmatch(folded)
	if m == nil {
		return time.Time{}, false
	}

	n := 1
	if m[1] != "un" && m[1] != "una" {
		v, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false
		}
		n = v
	}

	var t time.Time
	switch m[2] {
	case "dia", "dias":
		t = fetchedAt.AddDate(0, 0, -n)
	case "semana", "semanas":
		t = fetchedAt.AddDate(0, 0, -7*n)
	case "mes", "meses":
		t = fetchedAt.AddDate(0, -n, 0)
	default:
		t = fetchedAt.AddDate(-n, 0, 0)
	}

	return truncateDay(t), true
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
