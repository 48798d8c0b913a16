package marketplace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"mlreviews/ingestion-service/internal/app/ingestion/entity"
)

// Ответы маркетплейса не имеют стабильной схемы: одни и те же поля приходят
// строкой или числом, вложенными объектами или плоско. Записи разбираются в
// map через json.Number и затем переносятся в entity.RawReview/RawProduct.
//
// Отзыв без ID или с оценкой вне 1..5 не сохраняется и попадает в Rejected.

type object = map[string]interface{}

func decodeObject(raw json.RawMessage) (object, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var m object
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// lookup проходит по вложенным объектам: lookup(m, "comment", "content")
func lookup(m object, path ...string) (interface{}, bool) {
	var cur interface{} = m
	for _, key := range path {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// str возвращает строку или число как строку
func str(m object, path ...string) string {
	v, ok := lookup(m, path...)
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	}
	return ""
}

// integer возвращает число или строку с числом, иначе 0
func integer(m object, path ...string) int {
	v, ok := lookup(m, path...)
	if !ok {
		return 0
	}
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i)
		}
		if f, err := val.Float64(); err == nil {
			return int(f)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return i
		}
	}
	return 0
}

func float(m object, path ...string) float64 {
	v, ok := lookup(m, path...)
	if !ok {
		return 0
	}
	switch val := v.(type) {
	case json.Number:
		f, _ := val.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f
	}
	return 0
}

// firstRaw возвращает первое присутствующее поле в виде JSON
func firstRaw(m object, keys ...string) json.RawMessage {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil {
			if data, err := json.Marshal(v); err == nil {
				return data
			}
		}
	}
	return nil
}

// firstString возвращает первое непустое строковое значение из путей
func firstString(m object, paths ...[]string) string {
	for _, path := range paths {
		if s := str(m, path...); s != "" {
			return s
		}
	}
	return ""
}

// truncateTitle - первые 50 символов текста с многоточием
func truncateTitle(content string) string {
	const limit = 50
	if utf8.RuneCountInString(content) <= limit {
		return content
	}
	runes := []rune(content)
	return string(runes[:limit]) + "..."
}

// validateReview проверяет обязательные поля разобранного отзыва
func validateReview(r entity.RawReview) error {
	if r.APIReviewID == "" {
		return fmt.Errorf("missing review id")
	}
	if r.Rate < 1 || r.Rate > 5 {
		return fmt.Errorf("invalid rating %d", r.Rate)
	}
	return nil
}

// appendReview добавляет отзыв на страницу или в Rejected
func appendReview(page *entity.ReviewPage, r entity.RawReview) {
	if err := validateReview(r); err != nil {
		page.Rejected = append(page.Rejected, entity.RejectedRecord{Reason: err.Error(), Raw: r.Raw})
		return
	}
	page.Reviews = append(page.Reviews, r)
}

// productFromObject разбирает товар из /items/{id} и из результатов поиска
func productFromObject(m object, raw json.RawMessage) entity.RawProduct {
	p := entity.RawProduct{
		ID:                str(m, "id"),
		Title:             str(m, "title"),
		Price:             float(m, "price"),
		SiteID:            str(m, "site_id"),
		CurrencyID:        str(m, "currency_id"),
		SoldQuantity:      integer(m, "sold_quantity"),
		AvailableQuantity: integer(m, "available_quantity"),
		Permalink:         str(m, "permalink"),
		Attributes:        map[string]interface{}{},
		Raw:               raw,
	}

	attrs, _ := m["attributes"].([]interface{})
	for _, a := range attrs {
		attr, ok := a.(map[string]interface{})
		if !ok {
			continue
		}
		id := str(attr, "id")
		value := str(attr, "value_name")
		switch id {
		case "BRAND":
			p.Brand = value
		case "MODEL":
			p.Model = value
		}
		if name := str(attr, "name"); name != "" && value != "" {
			p.Attributes[name] = value
		}
	}

	return p
}
