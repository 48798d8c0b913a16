package marketplace

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mlreviews/ingestion-service/internal/app/ingestion/entity"
)

var (
	// MLA123456 и MLA-123456-nombre-_JM
	productCodeRe = regexp.MustCompile(`^([A-Z]{2,4})-?(\d+)`)
	productIDRe   = regexp.MustCompile(`^([A-Z]{2,4})(\d+)$`)

	titleCaser = cases.Title(language.Spanish)
)

// RefFromID строит ссылку по ID товара вида MLA123456
func RefFromID(id string) (entity.ProductRef, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	m := productIDRe.FindStringSubmatch(id)
	if m == nil {
		return entity.ProductRef{}, fmt.Errorf("%w: %q", ErrInvalidProductRef, id)
	}
	return entity.ProductRef{ID: id, SiteID: siteFromPrefix(m[1])}, nil
}

// siteFromPrefix: сайт - первые три буквы префикса (MLAU -> MLA)
func siteFromPrefix(prefix string) string {
	if len(prefix) > 3 {
		return prefix[:3]
	}
	return prefix
}

// ParseProductURL извлекает ID товара, сайт и подсказку названия из URL.
// Сегменты пути просматриваются с конца, подходит первый, похожий на код товара.
func ParseProductURL(raw string) (entity.ProductRef, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return entity.ProductRef{}, fmt.Errorf("%w: %q", ErrInvalidProductRef, raw)
	}

	segments := pathSegments(u.Path)

	var ref entity.ProductRef
	for i := len(segments) - 1; i >= 0; i-- {
		if m := productCodeRe.FindStringSubmatch(segments[i]); m != nil {
			ref.ID = m[1] + m[2]
			ref.SiteID = siteFromPrefix(m[1])
			break
		}
	}
	if ref.ID == "" {
		return entity.ProductRef{}, fmt.Errorf("%w: no product code in %q", ErrInvalidProductRef, raw)
	}

	ref.TitleHint = titleHint(segments)
	ref.SourceURL = u.String()
	return ref, nil
}

// ParseRef принимает либо ID товара, либо URL
func ParseRef(input string) (entity.ProductRef, error) {
	input = strings.TrimSpace(input)
	if strings.Contains(input, "://") {
		return ParseProductURL(input)
	}
	return RefFromID(input)
}

func pathSegments(path string) []string {
	parts := strings.Split(path, "/")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}

// titleHint: для /nombre-del-producto/p/MLA123 берется сегмент перед "p",
// иначе последний сегмент, не являющийся кодом товара
func titleHint(segments []string) string {
	for i, seg := range segments {
		if seg == "p" && i > 0 && !productCodeRe.MatchString(segments[i-1]) {
			return humanize(segments[i-1])
		}
	}
	for i := len(segments) - 1; i >= 0; i-- {
		if !productCodeRe.MatchString(segments[i]) && segments[i] != "p" {
			return humanize(segments[i])
		}
	}
	return ""
}

func humanize(seg string) string {
	seg = strings.TrimSuffix(seg, "_JM")
	words := strings.Fields(strings.ReplaceAll(seg, "-", " "))
	return titleCaser.String(strings.Join(words, " "))
}
