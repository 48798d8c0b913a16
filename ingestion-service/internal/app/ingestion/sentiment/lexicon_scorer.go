package sentiment

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"mlreviews/ingestion-service/internal/app/ingestion/entity"
)

const (
	// вклад одного ключевого слова в полярность
	keywordWeight = 0.3
	// границы меток на шкале [-1, 1]
	PositiveThreshold = 0.2
	NegativeThreshold = -0.2
)

// Scorer оценивает тональность текста: score в [-1, 1] и метка
type Scorer interface {
	Score(text string) (float64, entity.SentimentLabel)
}

var defaultPositive = []string{
	"excelente", "perfecto", "perfecta", "genial", "fantastico", "fantastica",
	"increible", "maravilloso", "maravillosa", "recomendado", "recomendada",
	"bueno", "buena", "buen", "buenos", "buenas", "super",
	"cumple", "cumplio", "supero", "excede", "excedio", "mejor", "mejora",
	"feliz", "contento", "contenta", "satisfecho", "satisfecha",
	"recomiendo", "recomienda", "vale la pena", "valio la pena",
	"util", "practico", "practica", "facil", "rapido", "rapida",
}

var defaultNegative = []string{
	"malo", "mala", "mal", "pesimo", "pesima", "terrible", "horrible",
	"no funciona", "no sirve", "defectuoso", "defectuosa", "roto", "rota",
	"lento", "lenta", "dificil", "complicado", "complicada", "confuso", "confusa",
	"descontento", "descontenta", "insatisfecho", "insatisfecha",
	"decepcionado", "decepcionada", "no recomiendo", "no lo recomiendo", "no la recomiendo",
	"basura", "perdida", "tiempo perdido", "dinero perdido",
}

// LexiconScorer - словарная оценка по испанским ключевым словам.
// Каждое совпадение сдвигает полярность на 0.3, результат ограничен [-1, 1].
type LexiconScorer struct {
	positive []string
	negative []string
}

// NewLexiconScorer создает оценщик со встроенным словарем
func NewLexiconScorer() *LexiconScorer {
	return NewLexiconScorerWithWords(defaultPositive, defaultNegative)
}

// NewLexiconScorerWithWords создает оценщик с собственными списками слов
func NewLexiconScorerWithWords(positive, negative []string) *LexiconScorer {
	s := &LexiconScorer{}
	for _, w := range positive {
		s.positive = append(s.positive, Fold(w))
	}
	for _, w := range negative {
		s.negative = append(s.negative, Fold(w))
	}
	return s
}

func (s *LexiconScorer) Score(text string) (float64, entity.SentimentLabel) {
	folded := Fold(text)
	if folded == "" {
		return 0, entity.SentimentNeutral
	}

	// пробелы по краям, чтобы искать только целые слова
	padded := " " + folded + " "

	polarity := 0.0
	for _, w := range s.positive {
		if strings.Contains(padded, " "+w+" ") {
			polarity += keywordWeight
		}
	}
	for _, w := range s.negative {
		if strings.Contains(padded, " "+w+" ") {
			polarity -= keywordWeight
		}
	}

	if polarity > 1 {
		polarity = 1
	}
	if polarity < -1 {
		polarity = -1
	}

	return polarity, Label(polarity)
}

// Label переводит score в метку
func Label(score float64) entity.SentimentLabel {
	switch {
	case score >= PositiveThreshold:
		return entity.SentimentPositive
	case score <= NegativeThreshold:
		return entity.SentimentNegative
	default:
		return entity.SentimentNeutral
	}
}

// Fold приводит текст к нижнему регистру без диакритики, оставляя
// только буквы и цифры, разделенные одиночными пробелами
func Fold(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, text)
	if err != nil {
		stripped = text
	}

	var b strings.Builder
	space := true
	for _, r := range strings.ToLower(stripped) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}

	return strings.TrimSpace(b.String())
}
