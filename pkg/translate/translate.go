package translate

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"medcrawl/pkg/models"
)

// Translator converts text between languages. It is an external collaborator
// and assumed fallible; callers must treat failure as "keep the original".
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Passthrough returns text unchanged. Used when no translation backend is
// configured so the pipeline shape stays the same either way.
type Passthrough struct{}

// Translate implements Translator
func (Passthrough) Translate(_ context.Context, text, _, _ string) (string, error) {
	return text, nil
}

// ApplyOrOriginal translates one text, falling back to the original on any
// error or empty result. Translation failure must never abort a batch.
func ApplyOrOriginal(ctx context.Context, tr Translator, text, sourceLang, targetLang string, log *logrus.Entry) string {
	if tr == nil || strings.TrimSpace(text) == "" {
		return text
	}
	translated, err := tr.Translate(ctx, text, sourceLang, targetLang)
	if err != nil {
		log.Warnf("Translation failed, keeping original: %v", err)
		return text
	}
	if strings.TrimSpace(translated) == "" {
		return text
	}
	return translated
}

// SecondaryName fills a summary record's secondary name by translating the
// primary, when the source page didn't carry a multilingual name itself.
// Existing secondary names are never overwritten.
func SecondaryName(ctx context.Context, tr Translator, record *models.SummaryRecord, sourceLang, targetLang string, log *logrus.Entry) {
	if record.SecondaryName != nil || record.PrimaryName == "" {
		return
	}
	translated := ApplyOrOriginal(ctx, tr, record.PrimaryName, sourceLang, targetLang, log)
	if translated != record.PrimaryName {
		record.SecondaryName = models.StrPtr(translated)
	}
}
