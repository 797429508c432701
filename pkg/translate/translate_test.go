package translate

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"medcrawl/pkg/models"
)

type stubTranslator struct {
	out string
	err error
}

func (s stubTranslator) Translate(_ context.Context, text, _, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.out, nil
}

func quietEntry() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func TestApplyOrOriginal(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, "translated", ApplyOrOriginal(ctx, stubTranslator{out: "translated"}, "original", "en", "bn", quietEntry()))

	// Failure and empty results keep the original
	assert.Equal(t, "original", ApplyOrOriginal(ctx, stubTranslator{err: errors.New("backend down")}, "original", "en", "bn", quietEntry()))
	assert.Equal(t, "original", ApplyOrOriginal(ctx, stubTranslator{out: "  "}, "original", "en", "bn", quietEntry()))

	// Nil translator and blank input are no-ops
	assert.Equal(t, "original", ApplyOrOriginal(ctx, nil, "original", "en", "bn", quietEntry()))
	assert.Equal(t, "", ApplyOrOriginal(ctx, stubTranslator{out: "x"}, "", "en", "bn", quietEntry()))
}

func TestPassthrough(t *testing.T) {
	out, err := Passthrough{}.Translate(context.Background(), "Napa", "en", "bn")
	assert.NoError(t, err)
	assert.Equal(t, "Napa", out)
}

func TestSecondaryName(t *testing.T) {
	ctx := context.Background()

	record := models.SummaryRecord{PrimaryName: "Napa"}
	SecondaryName(ctx, stubTranslator{out: "নাপা"}, &record, "en", "bn", quietEntry())
	if assert.NotNil(t, record.SecondaryName) {
		assert.Equal(t, "নাপা", *record.SecondaryName)
	}

	// Existing secondary names are preserved
	existing := models.SummaryRecord{PrimaryName: "Napa", SecondaryName: models.StrPtr("kept")}
	SecondaryName(ctx, stubTranslator{out: "ignored"}, &existing, "en", "bn", quietEntry())
	assert.Equal(t, "kept", *existing.SecondaryName)

	// Failed translation leaves the field null rather than duplicating
	failed := models.SummaryRecord{PrimaryName: "Napa"}
	SecondaryName(ctx, stubTranslator{err: errors.New("down")}, &failed, "en", "bn", quietEntry())
	assert.Nil(t, failed.SecondaryName)
}
