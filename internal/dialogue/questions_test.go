package dialogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/skinconsult/internal/domain"
)

func TestQuestionTableIsConsistent(t *testing.T) {
	seen := make(map[domain.Step]bool)
	for _, q := range Questions {
		assert.True(t, q.Step.IsQuestion(), q.Step)
		assert.False(t, seen[q.Step], "duplicate step %s", q.Step)
		seen[q.Step] = true
		assert.NotEmpty(t, q.Choices)
		assert.True(t, q.Asks.MatchString(q.Text), "question %s does not match its own pattern", q.Step)
		assert.Same(t, q, AskedQuestion(q.Text))
	}
	assert.Nil(t, ChoicesFor(domain.StepCompleted))
	assert.Equal(t, []string{"Mista", "Secca", "Grassa", "Normale", "Asfittica"}, ChoicesFor(domain.StepAwaitingSkinType))
	assert.Equal(t, []string{"16-25", "26-35", "36-45", "46-55", "56+"}, ChoicesFor(domain.StepAwaitingAge))
	assert.Len(t, ChoicesFor(domain.StepAwaitingProblem), 6)
	assert.Len(t, ChoicesFor(domain.StepAwaitingAdviceType), 9)
}

func TestChoicesForReturnsCopy(t *testing.T) {
	c := ChoicesFor(domain.StepAwaitingSkinType)
	c[0] = "changed"
	assert.Equal(t, "Mista", ChoicesFor(domain.StepAwaitingSkinType)[0])
}

func TestParseAnswers(t *testing.T) {
	tests := []struct {
		step  domain.Step
		in    string
		want  string
		valid bool
	}{
		{domain.StepAwaitingSkinType, "mista", "Mista", true},
		{domain.StepAwaitingSkinType, "direi abbastanza secca", "Secca", true},
		{domain.StepAwaitingSkinType, "Normale", "Normale", true},
		{domain.StepAwaitingSkinType, "non lo so", "", false},
		{domain.StepAwaitingAge, "26-35", "26-35", true},
		{domain.StepAwaitingAge, "56+", "56+", true},
		{domain.StepAwaitingAge, "ho 2 figli e 41 anni", "36-45", true},
		{domain.StepAwaitingAge, "giovane", "", false},
		{domain.StepAwaitingAge, "36 - 45", "36-45", true},
		{domain.StepAwaitingAge, "16-35", "", false},
		{domain.StepAwaitingAge, "tra 30–40", "", false},
		{domain.StepAwaitingProblem, "Rosacea/Couperose", "Rosacea/Couperose", true},
		{domain.StepAwaitingProblem, "ho delle macchie sulle guance", "Macchie/Discromie", true},
		{domain.StepAwaitingProblem, "occhi gonfi al mattino", "occhi gonfi al mattino", true},
		{domain.StepAwaitingProblem, "?", "", false},
		{domain.StepAwaitingAdviceType, "Routine completa", AdviceCompleteRoutine, true},
		{domain.StepAwaitingAdviceType, "vorrei una routine", AdviceCompleteRoutine, true},
		{domain.StepAwaitingAdviceType, "un buon siero", "Siero", true},
		{domain.StepAwaitingAdviceType, "contorno occhi", "Contorno occhi", true},
		{domain.StepAwaitingAdviceType, "boh", "", false},
		{domain.StepAwaitingAdditionalInfo, additionalNo, AdditionalInfoNone, true},
		{domain.StepAwaitingAdditionalInfo, "niente, grazie", AdditionalInfoNone, true},
		{domain.StepAwaitingAdditionalInfo, additionalYes, "", false},
		{domain.StepAwaitingAdditionalInfo, "uso già un retinolo", "uso già un retinolo", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.step)+"/"+tt.in, func(t *testing.T) {
			q := QuestionFor(tt.step)
			require.NotNil(t, q)
			got, ok := q.Parse(tt.in)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFillIsFirstWriteWins(t *testing.T) {
	var a domain.Answers
	q := QuestionFor(domain.StepAwaitingSkinType)
	assert.True(t, q.Fill(&a, "Grassa"))
	assert.False(t, q.Fill(&a, "Secca"))
	assert.False(t, q.Fill(&a, ""))
	assert.Equal(t, "Grassa", a.SkinType)
}

func TestAgeBand(t *testing.T) {
	assert.Equal(t, "16-25", AgeBand(14))
	assert.Equal(t, "26-35", AgeBand(35))
	assert.Equal(t, "46-55", AgeBand(46))
	assert.Equal(t, "56+", AgeBand(70))
	assert.Empty(t, AgeBand(0))
}

func TestAdviceCategory(t *testing.T) {
	assert.Equal(t, "serum", AdviceCategory("Siero"))
	assert.Equal(t, "eye-care", AdviceCategory("Contorno occhi"))
	assert.Empty(t, AdviceCategory(AdviceCompleteRoutine))
}
