package rating

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	valid := Outcome{GroupID: "C1", ParticipantA: "alice", ParticipantB: "bob", ScoreA: 6, ScoreB: 0, IdempotencyKey: "C1_1.0"}
	assert.NoError(t, Validate(valid))

	tie := valid
	tie.ScoreA, tie.ScoreB = 0, 0
	assert.NoError(t, Validate(tie))

	maxKey := valid
	maxKey.IdempotencyKey = strings.Repeat("k", MaxIdempotencyKeyLength)
	assert.NoError(t, Validate(maxKey))

	tests := []struct {
		name    string
		mutate  func(o *Outcome)
		message string
	}{
		{"blank group", func(o *Outcome) { o.GroupID = "   " }, "GroupID is required"},
		{"empty participant", func(o *Outcome) { o.ParticipantA = "" }, "ParticipantA is required"},
		{"self match", func(o *Outcome) { o.ParticipantB = "alice" }, "cannot play against themselves"},
		{"negative score", func(o *Outcome) { o.ScoreB = -2 }, "ScoreB must not be negative"},
		{"missing key", func(o *Outcome) { o.IdempotencyKey = "" }, "IdempotencyKey is required"},
		{"key too long", func(o *Outcome) { o.IdempotencyKey = strings.Repeat("k", MaxIdempotencyKeyLength+1) }, "longer than 255"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := valid
			tt.mutate(&o)
			err := Validate(o)
			assert.ErrorIs(t, err, ErrValidation)
			assert.ErrorContains(t, err, tt.message)
		})
	}
}
