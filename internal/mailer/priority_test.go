package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriority_Headers(t *testing.T) {
	t.Parallel()

	urgent := "X-Priority: 1\r\nX-MSMail-Priority: High\r\nImportance: High\r\n"
	normal := "X-Priority: 3\r\nX-MSMail-Priority: Normal\r\nImportance: Normal\r\n"

	tests := []struct {
		level int
		want  string
	}{
		{1, urgent},
		{3, normal},
		{99, normal},
		{0, normal},
		{-1, normal},
		{2, normal},
	}

	for _, tt := range tests {
		t.Run(Priority(tt.level).String(), func(t *testing.T) {
			assert.Equal(t, tt.want, Priority(tt.level).Headers())
		})
	}
}

func TestPriority_NormalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	for _, p := range []Priority{1, 3, 99, -7} {
		once := p.Normalize()
		assert.Equal(t, once, once.Normalize())
	}
	assert.Equal(t, PriorityNormal, Priority(99).Normalize())
	assert.Equal(t, PriorityUrgent, Priority(1).Normalize())
}

func TestSetPriority_StoresRawLevel(t *testing.T) {
	t.Parallel()

	b := New().SetPriority(99)

	assert.Equal(t, Priority(99), b.Priority())
	assert.Equal(t, "normal", b.Priority().String())
}
