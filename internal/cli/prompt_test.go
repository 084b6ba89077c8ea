package cli

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uomi-testnet/uomi-bot/internal/core/domain"
)

func TestParseInt(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		min     int
		max     int
		want    int
		wantErr string
	}{
		{name: "in range", answer: "3", min: 1, max: 9, want: 3},
		{name: "unbounded", answer: "250", min: 1, max: 0, want: 250},
		{name: "not a number", answer: "three", min: 1, max: 9, wantErr: "please enter a number"},
		{name: "empty", answer: "", min: 1, max: 9, wantErr: "please enter a number"},
		{name: "below min", answer: "0", min: 1, max: 0, wantErr: "at least 1"},
		{name: "above max", answer: "10", min: 1, max: 9, wantErr: "between 1 and 9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInt(tt.answer, tt.min, tt.max)
			if tt.wantErr != "" {
				var uie *domain.UserInputError
				require.ErrorAs(t, err, &uie)
				assert.Contains(t, uie.Reason, tt.wantErr)
				assert.Equal(t, tt.answer, uie.Input)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrompterIntReprompts(t *testing.T) {
	out := &bytes.Buffer{}
	p := NewPrompter(strings.NewReader("x\n 5 \n"), out)

	n, err := p.Int("count? ", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, 2, strings.Count(out.String(), "count? "))
}

func TestPrompterAcceptsLastLineWithoutNewline(t *testing.T) {
	p := NewPrompter(strings.NewReader("4"), io.Discard)

	n, err := p.Int("count? ", 1, 9)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestPrompterReturnsEOF(t *testing.T) {
	p := NewPrompter(strings.NewReader("nope"), io.Discard)

	_, err := p.Int("count? ", 1, 9)
	assert.ErrorIs(t, err, io.EOF)

	_, err = NewPrompter(strings.NewReader(""), io.Discard).Int("count? ", 1, 9)
	assert.ErrorIs(t, err, io.EOF)
}

func TestPrompterPassesOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	p := NewPrompter(strings.NewReader("anything\n"), io.Discard)

	err := p.Ask("? ", func(string) error { return boom })
	assert.ErrorIs(t, err, boom)
}
