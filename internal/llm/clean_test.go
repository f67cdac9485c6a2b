package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripReasoning(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "no reasoning",
			in:   "plain answer",
			want: "plain answer",
		},
		{
			name: "leading block",
			in:   "<think>let me see</think>\nanswer",
			want: "answer",
		},
		{
			name: "multiline block",
			in:   "<think>line one\nline two</think>answer",
			want: "answer",
		},
		{
			name: "multiple blocks",
			in:   "<think>a</think>first<think>b</think> second",
			want: "first second",
		},
		{
			name: "uppercase tags",
			in:   "<THINK>loud reasoning</Think>answer",
			want: "answer",
		},
		{
			name: "unclosed tag left alone",
			in:   "<think>never closed answer",
			want: "<think>never closed answer",
		},
		{
			name: "whitespace trimmed",
			in:   "  \n answer \n ",
			want: "answer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripReasoning(tt.in))
		})
	}
}
