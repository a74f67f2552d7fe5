package llm

import "testing"

func TestStripThinkingTags(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"<think>reasoning</think>answer", "answer"},
		{"a<think>x</think>b<think>y</think>c", "abc"},
		{"<think>unterminated", ""},
		{"  <think>x</think>  spaced  ", "spaced"},
	}
	for _, tc := range cases {
		if got := StripThinkingTags(tc.in); got != tc.want {
			t.Errorf("StripThinkingTags(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStripCodeFence(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`{"answer":"x"}`, `{"answer":"x"}`},
		{"```json\n{\"answer\":\"x\"}\n```", `{"answer":"x"}`},
		{"```\n{\"answer\":\"x\"}\n```", `{"answer":"x"}`},
		{"```JSON\n{}\n```", "{}"},
		{"no fences at all", "no fences at all"},
	}
	for _, tc := range cases {
		if got := StripCodeFence(tc.in); got != tc.want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
