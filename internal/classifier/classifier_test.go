package classifier

import (
	"context"
	"testing"
)

func TestKeywordClassifierVerdicts(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "clear interest", body: "Hi, I'm interested. Can you send more details?", want: VerdictPositive},
		{name: "call request", body: "Sure, schedule a call for Thursday.", want: VerdictPositive},
		{name: "case insensitive", body: "SOUNDS GOOD, send it over", want: VerdictPositive},
		{name: "clear rejection", body: "Not interested, please remove me.", want: VerdictNegative},
		{name: "unsubscribe wording", body: "unsubscribe", want: VerdictNegative},
		{name: "negative wins over positive", body: "I was interested before, but no thanks.", want: VerdictNegative},
		{name: "out of office", body: "I am out of office until Monday.", want: VerdictNeutral},
		{name: "empty body", body: "", want: VerdictNeutral},
	}

	c := KeywordClassifier{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.ClassifyReply(context.Background(), tt.body)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}
