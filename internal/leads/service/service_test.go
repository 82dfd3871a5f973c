package service

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		region  string
		want    string
		wantErr bool
	}{
		{name: "us number with punctuation", raw: "(415) 555-2671", region: "US", want: "+14155552671"},
		{name: "already e164", raw: "+14155552671", region: "", want: "+14155552671"},
		{name: "region defaults to us", raw: "415-555-2671", region: "", want: "+14155552671"},
		{name: "dutch number with national prefix", raw: "06 12345678", region: "NL", want: "+31612345678"},
		{name: "lowercase region accepted", raw: "06 12345678", region: "nl", want: "+31612345678"},
		{name: "plus prefix wins over region hint", raw: "+31612345678", region: "US", want: "+31612345678"},
		{name: "too short", raw: "12345", region: "US", wantErr: true},
		{name: "garbage", raw: "not a phone", region: "US", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.raw, tt.region)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
