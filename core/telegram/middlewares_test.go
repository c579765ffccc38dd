package telegram

import (
	"testing"

	coreconfig "github.com/m3rciful/newsmarket/core/config"
)

func middlewareNames(chain []Middleware) []string {
	names := make([]string, len(chain))
	for i, m := range chain {
		names[i] = m.Name
	}
	return names
}

func TestDefaultMiddlewaresOrder(t *testing.T) {
	cases := map[string]struct {
		cfg  *coreconfig.Config
		want []string
	}{
		"nil config": {nil, []string{"recover", "logger", "metrics"}},
		"no limit":   {&coreconfig.Config{}, []string{"recover", "logger", "metrics"}},
		"limited": {
			&coreconfig.Config{RateLimit: coreconfig.RateLimitConfig{IntervalMS: 500}},
			[]string{"recover", "rate_limit", "logger", "metrics"},
		},
	}
	for name, tc := range cases {
		got := middlewareNames(DefaultMiddlewares(tc.cfg, nil))
		if len(got) != len(tc.want) {
			t.Fatalf("%s: chain = %v, want %v", name, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("%s: chain = %v, want %v", name, got, tc.want)
				break
			}
		}
	}
}
