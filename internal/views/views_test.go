package views

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want View
	}{
		{"ip-bans", IPBans},
		{"IP-BANS", IPBans},
		{"  tuning ", Tuning},
		{"unknown-tab", Monitoring},
		{"", Monitoring},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolve_ReturnsCopy(t *testing.T) {
	got := Resolve(ScopeAll)
	got[0] = View("mutated")
	if Resolve(ScopeAll)[0] != Monitoring {
		t.Fatal("Resolve exposed its backing table")
	}
}

func TestScopeKnown(t *testing.T) {
	if !ScopeSecurityConfig.Known() {
		t.Fatal("securityConfig should be known")
	}
	if Scope("bogus").Known() {
		t.Fatal("bogus scope should be unknown")
	}
}
