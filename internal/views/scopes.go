package views

// Scope names a write effect and the views it may change.
type Scope string

const (
	ScopeAll            Scope = "all"
	ScopeMonitoring     Scope = "monitoring"
	ScopeIPBans         Scope = "ip-bans"
	ScopeStatus         Scope = "status"
	ScopeConfig         Scope = "config"
	ScopeTuning         Scope = "tuning"
	ScopeSecurityConfig Scope = "securityConfig"
)

// monitoring and ip-bans render resources of their own, so a shared
// security-config write leaves them alone.
var scopeTable = map[Scope][]View{
	ScopeAll:            all,
	ScopeMonitoring:     {Monitoring},
	ScopeIPBans:         {IPBans},
	ScopeStatus:         {Status},
	ScopeConfig:         {Config},
	ScopeTuning:         {Tuning},
	ScopeSecurityConfig: {Status, Config, Tuning},
}

// Resolve returns the views affected by scope. Unknown scopes resolve to every
// view.
func Resolve(scope Scope) []View {
	mapped, ok := scopeTable[scope]
	if !ok {
		mapped = all
	}
	out := make([]View, len(mapped))
	copy(out, mapped)
	return out
}

// Known reports whether scope has an explicit table entry.
func (s Scope) Known() bool {
	_, ok := scopeTable[s]
	return ok
}
