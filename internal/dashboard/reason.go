package dashboard

// Reason records why a refresh was requested.
type Reason string

const (
	ReasonManual          Reason = "manual"
	ReasonScheduled       Reason = "scheduled"
	ReasonTabMount        Reason = "tab-mount"
	ReasonSessionRestored Reason = "session-restored"
	ReasonConfigSave      Reason = "config-save"
	ReasonBanSave         Reason = "ban-save"
	ReasonUnbanSave       Reason = "unban-save"
)

// Forced reports whether the refresh fetches even when the view is fresh.
func (r Reason) Forced() bool {
	switch r {
	case ReasonScheduled, ReasonTabMount:
		return false
	}
	return true
}
