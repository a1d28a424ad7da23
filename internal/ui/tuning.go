package ui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/bulwark/internal/draft"
	"github.com/five82/bulwark/internal/sections"
)

// tuningField is one editable row of the tuning form. Text rows parse the
// editor input with apply; toggle rows flip in place and leave apply nil.
type tuningField struct {
	label   string
	section draft.Section
	value   func(sections.Section) string
	apply   func(sections.Section, string) (sections.Section, error)
	toggle  func(sections.Section) sections.Section
}

var errWholeNumber = errors.New("must be a whole number")

// sectionKey returns the key of section type T.
func sectionKey[T sections.Section]() draft.Section {
	var zero T
	return zero.Key()
}

func intField[T sections.Section](label string, field func(*T) *int) tuningField {
	return tuningField{
		label:   label,
		section: sectionKey[T](),
		value: func(s sections.Section) string {
			v := s.(T)
			return strconv.Itoa(*field(&v))
		},
		apply: func(s sections.Section, raw string) (sections.Section, error) {
			n, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return nil, errWholeNumber
			}
			v := s.(T)
			*field(&v) = n
			return v, nil
		},
	}
}

// durationField edits a length in seconds. Input is whole seconds or a Go
// duration such as 6h.
func durationField[T sections.Section](label string, field func(*T) *int) tuningField {
	f := intField(label, field)
	f.value = func(s sections.Section) string {
		v := s.(T)
		return formatSeconds(*field(&v))
	}
	apply := f.apply
	f.apply = func(s sections.Section, raw string) (sections.Section, error) {
		raw = strings.TrimSpace(raw)
		if _, err := strconv.Atoi(raw); err == nil {
			return apply(s, raw)
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d%time.Second != 0 {
			return nil, errors.New("must be whole seconds or a duration like 6h")
		}
		return apply(s, strconv.Itoa(int(d/time.Second)))
	}
	return f
}

func toggleField[T sections.Section](label string, field func(*T) *bool) tuningField {
	return tuningField{
		label:   label,
		section: sectionKey[T](),
		value: func(s sections.Section) string {
			v := s.(T)
			return onOff(*field(&v))
		},
		toggle: func(s sections.Section) sections.Section {
			v := s.(T)
			flag := field(&v)
			*flag = !*flag
			return v
		},
	}
}

// listField edits a list on one line; entries are typed comma separated and
// stored with join.
func listField[T sections.Section](label string, field func(*T) *string, parse func(string) ([]string, error), join string) tuningField {
	return tuningField{
		label:   label,
		section: sectionKey[T](),
		value: func(s sections.Section) string {
			v := s.(T)
			return strings.Join(sections.SplitList(*field(&v)), ", ")
		},
		apply: func(s sections.Section, raw string) (sections.Section, error) {
			entries, err := parse(raw)
			if err != nil {
				return nil, err
			}
			v := s.(T)
			*field(&v) = strings.Join(entries, join)
			return v, nil
		},
	}
}

func parseEntries(raw string) ([]string, error) {
	return sections.SplitList(raw), nil
}

func pathList(label string, field func(*sections.Honeypot) *string) tuningField {
	return listField(label, field, parseEntries, "\n")
}

func allowList(label string, field func(*sections.Allowlists) *string) tuningField {
	return listField(label, field, parseEntries, "\n")
}

func geoTier(label string, field func(*sections.Geo) *string) tuningField {
	return listField(label, field, sections.ParseCountryCodes, ",")
}

var tuningFields = []tuningField{
	toggleField("Maze", func(m *sections.Maze) *bool { return &m.Enabled }),
	toggleField("Maze auto-ban", func(m *sections.Maze) *bool { return &m.AutoBan }),
	intField("Maze auto-ban threshold", func(m *sections.Maze) *int { return &m.Threshold }),

	intField("Rate limit (req/min)", func(r *sections.RateLimit) *int { return &r.Value }),
	toggleField("JS verification", func(j *sections.JSRequired) *bool { return &j.Enforced }),

	durationField("Ban: maze threshold", func(b *sections.BanDurations) *int { return &b.Honeypot }),
	durationField("Ban: rate limit", func(b *sections.BanDurations) *int { return &b.RateLimit }),
	durationField("Ban: browser automation", func(b *sections.BanDurations) *int { return &b.Browser }),
	durationField("Ban: CDP automation", func(b *sections.BanDurations) *int { return &b.CDP }),
	durationField("Ban: admin manual", func(b *sections.BanDurations) *int { return &b.Admin }),

	toggleField("Robots.txt", func(r *sections.Robots) *bool { return &r.Enabled }),
	intField("Robots crawl delay (s)", func(r *sections.Robots) *int { return &r.CrawlDelay }),
	toggleField("AI: block training bots", func(a *sections.AIPolicy) *bool { return &a.BlockTraining }),
	toggleField("AI: block search bots", func(a *sections.AIPolicy) *bool { return &a.BlockSearch }),
	toggleField("AI: allow search engines", func(a *sections.AIPolicy) *bool { return &a.AllowSearchEngines }),

	toggleField("CDP detection", func(c *sections.CDP) *bool { return &c.Enabled }),
	toggleField("CDP auto-ban", func(c *sections.CDP) *bool { return &c.AutoBan }),
	{
		label:   "CDP detection threshold",
		section: sections.KeyCDP,
		value: func(s sections.Section) string {
			return strconv.FormatFloat(s.(sections.CDP).Threshold, 'f', -1, 64)
		},
		apply: func(s sections.Section, raw string) (sections.Section, error) {
			f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, errors.New("must be a number")
			}
			cdp := s.(sections.CDP)
			cdp.Threshold = f
			return cdp, nil
		},
	},

	toggleField("Proof of work", func(p *sections.PoW) *bool { return &p.Enabled }),
	intField("PoW difficulty", func(p *sections.PoW) *int { return &p.Difficulty }),
	intField("PoW seed TTL (s)", func(p *sections.PoW) *int { return &p.TTL }),

	toggleField("Challenge puzzle", func(c *sections.ChallengePuzzle) *bool { return &c.Enabled }),
	intField("Challenge transforms", func(c *sections.ChallengePuzzle) *int { return &c.TransformCount }),

	intField("Botness: challenge at", func(b *sections.Botness) *int { return &b.ChallengeThreshold }),
	intField("Botness: maze at", func(b *sections.Botness) *int { return &b.MazeThreshold }),
	intField("Weight: JS required", func(b *sections.Botness) *int { return &b.WeightJSRequired }),
	intField("Weight: geo risk", func(b *sections.Botness) *int { return &b.WeightGeoRisk }),
	intField("Weight: rate 50%", func(b *sections.Botness) *int { return &b.WeightRateMedium }),
	intField("Weight: rate 80%", func(b *sections.Botness) *int { return &b.WeightRateHigh }),

	toggleField("Honeypot", func(h *sections.Honeypot) *bool { return &h.Enabled }),
	pathList("Honeypot paths", func(h *sections.Honeypot) *string { return &h.Values }),

	allowList("Allowlist: networks", func(a *sections.Allowlists) *string { return &a.Network }),
	allowList("Allowlist: paths", func(a *sections.Allowlists) *string { return &a.Path }),

	geoTier("Geo: risk", func(g *sections.Geo) *string { return &g.Risk }),
	geoTier("Geo: allow", func(g *sections.Geo) *string { return &g.Allow }),
	geoTier("Geo: challenge", func(g *sections.Geo) *string { return &g.Challenge }),
	geoTier("Geo: maze", func(g *sections.Geo) *string { return &g.Maze }),
	geoTier("Geo: block", func(g *sections.Geo) *string { return &g.Block }),

	{
		label:   "Edge integration mode",
		section: sections.KeyEdgeMode,
		value: func(s sections.Section) string {
			return s.(sections.EdgeMode).Mode
		},
		apply: func(_ sections.Section, raw string) (sections.Section, error) {
			return sections.EdgeMode{Mode: strings.ToLower(strings.TrimSpace(raw))}, nil
		},
	},
}

type tuningState struct {
	selected int
	editing  bool
	input    textinput.Model
}

func newTuningState() tuningState {
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 512
	return tuningState{input: input}
}

// draftOf returns the section's current draft, falling back to its default
// before any config has loaded.
func (m Model) draftOf(key draft.Section) sections.Section {
	if s := m.console.Draft(key); s != nil {
		return s
	}
	return sections.Default(key)
}

func (m Model) selectedField() tuningField {
	return tuningFields[m.tuning.selected]
}

func (m Model) handleTuningKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	field := m.selectedField()
	switch {
	case key.Matches(msg, m.keys.Down):
		if m.tuning.selected < len(tuningFields)-1 {
			m.tuning.selected++
		}
	case key.Matches(msg, m.keys.Up):
		if m.tuning.selected > 0 {
			m.tuning.selected--
		}
	case field.toggle != nil && (key.Matches(msg, m.keys.Toggle) || key.Matches(msg, m.keys.Edit)):
		m.console.Edit(field.toggle(m.draftOf(field.section)))
	case key.Matches(msg, m.keys.Edit):
		m.tuning.editing = true
		m.tuning.input.SetValue(field.value(m.draftOf(field.section)))
		m.tuning.input.CursorEnd()
		return m, m.tuning.input.Focus()
	case key.Matches(msg, m.keys.Discard):
		m.console.Discard(field.section)
		m.setNotice(fmt.Sprintf("Discarded %s edits", field.section), false)
	case key.Matches(msg, m.keys.Save):
		if reason := m.saveBlocked(field.section); reason != "" {
			m.setNotice(reason, true)
			return m, nil
		}
		return m, saveCmd(m.ctx, m.console, field.section)
	}
	return m, nil
}

// saveBlocked explains why the section cannot be saved, or returns "".
func (m Model) saveBlocked(key draft.Section) string {
	if m.console.CanSave(key) {
		return ""
	}
	switch {
	case m.state.Saving[key]:
		return fmt.Sprintf("%s is already saving", key)
	case !m.state.Authenticated:
		return signInHint
	case !m.state.Dirty[key]:
		return fmt.Sprintf("%s has no changes", key)
	}
	if err := m.draftOf(key).Validate(); err != nil {
		return err.Error()
	}
	return fmt.Sprintf("%s cannot be saved right now", key)
}

func (m Model) handleTuningInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.tuning.editing = false
		m.tuning.input.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		field := m.selectedField()
		next, err := field.apply(m.draftOf(field.section), m.tuning.input.Value())
		if err != nil {
			m.setNotice(fmt.Sprintf("%s %s", field.label, err), true)
			return m, nil
		}
		m.tuning.editing = false
		m.tuning.input.Blur()
		m.console.Edit(next)
		return m, nil
	}
	var cmd tea.Cmd
	m.tuning.input, cmd = m.tuning.input.Update(msg)
	return m, cmd
}

// tuningWindow returns the rows [start, end) that fit the terminal, keeping
// the selection in view.
func (m Model) tuningWindow() (int, int) {
	n := len(tuningFields)
	rows := m.height - 9
	if m.height == 0 || rows >= n {
		return 0, n
	}
	rows = max(rows, 5)
	start := min(max(m.tuning.selected-rows/2, 0), n-rows)
	return start, start + rows
}

func (m Model) renderTuning() string {
	styles := m.theme.Styles()

	var b strings.Builder
	start, end := m.tuningWindow()
	if start > 0 {
		b.WriteString(styles.FaintText.Render(fmt.Sprintf("  ↑ %d more", start)) + "\n")
	}
	for i := start; i < end; i++ {
		field := tuningFields[i]
		current := m.draftOf(field.section)
		first := i == 0 || tuningFields[i-1].section != field.section

		cursor := "  "
		if i == m.tuning.selected {
			cursor = styles.AccentText.Render("▸ ")
		}
		b.WriteString(cursor)
		b.WriteString(styles.MutedText.Render(padRight(field.label, 26)))

		if m.tuning.editing && i == m.tuning.selected {
			b.WriteString(m.tuning.input.View())
		} else {
			b.WriteString(styles.Text.Render(padRight(truncate(field.value(current), 32), 14)))
		}

		// Section-wide markers sit on the section's first row.
		if first {
			switch {
			case m.state.Saving[field.section]:
				b.WriteString(" " + m.spinner.View() + styles.StatusStyle(statusSaving).Render("saving"))
			case m.state.Dirty[field.section]:
				b.WriteString(" " + styles.StatusStyle(statusDirty).Render("modified"))
			}
			if err := current.Validate(); err != nil && m.state.Dirty[field.section] {
				b.WriteString(" " + styles.DangerText.Render(validationReason(err)))
			}
			if msg := m.state.SaveErrors[field.section]; msg != "" {
				b.WriteString(" " + styles.DangerText.Render("save failed: "+msg))
			}
		}
		b.WriteString("\n")
	}
	if end < len(tuningFields) {
		b.WriteString(styles.FaintText.Render(fmt.Sprintf("  ↓ %d more", len(tuningFields)-end)) + "\n")
	}

	b.WriteString("\n")
	field := m.selectedField()
	hint := "enter edit · x discard"
	if field.toggle != nil {
		hint = "space toggle · x discard"
	}
	if m.console.CanSave(field.section) {
		hint += " · s save " + string(field.section)
	}
	b.WriteString(styles.FaintText.Render(hint))
	return b.String()
}

// validationReason prefers the bare reason of a field validation error.
func validationReason(err error) string {
	var verr *sections.ValidationError
	if errors.As(err, &verr) && verr.Reason != "" {
		return verr.Reason
	}
	if verr != nil && verr.Err != nil {
		return verr.Err.Error()
	}
	return err.Error()
}
