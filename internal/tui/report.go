package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vvka-141/roachtx/internal/bank"
)

// Summary is what `roachtx bank run` reports when it finishes.
type Summary struct {
	Driver string
	Stats  bank.Stats
	Err    error
}

type row struct {
	label string
	value string
}

func (s Summary) rows() []row {
	st := s.Stats
	retryRatio := 0.0
	if st.Attempts > 0 {
		retryRatio = float64(st.Retries) / float64(st.Attempts)
	}
	return []row{
		{"Run", st.RunID.String()},
		{"Driver", s.Driver},
		{"Transfers", fmt.Sprintf("%d", st.Transfers)},
		{"Insufficient funds", fmt.Sprintf("%d", st.Insufficient)},
		{"Ambiguous commits", fmt.Sprintf("%d", st.Ambiguous)},
		{"Attempts", fmt.Sprintf("%d", st.Attempts)},
		{"Retries", fmt.Sprintf("%d (%.1f%% of attempts)", st.Retries, retryRatio*100)},
		{"Elapsed", st.Elapsed.Round(time.Millisecond).String()},
		{"Throughput", fmt.Sprintf("%.1f transfers/s", st.Rate())},
		{"Verifications", fmt.Sprintf("%d", st.Verifications)},
		{"Total balance", fmt.Sprintf("%d across %d accounts", st.Totals.Balance, st.Totals.Accounts)},
	}
}

func (s Summary) verdict() string {
	if s.Err != nil {
		return SymbolCross + " " + s.Err.Error()
	}
	if s.Stats.Ambiguous > 0 {
		return SymbolWarn + " The bank is in good order; some commits had unknown outcomes."
	}
	return SymbolCheck + " The bank is in good order."
}

// RenderSummary formats s as aligned plain text, or as a bordered panel
// when styled is true.
func RenderSummary(s Summary, styled bool) string {
	rows := s.rows()
	width := 0
	for _, r := range rows {
		width = max(width, len(r.label))
	}

	var b strings.Builder
	for _, r := range rows {
		label := fmt.Sprintf("%-*s", width, r.label)
		if styled {
			fmt.Fprintf(&b, "%s  %s\n", LabelStyle.Render(label), ValueStyle.Render(r.value))
		} else {
			fmt.Fprintf(&b, "%s  %s\n", label, r.value)
		}
	}

	verdict := s.verdict()
	if !styled {
		return "Bank run summary\n" + b.String() + verdict + "\n"
	}

	verdictStyle := SuccessStyle
	switch {
	case s.Err != nil:
		verdictStyle = ErrorStyle
	case s.Stats.Ambiguous > 0:
		verdictStyle = WarningStyle
	}
	body := lipgloss.JoinVertical(lipgloss.Left,
		TitleStyle.Render("Bank run summary"),
		strings.TrimSuffix(b.String(), "\n"),
		verdictStyle.Render(verdict),
	)
	return BoxStyle.Render(body) + "\n"
}

// RenderTotals formats the result of `bank init` and `bank verify`.
func RenderTotals(t bank.Totals, err error, styled bool) string {
	line := fmt.Sprintf("%d accounts, total balance %d", t.Accounts, t.Balance)
	if err != nil {
		msg := SymbolCross + " " + err.Error()
		if styled {
			msg = ErrorStyle.Render(msg)
		}
		return msg + "\n"
	}
	msg := SymbolCheck + " The bank is in good order: " + line
	if styled {
		msg = SuccessStyle.Render(msg)
	}
	return msg + "\n"
}
