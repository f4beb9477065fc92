package ui

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"github.com/danhigham/tgterm/internal/domain"
)

const defaultWrap = 80

// MessageView renders messages as text blocks. Markdown bodies go through
// glamour.
type MessageView struct {
	wrap   int
	style  string
	logger *zap.Logger

	once     sync.Once
	renderer *glamour.TermRenderer
}

// NewMessageView returns a view wrapping at width columns. styled picks
// the dark glamour theme; otherwise the plain one is used.
func NewMessageView(width int, styled bool, logger *zap.Logger) *MessageView {
	if width <= 0 {
		width = defaultWrap
	}
	style := "notty"
	if styled {
		style = "dark"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageView{wrap: width - 2, style: style, logger: logger}
}

// SortOldestFirst returns a copy of msgs ordered by time, then ID.
func SortOldestFirst(msgs []domain.Message) []domain.Message {
	out := slices.Clone(msgs)
	slices.SortStableFunc(out, func(a, b domain.Message) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// History renders msgs oldest first with a separator per day.
func (v *MessageView) History(title string, msgs []domain.Message) string {
	if len(msgs) == 0 {
		return timeStyle.Render(fmt.Sprintf("No messages in %s.", title))
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(title))
	b.WriteString("\n")

	var currentDate string
	for _, msg := range SortOldestFirst(msgs) {
		msgDate := msg.Timestamp.Format("January 2, 2006")
		if msgDate != currentDate {
			sep := daySeparatorStyle.Render(fmt.Sprintf("───── %s ─────", msgDate))
			b.WriteString(sep + "\n")
			currentDate = msgDate
		}
		b.WriteString(v.Line(msg))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Line renders a single message with its time and sender.
func (v *MessageView) Line(msg domain.Message) string {
	ts := timeStyle.Render(msg.Timestamp.Format("15:04"))

	var name string
	if msg.Outgoing {
		name = outNameStyle.Render(msg.SenderLabel + ":")
	} else {
		name = inNameStyle.Render(msg.SenderLabel + ":")
	}

	text := msg.Content
	if msg.Markdown {
		text = v.renderMarkdown(text)
	}
	if strings.Contains(text, "\n") {
		return fmt.Sprintf("%s %s\n%s", ts, name, text)
	}
	return fmt.Sprintf("%s %s %s", ts, name, text)
}

func (v *MessageView) renderMarkdown(text string) string {
	v.once.Do(func() {
		r, err := glamour.NewTermRenderer(
			glamour.WithStylePath(v.style),
			glamour.WithWordWrap(max(v.wrap, 10)),
		)
		if err != nil {
			v.logger.Warn("markdown renderer unavailable", zap.Error(err))
			return
		}
		v.renderer = r
	})
	if v.renderer == nil {
		return text
	}

	// Glamour joins single newlines into one paragraph. Telegram line
	// breaks are kept by rendering plain blocks line by line; tables and
	// fenced code are rendered whole.
	blocks := strings.Split(text, "\n\n")
	for i, block := range blocks {
		if block == "" {
			continue
		}
		if isMultiLineMarkdown(block) {
			blocks[i] = v.renderBlock(block)
			continue
		}
		lines := strings.Split(block, "\n")
		for j, line := range lines {
			if line != "" {
				lines[j] = v.renderBlock(line)
			}
		}
		blocks[i] = strings.Join(lines, "\n")
	}
	return strings.Join(blocks, "\n")
}

func (v *MessageView) renderBlock(text string) string {
	r, err := v.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimLeft(strings.TrimRight(r, "\n "), "\n")
}

// isMultiLineMarkdown reports whether block is a table or fenced code.
func isMultiLineMarkdown(block string) bool {
	if !strings.Contains(block, "\n") {
		return false
	}
	trimmed := strings.TrimSpace(block)
	if strings.HasPrefix(trimmed, "```") {
		return true
	}
	for _, line := range strings.Split(trimmed, "\n") {
		if !strings.Contains(line, "|") {
			return false
		}
	}
	return true
}
