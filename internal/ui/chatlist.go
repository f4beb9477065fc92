package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/danhigham/tgterm/internal/domain"
)

// titleWidth is the widest a chat title may render in the list.
const titleWidth = 40

// ChatList renders chats numbered by their ordinal, starting at 1.
func ChatList(chats []domain.Chat) string {
	if len(chats) == 0 {
		return timeStyle.Render("No chats yet.")
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Chats (%d)", len(chats))))
	b.WriteString("\n")
	for i, c := range chats {
		title := runewidth.Truncate(c.Title, titleWidth, "…")
		fmt.Fprintf(&b, "%s %s %s", ordinalStyle.Render(strconv.Itoa(i+1)+"."), kindIcon(c.Kind), title)
		if c.UnreadCount > 0 {
			b.WriteString(" " + unreadStyle.Render(fmt.Sprintf("(%d)", c.UnreadCount)))
		}
		b.WriteString("\n")
	}
	b.WriteString(timeStyle.Render("Use /open <number> to open a chat."))
	return b.String()
}

func kindIcon(k domain.ChatKind) string {
	switch k {
	case domain.ChatGroup:
		return "👥"
	case domain.ChatChannel:
		return "📢"
	default:
		return "👤"
	}
}
