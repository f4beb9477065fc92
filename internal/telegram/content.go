package telegram

import (
	"cmp"
	"slices"
	"strings"
	"unicode/utf16"

	"github.com/gotd/td/tg"
)

// span wraps a UTF-16 range of the message text in markdown.
type span struct {
	start, end    int
	prefix, suffix string
}

type marker struct {
	pos   int
	text  string
	open  bool
	order int
}

// EntitiesToMarkdown renders a message's text and formatting entities as
// markdown. Entity offsets are UTF-16 code units.
func EntitiesToMarkdown(text string, entities []tg.MessageEntityClass) string {
	if len(entities) == 0 {
		return text
	}

	units := utf16.Encode([]rune(text))

	spans := make([]span, 0, len(entities))
	for _, e := range entities {
		s, ok := entitySpan(text, e)
		if !ok {
			continue
		}
		s.end = min(s.end, len(units))
		spans = append(spans, s)
	}
	if len(spans) == 0 {
		return text
	}

	// Outer spans first so that nested markup closes in reverse order.
	slices.SortStableFunc(spans, func(a, b span) int {
		if c := cmp.Compare(a.start, b.start); c != 0 {
			return c
		}
		return cmp.Compare(b.end-b.start, a.end-a.start)
	})

	markers := make([]marker, 0, 2*len(spans))
	for i, s := range spans {
		markers = append(markers,
			marker{pos: s.start, text: s.prefix, open: true, order: i},
			marker{pos: s.end, text: s.suffix, open: false, order: i},
		)
	}
	slices.SortStableFunc(markers, func(a, b marker) int {
		if c := cmp.Compare(a.pos, b.pos); c != 0 {
			return c
		}
		if a.open != b.open {
			if a.open {
				return 1
			}
			return -1
		}
		if a.open {
			return cmp.Compare(a.order, b.order)
		}
		return cmp.Compare(b.order, a.order)
	})

	var b strings.Builder
	next := 0
	for i := 0; i <= len(units); i++ {
		for next < len(markers) && markers[next].pos == i {
			b.WriteString(markers[next].text)
			next++
		}
		if i == len(units) {
			break
		}
		u := rune(units[i])
		if utf16.IsSurrogate(u) {
			if i+1 < len(units) {
				b.WriteRune(utf16.DecodeRune(u, rune(units[i+1])))
				i++
			}
			continue
		}
		b.WriteRune(u)
	}
	return b.String()
}

func entitySpan(text string, entity tg.MessageEntityClass) (span, bool) {
	start := entity.GetOffset()
	end := start + entity.GetLength()
	wrap := func(prefix, suffix string) (span, bool) {
		return span{start: start, end: end, prefix: prefix, suffix: suffix}, true
	}

	switch e := entity.(type) {
	case *tg.MessageEntityBold, *tg.MessageEntityMentionName, *tg.MessageEntityMention, *tg.MessageEntityHashtag:
		return wrap("**", "**")
	case *tg.MessageEntityItalic, *tg.MessageEntityUnderline:
		return wrap("*", "*")
	case *tg.MessageEntityCode, *tg.MessageEntityBotCommand:
		return wrap("`", "`")
	case *tg.MessageEntityPre:
		return wrap("```"+e.Language+"\n", "\n```")
	case *tg.MessageEntityStrike:
		return wrap("~~", "~~")
	case *tg.MessageEntitySpoiler:
		return wrap("||", "||")
	case *tg.MessageEntityBlockquote:
		return wrap("> ", "")
	case *tg.MessageEntityTextURL:
		return wrap("[", "]("+e.URL+")")
	case *tg.MessageEntityURL:
		return wrap("[", "]("+utf16Slice(text, start, end)+")")
	case *tg.MessageEntityEmail:
		return wrap("[", "](mailto:"+utf16Slice(text, start, end)+")")
	default:
		return span{}, false
	}
}

// utf16Slice returns text[start:end] measured in UTF-16 code units.
func utf16Slice(text string, start, end int) string {
	units := utf16.Encode([]rune(text))
	if start >= len(units) || start < 0 {
		return ""
	}
	end = min(end, len(units))
	return string(utf16.Decode(units[start:end]))
}

// contentSummary reduces a message to the text shown in the terminal.
// Media is summarised by kind, followed by the caption if there is one.
func contentSummary(msg *tg.Message) (string, bool) {
	text := EntitiesToMarkdown(msg.Message, msg.Entities)
	markdown := len(msg.Entities) > 0

	if msg.Media == nil {
		return text, markdown
	}
	label := mediaLabel(msg.Media)
	if label == "" {
		return text, markdown
	}
	if text == "" {
		return label, false
	}
	return label + " " + text, markdown
}

func mediaLabel(media tg.MessageMediaClass) string {
	switch m := media.(type) {
	case *tg.MessageMediaEmpty:
		return ""
	case *tg.MessageMediaWebPage:
		// Link previews decorate the text; the URL is already in it.
		return ""
	case *tg.MessageMediaPhoto:
		return "[Photo]"
	case *tg.MessageMediaDocument:
		doc, ok := m.Document.(*tg.Document)
		if !ok {
			return "[Document]"
		}
		return documentLabel(doc)
	case *tg.MessageMediaGeo, *tg.MessageMediaGeoLive, *tg.MessageMediaVenue:
		return "[Location]"
	case *tg.MessageMediaContact:
		return "[Contact]"
	case *tg.MessageMediaPoll:
		return "[Poll]"
	default:
		return "[Media]"
	}
}

func documentLabel(doc *tg.Document) string {
	label := "[Document]"
	for _, attr := range doc.Attributes {
		switch a := attr.(type) {
		case *tg.DocumentAttributeSticker:
			return "[Sticker]"
		case *tg.DocumentAttributeAudio:
			if a.Voice {
				return "[Voice]"
			}
			label = "[Audio]"
		case *tg.DocumentAttributeVideo:
			if a.RoundMessage {
				return "[Video message]"
			}
			label = "[Video]"
		case *tg.DocumentAttributeAnimated:
			return "[GIF]"
		}
	}
	return label
}
