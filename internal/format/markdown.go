// Package format converts the small markdown subset used in bot replies and
// reminder messages into Telegram message entities.
package format

import (
	"regexp"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ParseResult contains plain text and message entities
type ParseResult struct {
	Text     string
	Entities []tgbotapi.MessageEntity
}

var (
	headerRe = regexp.MustCompile(`(?m)^#{1,6}\s+(.+?)$`)
	boldRe   = regexp.MustCompile(`\*\*(.+?)\*\*|__(.+?)__`)
	codeRe   = regexp.MustCompile("`([^`]+?)`")
	italicRe = map[string]*regexp.Regexp{
		"*": regexp.MustCompile(`\*([^*\s][^*]*?)\*`),
		"_": regexp.MustCompile(`_([^_\s][^_]*?)_`),
	}
)

// UTF16Len returns the length of s in UTF-16 code units, the unit Telegram
// uses for entity offsets and lengths.
func UTF16Len(s string) int {
	length := 0
	for _, b := range []byte(s) {
		if (b & 0xc0) != 0x80 {
			if b >= 0xf0 {
				length += 2
			} else {
				length++
			}
		}
	}
	return length
}

// ParseMarkdown strips markers and returns the matching entities:
// **bold** / __bold__, `code`, *italic* / _italic_, and "# Header" lines,
// which become bold.
func ParseMarkdown(text string) ParseResult {
	p := &parser{text: headerRe.ReplaceAllString(text, "**$1**")}

	p.extract(boldRe, "bold")
	p.extract(codeRe, "code")
	p.extract(italicRe["*"], "italic")
	p.extract(italicRe["_"], "italic")

	sort.SliceStable(p.entities, func(i, j int) bool {
		return p.entities[i].Offset < p.entities[j].Offset
	})

	return ParseResult{
		Text:     strings.TrimRight(p.text, " \n"),
		Entities: p.entities,
	}
}

type parser struct {
	text     string
	entities []tgbotapi.MessageEntity
}

// extract replaces each match of re with its first non-empty group and
// records an entity of the given type over it. Matching resumes after the
// replaced text, so markers inside an entity are left alone.
func (p *parser) extract(re *regexp.Regexp, kind string) {
	from := 0
	for from < len(p.text) {
		loc := re.FindStringSubmatchIndex(p.text[from:])
		if loc == nil {
			return
		}

		start, end := from+loc[0], from+loc[1]
		innerStart, innerEnd := start, start
		for g := 2; g+1 < len(loc); g += 2 {
			if loc[g] != -1 {
				innerStart, innerEnd = from+loc[g], from+loc[g+1]
				break
			}
		}
		inner := p.text[innerStart:innerEnd]

		offset := UTF16Len(p.text[:start])
		removed := UTF16Len(p.text[start:innerStart]) + UTF16Len(p.text[innerEnd:end])
		p.shift(offset, offset+UTF16Len(p.text[start:end]), removed)

		p.entities = append(p.entities, tgbotapi.MessageEntity{
			Type:   kind,
			Offset: offset,
			Length: UTF16Len(inner),
		})
		p.text = p.text[:start] + inner + p.text[end:]
		from = start + len(inner)
	}
}

// shift moves entities recorded earlier when the markers of the match at
// [start, end) are removed.
func (p *parser) shift(start, end, removed int) {
	for i := range p.entities {
		e := &p.entities[i]
		switch {
		case e.Offset >= end:
			e.Offset -= removed
		case e.Offset <= start && e.Offset+e.Length >= end:
			e.Length -= removed
		}
	}
}

// Message builds a Telegram message from markdown.
func Message(chatID int64, markdown string) tgbotapi.MessageConfig {
	parsed := ParseMarkdown(markdown)
	msg := tgbotapi.NewMessage(chatID, parsed.Text)
	msg.Entities = parsed.Entities
	return msg
}

// Edit builds an edit of an existing message from markdown.
func Edit(chatID int64, messageID int, markdown string) tgbotapi.EditMessageTextConfig {
	parsed := ParseMarkdown(markdown)
	edit := tgbotapi.NewEditMessageText(chatID, messageID, parsed.Text)
	edit.Entities = parsed.Entities
	return edit
}
