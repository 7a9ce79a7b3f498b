package markdown

// Taken from https://core.telegram.org/bots/api#markdownv2-style.
const mdV2SpecialChars = `._[](){}#|!+-=*~>` + "`" + `\`

// EscapeV2 escapes input for Telegram's MarkdownV2 parse mode.
func EscapeV2(input string) string {
	return mdV2Escaper.escape(input)
}
