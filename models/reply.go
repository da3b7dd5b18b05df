package models

// Embed colours used by the bot.
const (
	ColorTrakt     = 0x1DB954
	ColorGrid      = 0x2F3136
	ColorWatchlist = 0xE74C3C
	ColorError     = 0xED4245
)

// EmbedField is a titled block inside an embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Embed is a transport-neutral rich message.
type Embed struct {
	Title        string
	URL          string
	Description  string
	Color        int
	Fields       []EmbedField
	ThumbnailURL string
	ImageURL     string
	Footer       string
}

// Attachment is a file sent alongside a reply.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Button is an interactive control attached to a reply.
type Button struct {
	Action  string
	Label   string
	Emoji   string
	Primary bool
}

// Reply is what a command handler hands back to the transport.
type Reply struct {
	Content    string
	Embed      *Embed
	Attachment *Attachment
	Buttons    []Button
}
