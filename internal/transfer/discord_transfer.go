package transfer

type DiscordCredentials struct {
	WebhookURL string `json:"webhook_url"`
}

type DiscordWebhookInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id"`
}

type DiscordExecuteRequest struct {
	Content string         `json:"content"`
	Embeds  []DiscordEmbed `json:"embeds,omitempty"`
}

type DiscordEmbed struct {
	Title string             `json:"title,omitempty"`
	Image *DiscordEmbedImage `json:"image,omitempty"`
}

type DiscordEmbedImage struct {
	URL string `json:"url"`
}

type DiscordMessage struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

type DiscordError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}
