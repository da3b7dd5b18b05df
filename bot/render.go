package bot

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"traktfm/handlers"
	"traktfm/models"
)

const customIDPrefix = "wl"

// customID encodes a view button as wl:<viewID>:<action>.
func customID(viewID, action string) string {
	return fmt.Sprintf("%s:%s:%s", customIDPrefix, viewID, action)
}

// parseCustomID splits a button id produced by customID.
func parseCustomID(id string) (viewID string, action handlers.ViewAction, err error) {
	parts := strings.Split(id, ":")
	if len(parts) != 3 || parts[0] != customIDPrefix || parts[1] == "" {
		return "", "", fmt.Errorf("malformed custom id %q", id)
	}
	action, err = handlers.ParseViewAction(parts[2])
	if err != nil {
		return "", "", err
	}
	return parts[1], action, nil
}

func toEmbed(e *models.Embed) *discordgo.MessageEmbed {
	if e == nil {
		return nil
	}
	out := &discordgo.MessageEmbed{
		Title:       e.Title,
		URL:         e.URL,
		Description: e.Description,
		Color:       e.Color,
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if e.ThumbnailURL != "" {
		out.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.ThumbnailURL}
	}
	if e.ImageURL != "" {
		out.Image = &discordgo.MessageEmbedImage{URL: e.ImageURL}
	}
	if e.Footer != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	return out
}

func toEmbeds(e *models.Embed) []*discordgo.MessageEmbed {
	if e == nil {
		return []*discordgo.MessageEmbed{}
	}
	return []*discordgo.MessageEmbed{toEmbed(e)}
}

func toFiles(a *models.Attachment) []*discordgo.File {
	if a == nil {
		return nil
	}
	return []*discordgo.File{{
		Name:        a.Name,
		ContentType: a.ContentType,
		Reader:      bytes.NewReader(a.Data),
	}}
}

// toComponents renders buttons as a single action row bound to viewID.
func toComponents(viewID string, buttons []models.Button) []discordgo.MessageComponent {
	if len(buttons) == 0 || viewID == "" {
		return []discordgo.MessageComponent{}
	}
	row := discordgo.ActionsRow{}
	for _, b := range buttons {
		style := discordgo.SecondaryButton
		if b.Primary {
			style = discordgo.PrimaryButton
		}
		btn := discordgo.Button{
			Label:    b.Label,
			Style:    style,
			CustomID: customID(viewID, b.Action),
		}
		if b.Emoji != "" {
			btn.Emoji = &discordgo.ComponentEmoji{Name: b.Emoji}
		}
		row.Components = append(row.Components, btn)
	}
	return []discordgo.MessageComponent{row}
}

func toMessageSend(reply models.Reply, viewID string) *discordgo.MessageSend {
	msg := &discordgo.MessageSend{
		Content: reply.Content,
		Files:   toFiles(reply.Attachment),
	}
	if reply.Embed != nil {
		msg.Embeds = toEmbeds(reply.Embed)
	}
	if components := toComponents(viewID, reply.Buttons); len(components) > 0 {
		msg.Components = components
	}
	return msg
}

// toWebhookEdit replaces the whole message: embeds, buttons and attachments.
func toWebhookEdit(reply models.Reply, viewID string) *discordgo.WebhookEdit {
	content := reply.Content
	embeds := toEmbeds(reply.Embed)
	components := toComponents(viewID, reply.Buttons)
	attachments := []*discordgo.MessageAttachment{}
	return &discordgo.WebhookEdit{
		Content:     &content,
		Embeds:      &embeds,
		Components:  &components,
		Files:       toFiles(reply.Attachment),
		Attachments: &attachments,
	}
}
