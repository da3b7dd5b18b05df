package models

import "fmt"

// UserLink maps a Discord user id to a Trakt username.
type UserLink struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// ProfileURL returns the public Trakt profile of the linked account.
func (u UserLink) ProfileURL() string {
	return TraktProfileURL(u.Username)
}

// TraktProfileURL returns the public Trakt profile URL for username.
func TraktProfileURL(username string) string {
	return fmt.Sprintf("https://trakt.tv/users/%s", username)
}
