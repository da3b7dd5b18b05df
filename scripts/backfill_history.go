package main

import (
	"context"
	"log"
	"os"
	"sort"

	"github.com/spf13/afero"

	"traktfm/internal/database"
	"traktfm/services/history"
	"traktfm/services/metadata"
	"traktfm/services/trakt"
	"traktfm/services/users"
)

// backfill_history imports the complete Trakt history of one or more users
// into the local store. Without usernames it walks every linked account in
// the users file.
func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: backfill_history <db_path> [username ...]")
	}

	traktAPIKey := os.Getenv("TRAKT_API_KEY")
	if traktAPIKey == "" {
		log.Fatal("TRAKT_API_KEY environment variable is required")
	}

	db, err := database.NewDB(database.Config{DatabasePath: os.Args[1]})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	usernames := os.Args[2:]
	if len(usernames) == 0 {
		usersFile := os.Getenv("USERS_FILE")
		if usersFile == "" {
			usersFile = "users.json"
		}
		links, err := users.NewService(afero.NewOsFs(), usersFile).All()
		if err != nil {
			log.Fatalf("Failed to read %s: %v", usersFile, err)
		}
		seen := make(map[string]bool)
		for _, username := range links {
			if !seen[username] {
				seen[username] = true
				usernames = append(usernames, username)
			}
		}
		sort.Strings(usernames)
	}
	if len(usernames) == 0 {
		log.Fatal("No usernames given and no linked accounts found")
	}

	// Posters are never drawn here, so the pipeline runs without a composer.
	svc := history.NewService(
		trakt.NewClient(traktAPIKey, 0),
		database.NewHistoryRepository(db),
		metadata.NewPosterResolver(nil),
		nil,
	)

	ctx := context.Background()
	var failed int
	for _, username := range usernames {
		result, err := svc.Backfill(ctx, username)
		if err != nil {
			log.Printf("%s: backfill failed: %v", username, err)
			failed++
			continue
		}
		log.Printf("%s: %d new, %d already stored, %d rejected",
			username, result.Accepted, result.Duplicates, len(result.Rejected))
		for _, rej := range result.Rejected {
			log.Printf("%s:   rejected %s id=%d title=%q: %s", username, rej.Kind, rej.TraktID, rej.Title, rej.Reason)
		}
	}

	log.Printf("Backfill complete: %d users, %d failed", len(usernames), failed)
	if failed > 0 {
		os.Exit(1)
	}
}
