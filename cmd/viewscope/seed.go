package main

import (
	"context"
	"fmt"
	"time"

	"github.com/obliq-labs/viewscope/internal/config"
	"github.com/obliq-labs/viewscope/internal/store"
)

// runSeed loads a small demo corpus: a few direct chats and one group chat,
// with enough topical overlap to make view creation interesting.
func runSeed(args []string) error {
	g, err := parseGlobalFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.ResolveConfig(config.ResolveOptions{
		ConfigPath: g.configPath,
		CLIDBPath:  g.dbPath,
	})
	if err != nil {
		return err
	}

	s, err := store.NewStore(store.StoreConfig{DBPath: cfg.DBPath.Value})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	ctx := context.Background()

	contacts := []*store.Contact{
		{ID: "sarah", Name: "Sarah Mitchell"},
		{ID: "mike", Name: "Mike Torres"},
		{ID: "emma", Name: "Emma Chen"},
		{ID: "family-group", Name: "Family Planning", IsGroup: true},
	}
	for _, c := range contacts {
		if err := s.AddContact(ctx, c); err != nil {
			return fmt.Errorf("seeding contact %s: %w", c.ID, err)
		}
	}

	base := time.Now().UTC().Add(-72 * time.Hour)
	messages := []*store.Message{
		{ID: "m1", ChatID: "sarah", SenderID: "sarah", Content: "The buyers came back with an offer on the house this morning!"},
		{ID: "m2", ChatID: "sarah", Content: "That's great news. What did the realtor say about the closing date?"},
		{ID: "m3", ChatID: "sarah", SenderID: "sarah", Content: "She thinks we can close the sale by the end of next month if the inspection goes well."},
		{ID: "m4", ChatID: "mike", SenderID: "mike", Content: "Are we still on for the hiking trip this weekend?"},
		{ID: "m5", ChatID: "mike", Content: "Yes! I already packed. Weather looks perfect for the trail."},
		{ID: "m6", ChatID: "emma", SenderID: "emma", Content: "Reminder: dentist appointment Thursday at 3pm."},
		{ID: "m7", ChatID: "emma", Content: "Thanks, I almost forgot. Can we also book the car service for Friday?"},
		{ID: "m8", ChatID: "family-group", SenderID: "sarah", Content: "Once the house sale closes we should plan the move. Any preferences on moving companies?"},
		{ID: "m9", ChatID: "family-group", SenderID: "mike", Content: "I used Brightline Movers last year, they were careful with everything."},
		{ID: "m10", ChatID: "family-group", Content: "I'll get quotes from them and two others this week."},
	}
	for i, m := range messages {
		m.Timestamp = base.Add(time.Duration(i) * 30 * time.Minute)
		if err := s.AddMessage(ctx, m); err != nil {
			return fmt.Errorf("seeding message %s: %w", m.ID, err)
		}
	}

	fmt.Printf("Seeded %d contacts and %d messages.\n", len(contacts), len(messages))
	fmt.Println("Try: viewscope create \"messages about the house sale\" --no-llm")
	return nil
}
