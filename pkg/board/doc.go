// Package board provides the shared card board model and the Redis-backed
// board store for lanes.
//
// # Overview
//
// A board is a fixed pipeline of four columns (idea → next → in-progress → done)
// holding ordered lists of cards. Many independent clients mutate the same board
// concurrently with no central lock. The store therefore exposes only element-level
// primitives that are atomic on the Redis server, plus one unconditional list
// replace that is last-write-wins.
//
// # Core Concepts
//
// Cards are compared by whole value: add and remove match the canonical JSON
// encoding of a normalized card. Tags and assignees are sets and are sorted and
// deduplicated before encoding, so two cards that differ only in set order are equal.
//
// Columns are provisioned once per scope and never deleted. A scope is either
// "global" or a community identifier.
//
// # Usage Example
//
//	client, err := board.NewClient(&redis.Options{Addr: "localhost:6379"}, "alice")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	if _, err := client.ProvisionBoard(ctx, board.GlobalScope); err != nil {
//		log.Fatal(err)
//	}
//
//	card := board.Card{ID: uuid.New().String(), Title: "Write the release notes"}
//	if err := client.AddCard(ctx, board.GlobalScope, board.ColumnIdea, card); err != nil {
//		log.Fatal(err)
//	}
//
// # Redis Schema
//
// All Redis keys follow the pattern: lanes:{scope}:{entity}
//
// Column record: lanes:{scope}:column:{column_id}
// Column cards:  lanes:{scope}:column:{column_id}:cards
// Roster:        lanes:{scope}:roster
// Scope index:   lanes:scopes
//
// Pub/Sub channel: lanes:{scope}:board_events
//
// # Concurrency
//
// AddCard and RemoveCard on distinct values commute under any interleaving.
// ReplaceCards provides no merge: a concurrent add, remove or assignee edit landing
// between another caller's read and its replace can be silently lost.
package board
