package board

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by scope so that the global
// board and every community board coexist on a single Redis server.
//
// Key pattern: lanes:{scope}:{entity}
// Channel pattern: lanes:{scope}:{event_type}_events

// ScopesKey returns the Redis key of the set of provisioned scopes.
// Pattern: lanes:scopes
func ScopesKey() string {
	return "lanes:scopes"
}

// ColumnKey returns the Redis key of a column record (hash of id, title, created_at_ms).
// Pattern: lanes:{scope}:column:{column_id}
func ColumnKey(scope Scope, column ColumnID) string {
	return fmt.Sprintf("lanes:%s:column:%s", scope, column)
}

// ColumnCardsKey returns the Redis key of a column's ordered card list.
// Pattern: lanes:{scope}:column:{column_id}:cards
func ColumnCardsKey(scope Scope, column ColumnID) string {
	return fmt.Sprintf("lanes:%s:column:%s:cards", scope, column)
}

// RosterKey returns the Redis key of the collaborator roster hash (name → avatar URL).
// Pattern: lanes:{scope}:roster
func RosterKey(scope Scope) string {
	return fmt.Sprintf("lanes:%s:roster", scope)
}

// BoardEventsChannel returns the Pub/Sub channel for board mutation events.
// Pattern: lanes:{scope}:board_events
func BoardEventsChannel(scope Scope) string {
	return fmt.Sprintf("lanes:%s:board_events", scope)
}
