// Package notifications delivers live gallery updates over websockets.
// Mutations publish small per-item events so connected clients can
// patch their views in place instead of re-fetching whole lists.
package notifications

import (
	"encoding/json"

	"mathgenie/internal/models"
)

// Event types pushed to gallery clients.
const (
	EventItemCreated    = "item_created"
	EventItemUpdated    = "item_updated"
	EventItemDeleted    = "item_deleted"
	EventReactionUpdate = "item_reaction_updated"
	EventCommentCreated = "comment_created"
	EventCommentDeleted = "comment_deleted"
)

// Event is a single gallery change, scoped to one collection.
type Event struct {
	Type       string          `json:"type"`
	Collection string          `json:"collection"`
	Payload    json.RawMessage `json:"payload"`
}

// Encode renders the event for the wire.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func newEvent(eventType, collection string, payload any) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte("{}")
	}
	return Event{Type: eventType, Collection: collection, Payload: data}
}

// ItemCreated announces a new gallery item.
func ItemCreated(item *models.ContentItem) Event {
	return newEvent(EventItemCreated, string(item.Collection), item)
}

// ItemUpdated announces edited item metadata or content.
func ItemUpdated(item *models.ContentItem) Event {
	return newEvent(EventItemUpdated, string(item.Collection), item)
}

// ItemDeleted announces a removed item. Only the id travels.
func ItemDeleted(collection, itemID string) Event {
	return newEvent(EventItemDeleted, collection, map[string]string{"id": itemID})
}

// ReactionUpdated announces a changed like count for an item.
func ReactionUpdated(collection, itemID string, likesCount int64) Event {
	return newEvent(EventReactionUpdate, collection, map[string]any{
		"id":          itemID,
		"likes_count": likesCount,
	})
}

// CommentCreated announces a new comment on an item.
func CommentCreated(collection string, comment *models.Comment) Event {
	return newEvent(EventCommentCreated, collection, comment)
}

// CommentDeleted announces a removed comment.
func CommentDeleted(collection, itemID string, commentID uint) Event {
	return newEvent(EventCommentDeleted, collection, map[string]any{
		"id":      commentID,
		"item_id": itemID,
	})
}
