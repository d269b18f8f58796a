// Package chat connects the pipeline to the chat transport. Inbound chat
// messages and outbound notices travel over NATS as JSON events.
package chat

import (
	"github.com/book-expert/events"
)

// MessageEvent is one chat message as delivered by the chat gateway.
type MessageEvent struct {
	Header         events.EventHeader `json:"header"`
	Channel        string             `json:"channel"`
	Username       string             `json:"username"`
	Text           string             `json:"text"`
	IsBroadcaster  bool               `json:"is_broadcaster"`
	IsModerator    bool               `json:"is_moderator"`
	IsSubscriber   bool               `json:"is_subscriber"`
	CustomRewardID string             `json:"custom_reward_id,omitempty"`
	Echo           bool               `json:"echo,omitempty"`
}

// NoticeEvent is a message the gateway should post to the channel.
type NoticeEvent struct {
	Header  events.EventHeader `json:"header"`
	Channel string             `json:"channel"`
	Message string             `json:"message"`
}
