package chat

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/book-expert/chat-tts-service/internal/admission"
	"github.com/book-expert/chat-tts-service/internal/pipeline"
)

// Chat commands.
const (
	CommandTTS     = "!tts"
	CommandTTSInfo = "!ttsinfo"
)

const usageMessage = "ℹ️ Использование: !tts текст для озвучки"

// ActionKind says what the listener should do with a message.
type ActionKind int

const (
	// ActionIgnore drops the message.
	ActionIgnore ActionKind = iota
	// ActionSubmit hands Action.Request to the pipeline.
	ActionSubmit
	// ActionReply posts Action.Reply to the channel.
	ActionReply
)

// Action is the routing decision for one message.
type Action struct {
	Kind    ActionKind
	Request pipeline.Request
	Reply   string
}

// AccessRules are the settings described by !ttsinfo.
type AccessRules struct {
	RewardEnabled      bool
	FreeForBroadcaster bool
	FreeForMods        bool
	FreeForSubscribers bool
	CooldownSubs       int
	CooldownViewers    int
}

// Router maps chat messages to actions.
type Router struct {
	channel  string
	rewardID string
	info     string
}

// NewRouter creates a Router for channel. An empty rewardID disables reward handling.
func NewRouter(channel, rewardID string, rules AccessRules) *Router {
	return &Router{
		channel:  channel,
		rewardID: rewardID,
		info:     infoMessage(rules),
	}
}

// Route decides what to do with event.
func (r *Router) Route(event MessageEvent) Action {
	if event.Echo || event.Username == "" {
		return Action{Kind: ActionIgnore}
	}

	if r.rewardID != "" && event.CustomRewardID == r.rewardID {
		return Action{
			Kind: ActionSubmit,
			Request: pipeline.Request{
				Identity:           event.Username,
				Roles:              admission.Roles{},
				Text:               event.Text,
				IsRewardRedemption: true,
			},
		}
	}

	command, rest := splitCommand(event.Text)

	switch command {
	case CommandTTSInfo:
		return Action{Kind: ActionReply, Reply: r.info}
	case CommandTTS:
		if rest == "" {
			return Action{Kind: ActionReply, Reply: usageMessage}
		}

		return Action{
			Kind: ActionSubmit,
			Request: pipeline.Request{
				Identity: event.Username,
				Roles: admission.Roles{
					IsBroadcaster: event.IsBroadcaster || strings.EqualFold(event.Username, r.channel),
					IsModerator:   event.IsModerator,
					IsSubscriber:  event.IsSubscriber,
				},
				Text:               rest,
				IsRewardRedemption: false,
			},
		}
	default:
		return Action{Kind: ActionIgnore}
	}
}

// splitCommand returns the lowercased first word and the trimmed remainder.
func splitCommand(message string) (string, string) {
	message = strings.TrimSpace(message)

	end := strings.IndexFunc(message, unicode.IsSpace)
	if end < 0 {
		return strings.ToLower(message), ""
	}

	return strings.ToLower(message[:end]), strings.TrimSpace(message[end:])
}

func infoMessage(rules AccessRules) string {
	lines := []string{"ℹ️ Правила озвучки:"}

	if rules.RewardEnabled {
		lines = append(lines, "💎 Через награду за баллы канала - без ограничений")
	}

	var free []string

	if rules.FreeForBroadcaster {
		free = append(free, "стример")
	}

	if rules.FreeForMods {
		free = append(free, "модераторы")
	}

	if len(free) > 0 {
		lines = append(lines, fmt.Sprintf("✅ %s - бесплатно через !tts", strings.Join(free, ", ")))
	}

	if rules.FreeForSubscribers {
		lines = append(lines, fmt.Sprintf("🌟 Подписчики - !tts с кулдауном %dс", rules.CooldownSubs))
	}

	lines = append(lines,
		fmt.Sprintf("👥 Все остальные - !tts с кулдауном %dс", rules.CooldownViewers),
		"🚫 Запрещены: мат, спам, ссылки, капс",
	)

	return strings.Join(lines, " | ")
}
