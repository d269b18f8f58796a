package pipeline

import (
	"fmt"

	"github.com/book-expert/chat-tts-service/internal/admission"
)

// Chat-facing notice templates. The channel is Russian-speaking.
const (
	noticeFiltered     = "@%s, сообщение содержит запрещённый контент"
	noticeOnCooldown   = "@%s, ⏳ Подожди ещё %d секунд"
	noticeWindowFull   = "@%s, ⏸️ Очередь переполнена (%d/%d)"
	noticeQueueFull    = "@%s, очередь переполнена. Попробуй позже"
	noticeQueuedFree   = "✅ @%s, сообщение в очереди"
	noticeQueuedWaited = "⏱️ @%s, сообщение в очереди"
	noticeUnavailable  = "@%s, озвучка сейчас недоступна"
)

func filteredNotice(identity string) string {
	return fmt.Sprintf(noticeFiltered, identity)
}

func cooldownNotice(identity string, remainingSeconds int) string {
	return fmt.Sprintf(noticeOnCooldown, identity, remainingSeconds)
}

func windowFullNotice(identity string, current, limit int) string {
	return fmt.Sprintf(noticeWindowFull, identity, current, limit)
}

func queueFullNotice(identity string) string {
	return fmt.Sprintf(noticeQueueFull, identity)
}

func unavailableNotice(identity string) string {
	return fmt.Sprintf(noticeUnavailable, identity)
}

// queuedNotice distinguishes the free tiers from the plain viewer tier.
func queuedNotice(identity string, tier admission.Tier) string {
	if tier == admission.TierViewer {
		return fmt.Sprintf(noticeQueuedWaited, identity)
	}

	return fmt.Sprintf(noticeQueuedFree, identity)
}

// truncateRunes cuts message to at most limit runes.
func truncateRunes(message string, limit int) string {
	if limit <= 0 {
		return message
	}

	runes := []rune(message)
	if len(runes) <= limit {
		return message
	}

	return string(runes[:limit])
}
