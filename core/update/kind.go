package update

// Kind is the key under which the remote nests the update payload.
type Kind string

const (
	Message              Kind = "message"
	EditedMessage        Kind = "edited_message"
	ChannelPost          Kind = "channel_post"
	EditedChannelPost    Kind = "edited_channel_post"
	InlineQuery          Kind = "inline_query"
	ChosenInlineResult   Kind = "chosen_inline_result"
	CallbackQuery        Kind = "callback_query"
	ShippingQuery        Kind = "shipping_query"
	PreCheckoutQuery     Kind = "pre_checkout_query"
	Poll                 Kind = "poll"
	PollAnswer           Kind = "poll_answer"
	MyChatMember         Kind = "my_chat_member"
	ChatMember           Kind = "chat_member"
	ChatJoinRequest      Kind = "chat_join_request"
	MessageReaction      Kind = "message_reaction"
	MessageReactionCount Kind = "message_reaction_count"
	ChatBoost            Kind = "chat_boost"
	RemovedChatBoost     Kind = "removed_chat_boost"
)

// Kinds is the canonical order used both for classification
// and as the default allowed_updates subscription.
var Kinds = []Kind{
	Message,
	EditedMessage,
	ChannelPost,
	EditedChannelPost,
	InlineQuery,
	ChosenInlineResult,
	CallbackQuery,
	ShippingQuery,
	PreCheckoutQuery,
	Poll,
	PollAnswer,
	MyChatMember,
	ChatMember,
	ChatJoinRequest,
	MessageReaction,
	MessageReactionCount,
	ChatBoost,
	RemovedChatBoost,
}

var known = func() map[Kind]bool {
	m := make(map[Kind]bool, len(Kinds))
	for _, kind := range Kinds {
		m[kind] = true
	}

	return m
}()

func (k Kind) String() string {
	return string(k)
}

// Valid reports whether k belongs to the known set.
func (k Kind) Valid() bool {
	return known[k]
}

// ParseKinds converts a list of strings into kinds, rejecting unknown values.
// An empty list yields a copy of Kinds.
func ParseKinds(values []string) ([]Kind, error) {
	if len(values) == 0 {
		return AllKinds(), nil
	}

	kinds := make([]Kind, 0, len(values))
	seen := make(map[Kind]bool, len(values))
	for _, value := range values {
		kind := Kind(value)
		if !kind.Valid() {
			return nil, &UnknownKindError{Value: value}
		}

		if seen[kind] {
			continue
		}

		seen[kind] = true
		kinds = append(kinds, kind)
	}

	return kinds, nil
}

// AllKinds returns a fresh copy of Kinds.
func AllKinds() []Kind {
	kinds := make([]Kind, len(Kinds))
	copy(kinds, Kinds)
	return kinds
}

// Strings converts kinds into their wire representation.
func Strings(kinds []Kind) []string {
	values := make([]string, len(kinds))
	for i, kind := range kinds {
		values[i] = string(kind)
	}

	return values
}
