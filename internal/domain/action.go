package domain

// ActionKind classifies what the dispatcher should do with one update.
type ActionKind int

const (
	ActionIgnore ActionKind = iota
	ActionWelcome
	ActionUsageError
	ActionGenerateText
	ActionGenerateImage
)

func (k ActionKind) String() string {
	switch k {
	case ActionWelcome:
		return "welcome"
	case ActionUsageError:
		return "usage_error"
	case ActionGenerateText:
		return "generate_text"
	case ActionGenerateImage:
		return "generate_image"
	default:
		return "ignore"
	}
}

// Action is the router's verdict for one update. Prompt is set only for the
// two generate kinds.
type Action struct {
	Kind   ActionKind
	Prompt string
}
