package intake

// Messages holds every user-visible string of the questionnaire.
type Messages struct {
	Greeting         string `yaml:"greeting"`
	AskAge           string `yaml:"ask_age"`
	AgeInvalid       string `yaml:"age_invalid"`
	AskFavoriteColor string `yaml:"ask_favorite_color"`
	AskPersonality   string `yaml:"ask_personality"`
	Failure          string `yaml:"failure"`
	Help             string `yaml:"help"`
	TooFast          string `yaml:"too_fast"`
	ResultPrefix     string `yaml:"result_prefix"`
}

// DefaultMessages returns the stock English wording.
func DefaultMessages() Messages {
	return Messages{
		Greeting: "Hi! 👋\n\n" +
			"Welcome to the \"Which fruit are you?\" quiz 🍎🍌🥝\n\n" +
			"I'll help you find the fruit that best reflects your personality! 🧐\n" +
			"I need to ask you a few questions. Answer honestly!\n\n" +
			"Let's begin! What's your name?",
		AskAge:           "Great! How old are you?",
		AgeInvalid:       "Please enter your age as a number.",
		AskFavoriteColor: "What is your favorite color?",
		AskPersonality:   "How would you describe your personality?",
		Failure:          "Something went wrong. Please try again with /start.",
		Help: "❓ Help ❓\n\n" +
			"This bot finds out which fruit you are! 🍏🍓🥭\n\n" +
			"✅ Send /start to begin the quiz.\n" +
			"✅ Answer the questions honestly to get an accurate result.\n" +
			"✅ Want to take it again? Just send /start once more.",
		TooFast:      "You're typing a bit fast. Please send your last message again.",
		ResultPrefix: "🌟 ",
	}
}

// WithDefaults fills empty fields from DefaultMessages.
func (m Messages) WithDefaults() Messages {
	d := DefaultMessages()
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&m.Greeting, d.Greeting)
	fill(&m.AskAge, d.AskAge)
	fill(&m.AgeInvalid, d.AgeInvalid)
	fill(&m.AskFavoriteColor, d.AskFavoriteColor)
	fill(&m.AskPersonality, d.AskPersonality)
	fill(&m.Failure, d.Failure)
	fill(&m.Help, d.Help)
	fill(&m.TooFast, d.TooFast)
	fill(&m.ResultPrefix, d.ResultPrefix)
	return m
}

// prompt returns the question asked when a conversation enters step.
func (m Messages) prompt(step Step) string {
	switch step {
	case StepAwaitingName:
		return m.Greeting
	case StepAwaitingAge:
		return m.AskAge
	case StepAwaitingFavoriteColor:
		return m.AskFavoriteColor
	case StepAwaitingPersonality:
		return m.AskPersonality
	}
	return ""
}
