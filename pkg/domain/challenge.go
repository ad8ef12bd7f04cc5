package domain

// Challenge is one captcha instance: a bilingual prompt, the correct
// option, and the shuffled option set shown to the user. Only the answer
// is persisted; the option set is regenerated on each issue.
type Challenge struct {
	PromptEN string   `json:"prompt_en"`
	PromptRU string   `json:"prompt_ru"`
	Answer   string   `json:"-"`
	Options  []string `json:"options"`
}
