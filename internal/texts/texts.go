// Package texts carries the bilingual (EN/RU) copy shown to users and the
// captcha option pools. Data only; message selection happens in the
// transport adapter.
package texts

import "github.com/tendant/group-gatekeeper/pkg/gate"

// Challenges is the fixed captcha pool: prompt in both languages plus the
// correct option.
var Challenges = []gate.ChallengeSpec{
	{PromptEN: "Tap the moon 🌙", PromptRU: "Нажми на луну 🌙", Answer: "🌙"},
	{PromptEN: "Tap the sparkle ✨", PromptRU: "Нажми на искорку ✨", Answer: "✨"},
	{PromptEN: "Tap the cat paw 🐾", PromptRU: "Нажми на лапку 🐾", Answer: "🐾"},
	{PromptEN: "Tap the star 🌟", PromptRU: "Нажми на звезду 🌟", Answer: "🌟"},
	{PromptEN: "Tap the dream cloud 💭", PromptRU: "Нажми на облако 💭", Answer: "💭"},
}

// Decoys fills the wrong options of a challenge.
var Decoys = []string{"🌸", "🦋", "🍃", "☁️", "🫧", "🪷", "🌿", "🧸", "💫", "🌷", "🪻", "🐚"}

// Approved is sent after a join request is auto-approved.
const Approved = "✨ *Welcome, dreamer!*\n\nYour request was approved — see you inside 🌙\n\n————\n\n✨ *Добро пожаловать, мечтатель!*\n\nЗаявка одобрена — встретимся внутри 🌙"

// DeclinedVerifyFirst is sent after a join request is declined; the user
// should complete verification in the lobby first.
const DeclinedVerifyFirst = "🐾 *Not yet, dreamer!*\n\nPlease verify in the lobby first, then request to join again ✨\n\n————\n\n🐾 *Пока нет, мечтатель!*\n\nСначала пройди проверку в лобби, затем снова отправь заявку ✨"
