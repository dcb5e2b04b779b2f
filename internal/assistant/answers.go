// Package assistant answers dashboard help questions from a fixed set of
// canned answers and keeps short per-session transcripts.
package assistant

import "strings"

// Topic is one canned answer and the phrase that selects it.
type Topic struct {
	ID     string `json:"id"`
	Phrase string `json:"phrase"`
	Answer string `json:"answer"`
}

// Greeting opens every session.
const Greeting = "שלום! אני עוזר וירטואלי למכרזי קרקע. איך אוכל לעזור לך היום?"

// Fallback is returned when no topic matches.
const Fallback = "מצטער, אני לא בטוח שהבנתי את השאלה. נסה לשאול על: פער משומה, מחיר למ״ר, תחרות בריאה, תשתיות, סינון נתונים, או יחידות דיור."

// FallbackTopic is the topic id reported for unmatched questions.
const FallbackTopic = "fallback"

// Topics in match order.
var Topics = []Topic{
	{
		ID:     "appraisal_gap",
		Phrase: "מה זה פער משומה",
		Answer: "פער משומה הוא ההפרש באחוזים בין מחיר הזכייה במכרז לבין מחיר השומה הממשלתי. פער חיובי מעיד על ביקוש גבוה, ופער שלילי עשוי להצביע על בעיות אפשריות.",
	},
	{
		ID:     "price_per_sqm",
		Phrase: "איך מחושב מחיר למ״ר",
		Answer: "מחיר למ״ר מחושב על ידי חלוקת מחיר הזכייה הכולל בשטח המתחם במטרים רבועים. זה מאפשר השוואה הוגנת בין מכרזים בגדלים שונים.",
	},
	{
		ID:     "healthy_competition",
		Phrase: "מה זה תחרות בריאה",
		Answer: "תחרות בריאה מתייחסת למכרזים שקיבלו 2 הצעות או יותר. ככל שיש יותר הצעות, כך התחרות בריאה יותר והמחירים משקפים טוב יותר את שווי השוק.",
	},
	{
		ID:     "infrastructure",
		Phrase: "מי משלם על התשתיות",
		Answer: "עלויות הפיתוח (תשתיות, כבישים, ביוב, חשמל) משולמות על ידי היזמים הזוכים, לא על ידי העירייה. העיר מקבלת תשתיות חדשות ללא עלות ישירה.",
	},
	{
		ID:     "filtering",
		Phrase: "איך אני מסנן נתונים",
		Answer: "השתמש בפאנל הסינון בחלק העליון של הדשבורד. תוכל לסנן לפי עיר, טווח מחירים, פער משומה, וכמות הצעות. לחץ על \"איפוס סינון\" כדי לאפס את כל הפילטרים.",
	},
	{
		ID:     "no_bids",
		Phrase: "מה המשמעות של מכרז ללא הצעות",
		Answer: "מכרז ללא הצעות הוא מכרז שלא התקבלו עליו הצעות מיזמים. זה עשוי להצביע על בעיות כמו מחיר שומה גבוה מדי, בעיות תכנוניות, או חוסר עניין בשוק באזור.",
	},
	{
		ID:     "price_gap_widget",
		Phrase: "איך רואים את הפער בין ההצעות",
		Answer: "השתמש במרכיב \"פער מחירים: שומה לעומת זכייה\" שמציג ויזואלית את ההפרש בין מחיר השומה למחיר הזכייה. הוא מציג גם סטטיסטיקות על כמה מכרזים מעל ומתחת לשומה.",
	},
	{
		ID:     "planned_units",
		Phrase: "מה זה יחידות דיור מתוכננות",
		Answer: "זה מספר הדירות שמתוכננות להיבנות בכל המכרזים ביחד. זה מייצג את היקף הבנייה הצפוי ומשפיע על היצע הדיור באזור.",
	},
}

// QuickQuestions are offered before the first user message.
var QuickQuestions = []string{
	"מה זה פער משומה?",
	"איך מחושב מחיר למ״ר?",
	"מי משלם על התשתיות?",
	"איך אני מסנן נתונים?",
}

// keywordRule maps a question to a topic when any of its groups matches.
// A group matches when the question contains every word in it.
type keywordRule struct {
	topic  string
	groups [][]string
}

var keywordRules = []keywordRule{
	{topic: "appraisal_gap", groups: [][]string{{"פער"}, {"שומה"}}},
	{topic: "price_per_sqm", groups: [][]string{{"מחיר", "מ״ר"}}},
	{topic: "healthy_competition", groups: [][]string{{"תחרות"}}},
	{topic: "infrastructure", groups: [][]string{{"תשתית"}, {"פיתוח"}}},
	{topic: "filtering", groups: [][]string{{"סינון"}, {"פילטר"}}},
	{topic: "no_bids", groups: [][]string{{"ללא הצעות"}}},
	{topic: "planned_units", groups: [][]string{{"יחידות"}, {"דיור"}}},
}

var topicsByID = func() map[string]Topic {
	m := make(map[string]Topic, len(Topics))
	for _, t := range Topics {
		m[t.ID] = t
	}
	return m
}()

// Match picks the answer for question: a contained topic phrase first, then
// the keyword rules in order, then the fallback.
func Match(question string) (topicID, answer string) {
	q := strings.ToLower(strings.TrimSpace(question))

	for _, t := range Topics {
		if strings.Contains(q, strings.ToLower(t.Phrase)) {
			return t.ID, t.Answer
		}
	}

	for _, rule := range keywordRules {
		for _, group := range rule.groups {
			if containsAll(q, group) {
				return rule.topic, topicsByID[rule.topic].Answer
			}
		}
	}

	return FallbackTopic, Fallback
}

// Answer returns only the answer text of Match.
func Answer(question string) string {
	_, answer := Match(question)
	return answer
}

func containsAll(s string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(s, w) {
			return false
		}
	}
	return true
}
