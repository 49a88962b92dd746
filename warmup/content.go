package warmup

import (
	"math/rand"
	"strings"
)

// Content is a generated subject/body pair ready for sending.
type Content struct {
	Subject     string
	BodyText    string
	BodyHTML    string
	AIGenerated bool
	AIProvider  string
}

// ContentProvider generates conversational warmup content. Implementations
// must be safe for concurrent use; any failure falls back to the template
// bank and never blocks a cycle.
type ContentProvider interface {
	GenerateEmail(senderName, receiverName, category string) (*Content, error)
	GenerateReply(originalSubject, originalBody, senderName string) (*Content, error)
	Name() string
}

var contentCategories = []string{
	"meeting_followup", "project_update", "question", "introduction",
	"thank_you", "scheduling", "feedback_request", "resource_sharing",
}

var subjectTemplates = map[string][]string{
	"meeting_followup": {"Following up on our chat", "Great meeting today", "Quick follow-up"},
	"project_update":   {"Project status update", "Quick update on progress", "FYI - Project milestone"},
	"question":         {"Quick question for you", "Need your input", "Thoughts on this?"},
	"introduction":     {"Nice to connect", "Great to meet you", "Reaching out"},
	"thank_you":        {"Thanks for your help", "Appreciated your time", "Thank you!"},
	"scheduling":       {"Can we find time to chat?", "Scheduling a quick call", "When works for you?"},
	"feedback_request": {"Would love your feedback", "Your thoughts?", "Quick review needed"},
	"resource_sharing": {"Thought you might find this useful", "Sharing a resource", "Check this out"},
}

var bodyTemplates = map[string][]string{
	"meeting_followup": {
		"Hi {receiver},\n\nIt was great chatting with you earlier. I wanted to follow up.\n\nBest regards,\n{sender}",
		"Hey {receiver},\n\nThanks for taking the time to meet today.\n\nCheers,\n{sender}",
	},
	"project_update": {
		"Hi {receiver},\n\nJust a quick update - we are making good progress.\n\nBest,\n{sender}",
	},
	"question": {
		"Hi {receiver},\n\nHope you are having a good day. Quick question - would love your perspective.\n\nThanks,\n{sender}",
	},
	"introduction": {
		"Hi {receiver},\n\nGreat to connect! Would love to find time to chat.\n\nBest,\n{sender}",
	},
	"thank_you": {
		"Hi {receiver},\n\nJust wanted to say thanks for your help.\n\nBest regards,\n{sender}",
	},
	"scheduling": {
		"Hi {receiver},\n\nWould you have time this week for a quick call?\n\nThanks,\n{sender}",
	},
	"feedback_request": {
		"Hi {receiver},\n\nI have been working on a proposal and would value your feedback.\n\nAppreciate it,\n{sender}",
	},
	"resource_sharing": {
		"Hi {receiver},\n\nI came across something relevant to you. Let me know what you think!\n\nBest,\n{sender}",
	},
}

var replyTemplates = []string{
	"Thanks for reaching out! Let me get back to you soon.\nBest,\n{sender}",
	"Appreciate the update! I will review shortly.\nCheers,\n{sender}",
	"Great to hear from you! Let us connect on this.\nRegards,\n{sender}",
	"Got it, thanks for the heads up!\nTalk soon,\n{sender}",
	"Thanks! Will take a look.\nBest,\n{sender}",
}

// RandomCategory picks one of the conversational content categories.
func RandomCategory() string {
	return contentCategories[rand.Intn(len(contentCategories))]
}

// TemplateContent builds an email from the fixed template bank.
func TemplateContent(senderName, receiverName, category string) *Content {
	subjects, ok := subjectTemplates[category]
	if !ok {
		category = "meeting_followup"
		subjects = subjectTemplates[category]
	}
	bodies := bodyTemplates[category]

	body := bodies[rand.Intn(len(bodies))]
	body = strings.ReplaceAll(body, "{receiver}", receiverName)
	body = strings.ReplaceAll(body, "{sender}", senderName)

	return &Content{
		Subject:  subjects[rand.Intn(len(subjects))],
		BodyText: body,
		BodyHTML: textToHTML(body),
	}
}

// TemplateReply builds a short templated reply to a warmup email.
func TemplateReply(originalSubject, senderName string) *Content {
	subject := originalSubject
	if !strings.HasPrefix(subject, "Re:") {
		subject = "Re: " + subject
	}
	body := strings.ReplaceAll(replyTemplates[rand.Intn(len(replyTemplates))], "{sender}", senderName)
	return &Content{
		Subject:  subject,
		BodyText: body,
		BodyHTML: textToHTML(body),
	}
}

// generateContent tries the AI provider first and falls back to templates.
func generateContent(provider ContentProvider, senderName, receiverName string) *Content {
	category := RandomCategory()
	if provider != nil {
		if content, err := provider.GenerateEmail(senderName, receiverName, category); err == nil && content != nil {
			content.AIGenerated = true
			content.AIProvider = provider.Name()
			return content
		}
	}
	return TemplateContent(senderName, receiverName, category)
}

// generateReply tries the AI provider first and falls back to templates.
func generateReply(provider ContentProvider, originalSubject, originalBody, senderName string) *Content {
	if provider != nil {
		if content, err := provider.GenerateReply(originalSubject, originalBody, senderName); err == nil && content != nil {
			content.AIGenerated = true
			content.AIProvider = provider.Name()
			return content
		}
	}
	return TemplateReply(originalSubject, senderName)
}

func textToHTML(text string) string {
	html := strings.ReplaceAll(text, "\n\n", "</p><p>")
	html = strings.ReplaceAll(html, "\n", "<br>")
	return "<p>" + html + "</p>"
}
