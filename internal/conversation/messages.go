package conversation

import (
	"fmt"

	"github.com/helpline1930/helpline/internal/flow"
)

// User-facing copy. Kept in one place so the flow handlers read as
// transition logic, not string formatting.
const (
	msgWelcome = "Welcome to 1930 Cyber Crime Helpline, Odisha!\nPlease choose an option:"

	msgIdleFallback = "Sorry, I didn't understand. Send 'start' to see the menu."

	msgSessionExpired = "Session expired. Please send 'start' to begin again."

	msgChooseCategory = "What kind of complaint would you like to file?"

	msgAskReference = "Please provide your Reference Number (ODCC-...) or your registered phone number:"

	msgBadReference = "That doesn't look like a reference number or a phone number.\n" +
		"Please provide your Reference Number (ODCC-...) or your registered 10-digit phone number:"

	msgNoComplaints = "No complaints found. Send 'start' and choose New Complaint to report."

	msgVerifyIntro = "To protect your privacy, please verify your identity before I share the status."

	msgVerifyFailed = "Sorry, those details don't match our records. Send 'start' to try again."

	msgAskAccount = "Please provide your Account Number:"

	msgDocumentsIntro = "Please upload supporting documents (screenshots, receipts, transaction proofs).\n" +
		"Send images one by one, then press Done."

	msgDocumentReceived = "Document received."

	msgSendNextDocument = "Please send the next document image."

	msgThanks = "Thank you for using 1930 Cyber Crime Helpline, Odisha."

	msgInternalError = "Something went wrong on our side. Please send 'start' to begin again."

	msgOtherIntro = "Please type your question and I'll try to help.\n" +
		"Send 'start' anytime to return to the main menu."

	msgOtherFallback = "Thank you for contacting 1930 Cyber Crime Helpline, Odisha.\n\n" +
		"• Send 'A' to file a new complaint\n" +
		"• Send 'B' to check complaint status\n" +
		"• Send 'C' for account unfreeze requests\n" +
		"• Send 'start' to see the main menu\n\n" +
		"For urgent matters, please call the helpline directly at 1930."
)

func msgComplaintSubmitted(ref string) string {
	return fmt.Sprintf("✅ Complaint Submitted!\n\n📋 Reference Number: %s\n\n"+
		"Keep this number to track your complaint.\n\n%s", ref, msgThanks)
}

func msgUnfreezeSubmitted(ref string) string {
	return fmt.Sprintf("✅ Account Unfreeze Request Submitted!\n\n📋 Reference Number: %s\n\n"+
		"Our agent will call or message you shortly to solve your issue.\n\n%s", ref, msgThanks)
}

func msgAlreadySubmitted(ref string) string {
	return fmt.Sprintf("This request was already submitted.\n\n📋 Reference Number: %s", ref)
}

func msgStatusReport(ref, status, category, created string) string {
	return fmt.Sprintf("📋 Complaint %s\nStatus: %s\nCategory: %s\nFiled: %s\n\n"+
		"For urgent matters, call the helpline directly at 1930.", ref, status, category, created)
}

// menuEffect builds the top-level option list.
func menuEffect(to string) Effect {
	return ListEffect{
		To:          to,
		Body:        msgWelcome,
		ButtonLabel: "Options",
		Sections: []ListSection{
			{Title: flow.MainMenu.Title, Rows: flow.MainMenu.Options},
		},
	}
}

// selectionEffect presents a catalog: buttons for up to three options,
// a list beyond that.
func selectionEffect(to, body string, c flow.Catalog) Effect {
	if len(c.Options) <= 3 {
		return ButtonsEffect{To: to, Body: body, Options: c.Options}
	}
	return ListEffect{
		To:          to,
		Body:        body,
		ButtonLabel: "Choose",
		Sections:    sectionize(c),
	}
}

// sectionize splits a catalog into list sections of at most 12 rows so
// the larger catalogs stay scannable on the client.
func sectionize(c flow.Catalog) []ListSection {
	const maxRows = 12
	if len(c.Options) <= maxRows {
		return []ListSection{{Title: c.Title, Rows: c.Options}}
	}
	var sections []ListSection
	for start := 0; start < len(c.Options); start += maxRows {
		end := start + maxRows
		if end > len(c.Options) {
			end = len(c.Options)
		}
		sections = append(sections, ListSection{
			Title: fmt.Sprintf("%s (%d–%d)", c.Title, start+1, end),
			Rows:  c.Options[start:end],
		})
	}
	return sections
}

// documentsEffect shows the done/send-more choice while collecting uploads.
func documentsEffect(to, body string) Effect {
	return ButtonsEffect{
		To:   to,
		Body: body,
		Options: []flow.Option{
			{ID: "done", Label: "Done"},
			{ID: "more", Label: "Send More"},
		},
	}
}

// firstFieldPrompt asks for the opening field of a schema.
func firstFieldPrompt(s flow.Schema) string {
	return "Please provide your details:\n\n" + s[0].Prompt + ":"
}

// fieldPrompt asks for the field at index i.
func fieldPrompt(s flow.Schema, i int) string {
	return s[i].Prompt + ":"
}

// fieldReprompt re-asks the field at index i after a failed validation,
// using its specific message when one exists.
func fieldReprompt(s flow.Schema, i int) string {
	if s[i].Reprompt != "" {
		return s[i].Reprompt
	}
	return fieldPrompt(s, i)
}
