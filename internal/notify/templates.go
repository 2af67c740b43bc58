package notify

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"outthedoor/backend/internal/reconcile"
)

// ContractMismatch renders the email asking a dealer to fix contract fields
// that did not match the accepted quote. Only the failing checks are included.
func ContractMismatch(to, dealerName, quoteSummary string, failing reconcile.Report, link string) Message {
	var textItems, htmlItems strings.Builder
	for _, check := range failing {
		textItems.WriteString("- " + check.Field)
		if check.Notes != "" {
			textItems.WriteString(": " + check.Notes)
		}
		textItems.WriteString("\n")

		htmlItems.WriteString("<li><strong>" + check.Field + "</strong>")
		if check.Notes != "" {
			htmlItems.WriteString(" &ndash; " + check.Notes)
		}
		htmlItems.WriteString("</li>")
	}

	text := fmt.Sprintf(
		"Hi %s,\n\nWe compared your contract against the accepted quote (%s) and found mismatches:\n%s\nPlease correct these items and upload a revised contract: %s\n\nThanks,\nOutTheDoor Ops",
		dealerName, quoteSummary, textItems.String(), link)
	html := fmt.Sprintf(
		"<!doctype html><html><body><p>Hi %s,</p><p>We compared your contract against the accepted quote (<strong>%s</strong>) and found the following mismatches:</p><ul>%s</ul><p><a href=%q>Upload revised contract</a></p><p>Thanks,<br/>OutTheDoor Ops</p></body></html>",
		dealerName, quoteSummary, htmlItems.String(), link)

	return Message{
		To:      to,
		Subject: "OutTheDoor | Contract needs updates before signing",
		Text:    text,
		HTML:    html,
	}
}

// CounterAddonRemoval renders the buyer's request to drop named add-ons.
func CounterAddonRemoval(to, dealerName, quoteSummary string, addonNames []string, link string) Message {
	var textItems, htmlItems strings.Builder
	for _, name := range addonNames {
		textItems.WriteString("- " + name + "\n")
		htmlItems.WriteString("<li>" + name + "</li>")
	}

	text := fmt.Sprintf(
		"Hi %s,\n\nThanks for your quote: %s.\n\nThe buyer would like the following add-ons removed while keeping the OTD the same:\n%s\nPlease revise your quote using this link: %s\n\nThank you,\nOutTheDoor Ops",
		dealerName, quoteSummary, textItems.String(), link)
	html := fmt.Sprintf(
		"<!doctype html><html><body><p>Hi %s,</p><p>Thanks for your quote: %s.</p><p>The buyer would like the following add-ons removed while keeping the OTD the same:</p><ul>%s</ul><p><a href=%q>Submit revised quote</a></p><p>Thank you,<br/>OutTheDoor Ops</p></body></html>",
		dealerName, quoteSummary, htmlItems.String(), link)

	return Message{
		To:      to,
		Subject: "OutTheDoor | Remove add-ons requested",
		Text:    text,
		HTML:    html,
	}
}

// CounterMatchTarget renders the buyer's request to hit a target OTD.
func CounterMatchTarget(to, dealerName, quoteSummary string, targetOTD decimal.Decimal, link string) Message {
	text := fmt.Sprintf(
		"Hi %s,\n\nThanks for your quote: %s.\n\nThe buyer is targeting an OTD of $%s with no add-ons.\n\nPlease revise your quote using this link: %s\n\nThank you,\nOutTheDoor Ops",
		dealerName, quoteSummary, targetOTD.StringFixed(2), link)
	html := fmt.Sprintf(
		"<!doctype html><html><body><p>Hi %s,</p><p>Thanks for your quote: %s.</p><p>The buyer is targeting an OTD of <strong>$%s</strong> with no add-ons.</p><p><a href=%q>Submit revised quote</a></p><p>Thank you,<br/>OutTheDoor Ops</p></body></html>",
		dealerName, quoteSummary, targetOTD.StringFixed(2), link)

	return Message{
		To:      to,
		Subject: "OutTheDoor | Match target OTD requested",
		Text:    text,
		HTML:    html,
	}
}
