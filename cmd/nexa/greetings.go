package main

import (
	"fmt"
	"io"
	"math/rand/v2"

	"github.com/charmbracelet/lipgloss"
)

var signedOutGreetings = [...]string{
	"Not every pack of tablets is what it says. Sign in and check yours.",
	"Your NAFDAC number lookup is one login away.",
	"Three referrals unlock early access. You have zero. For now.",
	"Fake drugs don't announce themselves. Verification does.",
	"The pharmacy down the road might be on NexaHealth. Find out.",
	"Your health records are waiting. Politely.",
	"Odogwu badges are earned, not given. Start with a login.",
	"A verified drug is a peaceful mind.",
	"Prescriptions, reports and verifications. All behind one door.",
	"Somebody just reported a fake drug. You could be next to help.",
}

// printSignedOutGreeting is what `nexa status` shows when nobody is signed in.
func printSignedOutGreeting(w io.Writer) {
	msg := signedOutGreetings[rand.IntN(len(signedOutGreetings))]

	title := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#14b8a6")).
		Bold(true).
		Render("NEXAHEALTH")

	quote := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Italic(true).
		Render(msg)

	hint := lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Render("Not signed in. To sign in: nexa login")

	fmt.Fprintf(w, "\n%s\n\n%s\n\n%s\n\n", title, quote, hint)
}
