package notification

import "fmt"

const confirmationReminder = "Please confirm your match within 24 hours."

func availabilityRequestText() string {
	return "Are you available to host students this week? If so, how many students can you host? Please reply with 'Yes <number>' or 'No'."
}

func matchCreatedHostText(numGuests int, location string) string {
	return fmt.Sprintf("You have a new student match! %d guests from %s are interested in staying with you. %s", numGuests, location, confirmationReminder)
}

func matchCreatedStudentText(location string) string {
	return fmt.Sprintf("You have been matched with a host in %s! %s", location, confirmationReminder)
}

func matchExpiredText(location string) string {
	return fmt.Sprintf("Your match in %s expired because it was not confirmed by both sides within 24 hours.", location)
}

func matchConfirmedText(location string) string {
	return fmt.Sprintf("Your match in %s is confirmed by both sides. Enjoy the stay!", location)
}

const (
	ReplyAvailableText   = "Great! You've confirmed hosting."
	ReplyUnavailableText = "No problem, we will find another student."
	ReplyHelpText        = "Reply with 'Yes' to confirm or 'No' to decline."
)
