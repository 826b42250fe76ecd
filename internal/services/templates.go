package services

import (
	"fmt"
	"math/rand"
)

// Message copy for the bot. The tone is "supportive friend", carried
// over from the original product texts.

const HelpText = `👋 Hi! I'm here to help you keep your word to yourself.
I remind you - you answer with plain text, like SMS.

Commands:
• ADD - create a habit
• LIST - your habits
• RETIME <id> <times> - change reminder times
• DELETE <id> - remove a habit
• CHECK - check in right now

When I ask about a habit, just reply:
• "yes"
• "no, because I was tired"`

const AskHabitTitleText = `Ok, let's create a habit.
Send it in one message.
Example: "Water - 2 glasses" or "Abs, 10 minutes".`

const AskHabitSlotsText = `Now send the reminder time(s).
Format is strictly HH:MM.
Several are fine, comma-separated.
Example: 09:00,12:00,18:30`

const BadSlotFormatText = `Almost 🙂 The format is strictly HH:MM (00:00-23:59).
Example: 07:00 or 21:30.
Several: 09:00,12:00,18:00`

const AskReasonText = `Ok. I only close the mark after a reason.
One message: why didn't it happen?
Example: "tired", "forgot", "no time".`

const SessionDoneText = "That's all for this check-in. Talk to you at the next reminder 👋"

const SessionActiveText = "Let's finish the current check-in first - answer the question above 🙂"

const RepromptText = `I didn't catch that. Reply:
• "yes"
• "no, because ..."`

var doneReplies = []string{
	"Logged ✅ Nice. You just made the habit stronger - that's real strength.",
	"Got it! +1 to discipline. Calm and factual - that's how results are built.",
	"Done ✅ Right now you're running the day, not the other way around.",
	"Excellent. Every small \"done\" makes you more reliable to yourself.",
	"Counted ✅ It's not the mood that decides - the habit decides. And you showed it.",
}

var missAcks = []string{
	"Noted. Thanks for being honest. Tomorrow we get the rhythm back, no heroics.",
	"Ok, written down. No self-blame - we tune the system. Tomorrow gets easier.",
	"Understood. It happens. The point is you didn't hide. Tomorrow we take revenge.",
}

// DoneReply picks a rotating acknowledgment for a completed habit
func DoneReply() string {
	return doneReplies[rand.Intn(len(doneReplies))]
}

// MissAck picks a rotating acknowledgment for a missed habit
func MissAck() string {
	return missAcks[rand.Intn(len(missAcks))]
}

// CheckinPrompt formats the question for one habit in the queue
func CheckinPrompt(title string, position, total int) string {
	return fmt.Sprintf("Check-in (%d/%d): did you do *%s*?\nReply \"yes\" or \"no, because ...\"",
		position, total, title)
}
