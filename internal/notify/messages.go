package notify

// Picker chooses an index in [0, n).
type Picker interface {
	IntN(n int) int
}

var sarcasticRemarks = []string{
	"Oh look, another 'important' social media break! 🙄",
	"Surely this YouTube video is totally work-related, right? 😏",
	"Breaking news: Your task is still waiting while you scroll! 📱",
	"Productivity level: Expert procrastinator! 🏆",
	"Task: Still incomplete. Distractions: Mastered! 🎯",
}

var focusedRemarks = []string{
	"Great job staying focused! 💪",
	"Productivity mode: ACTIVATED! ⚡",
	"Task progress: Moving forward! 🚀",
	"Focus level: Maximum! 🎯",
	"You're crushing it! Keep going! 🔥",
}

// SarcasticRemark returns a canned message for a distraction.
func SarcasticRemark(p Picker) string {
	return sarcasticRemarks[p.IntN(len(sarcasticRemarks))]
}

// FocusedRemark returns a canned message for a focused tick.
func FocusedRemark(p Picker) string {
	return focusedRemarks[p.IntN(len(focusedRemarks))]
}
