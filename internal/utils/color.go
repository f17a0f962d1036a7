package utils

// Presence palette. Small and fixed so the same user renders the same
// color on every session and every client.
var presenceColors = []string{
	"#F87171", "#60A5FA", "#34D399", "#FBBF24", "#A78BFA", "#F472B6", "#FCD34D",
}

// ColorFor hashes a user id into the presence palette.
func ColorFor(userID string) string {
	var hash uint32
	for _, c := range userID {
		hash += uint32(c)
	}
	return presenceColors[hash%uint32(len(presenceColors))]
}
