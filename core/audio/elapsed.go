package audio

import "fmt"

// FormatElapsed renders whole seconds as MM:SS. Minutes are not capped, so an
// hour and a half reads "90:00".
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
