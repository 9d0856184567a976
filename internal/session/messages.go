package session

// User-facing error texts surfaced by the session. The credential
// message invites re-selection; everything else is terminal per attempt.
const (
	logoFailurePrefix = "Logo generation failed: "

	genericVideoFailure = "Video animation failed. Please try again."

	credentialRejectedMessage = "Your API credential was not accepted. Please select a valid credential and try again."
)

// progressMessages rotate on a fixed timer while an animation is in
// flight. They are cosmetic and independent of actual remote progress.
var progressMessages = []string{
	"Warming up the animation engine...",
	"Sketching motion keyframes...",
	"Bringing your logo to life...",
	"Rendering frames...",
	"Polishing the final cut...",
	"Almost there, adding finishing touches...",
}
