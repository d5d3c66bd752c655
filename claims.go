package authkit

import (
	"encoding/json"

	"github.com/golang-jwt/jwt/v5"
)

// tokenSubject is the backend's JWT subject payload.
type tokenSubject struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// peekClaims reads identity hints out of an access token without verifying
// its signature. The backend is the only party that validates tokens; the
// client just needs the user id and tier to label the session after a
// restore. Missing or unreadable claims are not an error.
func peekClaims(accessToken string) (userID string, tier UserTier) {
	tier = TierFreemium

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return "", tier
	}

	switch sub := claims["sub"].(type) {
	case string:
		// The backend serializes the subject as a JSON object inside the
		// standard string claim.
		var subject tokenSubject
		if err := json.Unmarshal([]byte(sub), &subject); err == nil && subject.ID != "" {
			userID = subject.ID
		} else {
			userID = sub
		}
	case map[string]any:
		if id, ok := sub["id"].(string); ok {
			userID = id
		}
	}

	if raw, ok := claims["tier"].(string); ok {
		if t := UserTier(raw); t.Valid() {
			tier = t
		}
	}

	return userID, tier
}
