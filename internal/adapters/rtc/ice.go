package rtc

import (
	"errors"
	"fmt"

	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// DefaultSTUN is used when nothing is configured.
const DefaultSTUN = "stun:stun.l.google.com:19302"

var ErrTURNCredentials = errors.New("turn server needs username and credential")

// ICEServers builds the ICE configuration handed to browser peers. The server never
// opens a peer connection itself; calls are a client-side mesh. STUN urls are grouped
// into one entry and TURN urls into another carrying the credentials.
func ICEServers(urls []string, username, credential string) ([]webrtc.ICEServer, error) {
	if len(urls) == 0 {
		urls = []string{DefaultSTUN}
	}

	var stunURLs, turnURLs []string
	for _, raw := range urls {
		u, err := stun.ParseURI(raw)
		if err != nil {
			return nil, fmt.Errorf("ice server %q: %w", raw, err)
		}
		switch u.Scheme {
		case stun.SchemeTypeTURN, stun.SchemeTypeTURNS:
			turnURLs = append(turnURLs, raw)
		default:
			stunURLs = append(stunURLs, raw)
		}
	}

	out := make([]webrtc.ICEServer, 0, 2)
	if len(stunURLs) > 0 {
		out = append(out, webrtc.ICEServer{URLs: stunURLs})
	}
	if len(turnURLs) > 0 {
		if username == "" || credential == "" {
			return nil, ErrTURNCredentials
		}
		out = append(out, webrtc.ICEServer{URLs: turnURLs, Username: username, Credential: credential})
	}
	log.Info().Str("module", "rtc").Int("stun", len(stunURLs)).Int("turn", len(turnURLs)).Msg("ice servers configured")
	return out, nil
}
