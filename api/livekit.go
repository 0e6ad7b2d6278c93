package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/tekimax/tekimax-api/upstream/livekit"
)

type livekitBody struct {
	Room     string `json:"room"`
	Identity string `json:"identity"`
	Name     string `json:"name" validate:"max=128"`
	Metadata string `json:"metadata" validate:"max=4096"`
}

type livekitResponse struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *server) livekitToken(w http.ResponseWriter, r *http.Request) {
	if s.LiveKit == nil {
		notConfigured(w, "livekit")
		return
	}
	var body livekitBody
	if !decode(w, r, &body) {
		return
	}

	fields := fieldErrors(validate.Struct(body))
	if fields == nil {
		fields = map[string]string{}
	}
	if !livekit.ValidName(body.Room) {
		fields["room"] = "must match [A-Za-z0-9_-]{1,128}"
	}
	if !livekit.ValidName(body.Identity) {
		fields["identity"] = "must match [A-Za-z0-9_-]{1,128}"
	}
	if len(fields) > 0 {
		writeValidation(w, fields)
		return
	}

	token, exp, err := s.LiveKit.Issue(livekit.Grant{
		Room:     body.Room,
		Identity: body.Identity,
		Name:     body.Name,
		Metadata: body.Metadata,
	})
	switch {
	case errors.Is(err, livekit.ErrNotConfigured):
		notConfigured(w, "livekit")
		return
	case err != nil:
		upstreamFailed(w, r, "livekit", err)
		return
	}
	writeJSON(w, http.StatusOK, livekitResponse{Token: token, URL: s.LiveKitURL, ExpiresAt: exp.UTC()})
}
