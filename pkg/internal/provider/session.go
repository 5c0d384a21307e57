package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	"github.com/spf13/viper"
)

// SyntheticSessionPrefix marks locally generated stand-in session ids so
// they are recognizable in logs even outside this process.
const SyntheticSessionPrefix = "mock-call-"

// SessionRef distinguishes a provider-assigned call id from a local
// placeholder. Only confirmed ids may be persisted or used for provider
// pull calls.
type SessionRef struct {
	ID        string `json:"id"`
	Confirmed bool   `json:"confirmed"`
}

func SyntheticSession() SessionRef {
	return SessionRef{ID: SyntheticSessionPrefix + uuid.NewString(), Confirmed: false}
}

// StartSession opens a live call room for the interview and mints the join
// credentials the candidate client needs. When the realtime credentials are
// not configured it hands back a synthetic session and a join config flagged
// as mock, so the rest of the flow keeps working in local setups.
func StartSession(ctx context.Context, agentID, roomName, identity string) (SessionRef, map[string]any, error) {
	if viper.GetString("calling.public_key") == "" || viper.GetString("calling.api_key") == "" {
		session := SyntheticSession()
		return session, map[string]any{
			"mock": true,
			"room": roomName,
		}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	room, err := Lk.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:         roomName,
		EmptyTimeout: viper.GetUint32("calling.empty_timeout_duration"),
		Metadata:     fmt.Sprintf(`{"agent_id":%q}`, agentID),
	})
	if err != nil {
		return SessionRef{}, nil, fmt.Errorf("remote livekit error: %v", err)
	}

	grant := &auth.VideoGrant{
		Room:     roomName,
		RoomJoin: true,
	}

	duration := time.Second * time.Duration(viper.GetInt("calling.token_duration"))
	if duration <= 0 {
		duration = 2 * time.Hour
	}
	tk := auth.NewAccessToken(viper.GetString("calling.api_key"), viper.GetString("calling.api_secret"))
	tk.AddGrant(grant).SetIdentity(identity).SetValidFor(duration)

	jwt, err := tk.ToJWT()
	if err != nil {
		return SessionRef{}, nil, err
	}

	sessionID := room.Sid
	if sessionID == "" {
		sessionID = roomName
	}

	return SessionRef{ID: sessionID, Confirmed: true}, map[string]any{
		"endpoint": viper.GetString("calling.endpoint"),
		"room":     roomName,
		"token":    jwt,
	}, nil
}
