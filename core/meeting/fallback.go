package meeting

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const fallbackPrefix = "live-"

var NowFunc = time.Now // mockable

type fallbackGenerator struct {
	baseURL string
}

func (g fallbackGenerator) generate(Description) Credentials {
	id := fallbackPrefix + strconv.FormatInt(NowFunc().UnixMilli(), 10)
	return Credentials{
		MeetingURL:      strings.TrimRight(g.baseURL, "/") + "/" + id,
		MeetingID:       id,
		MeetingPassword: fallbackPassword(),
	}
}

// fallbackPassword returns 8 uppercase hex characters taken from the random bytes of a v4 UUID.
func fallbackPassword() string {
	id := uuid.New()
	return strings.ToUpper(hex.EncodeToString(id[:4]))
}

// IsFallbackMeeting reports whether the meeting was generated locally rather than by a provider.
func IsFallbackMeeting(meetingID string) bool {
	return strings.HasPrefix(meetingID, fallbackPrefix)
}
