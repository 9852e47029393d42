package realtime

import (
	"sort"

	"github.com/google/uuid"
	"github.com/tendant/teamsync/pkg/domain"
)

// Presence collapses room subscribers into one entry per user, ordered by email.
func Presence(subscribers []domain.Identity) []PresenceUser {
	seen := make(map[uuid.UUID]struct{}, len(subscribers))
	users := make([]PresenceUser, 0, len(subscribers))
	for _, id := range subscribers {
		if _, ok := seen[id.UserID]; ok {
			continue
		}
		seen[id.UserID] = struct{}{}
		users = append(users, PresenceUser{UserID: id.UserID, Email: id.Email})
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Email != users[j].Email {
			return users[i].Email < users[j].Email
		}
		return users[i].UserID.String() < users[j].UserID.String()
	})
	return users
}
