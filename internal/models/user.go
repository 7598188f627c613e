package models

import "time"

// DeletedUserName is shown in place of users that no longer exist.
const DeletedUserName = "[مستخدم محذوف]"

// UserInfo is the display projection of a user.
type UserInfo struct {
	ID        string     `json:"id" db:"id"`
	UserID    string     `json:"userId" db:"public_id"`
	Name      string     `json:"name" db:"name"`
	Avatar    string     `json:"avatar" db:"avatar"`
	IsOnline  bool       `json:"isOnline" db:"is_online"`
	LastSeen  *time.Time `json:"lastSeen,omitempty" db:"last_seen"`
	IsDeleted bool       `json:"isDeleted,omitempty" db:"-"`
}

// DeletedUserPlaceholder is returned for references to users that were removed.
func DeletedUserPlaceholder(id string) UserInfo {
	return UserInfo{ID: id, Name: DeletedUserName, IsDeleted: true}
}

// Settings are the per-user notification toggles gating offline push.
type Settings struct {
	FriendsMessages          bool `json:"friendsMessages" db:"friends_messages"`
	SystemMessages           bool `json:"systemMessages" db:"system_messages"`
	GiftsFromPossibleFriends bool `json:"giftsFromPossibleFriends" db:"gifts_from_possible_friends"`
	AddFollowers             bool `json:"addFollowers" db:"add_followers"`
}

// DefaultSettings applies to users without a stored settings row.
func DefaultSettings() Settings {
	return Settings{
		FriendsMessages:          true,
		SystemMessages:           true,
		GiftsFromPossibleFriends: true,
		AddFollowers:             true,
	}
}
