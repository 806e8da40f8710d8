// Package session maps chat events to persistent conversation state.
//
// Every event is attributed to a session key derived from the OneBot
// sender. Group messages share one conversation per member, so the key
// combines the group and user identifiers. Per-user preferences live
// under a separate "users/" namespace so they apply across sessions.
package session

// Key returns the conversation key for a sender. Group messages get a
// combined "group_user" key, direct messages use the user ID alone.
func Key(userID, groupID string) string {
	if groupID != "" {
		return groupID + "_" + userID
	}
	return userID
}

// SettingsKey returns the storage key for a user's preferences.
func SettingsKey(userID string) string {
	return "users/" + userID
}
