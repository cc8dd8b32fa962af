package services

import "strings"

// BanPolicy is an injected set-membership check. Banned accounts are
// rejected before any draw resolution happens.
type BanPolicy interface {
	IsBanned(username string) bool
}

// StaticBanList is the env-configured implementation; usernames are
// matched case-insensitively.
type StaticBanList struct {
	set map[string]struct{}
}

func NewStaticBanList(usernames []string) *StaticBanList {
	set := make(map[string]struct{}, len(usernames))
	for _, name := range usernames {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			set[name] = struct{}{}
		}
	}
	return &StaticBanList{set: set}
}

// ParseBanList splits a comma-separated env value into a ban list.
func ParseBanList(raw string) *StaticBanList {
	if raw == "" {
		return NewStaticBanList(nil)
	}
	return NewStaticBanList(strings.Split(raw, ","))
}

func (b *StaticBanList) IsBanned(username string) bool {
	_, banned := b.set[strings.ToLower(username)]
	return banned
}
