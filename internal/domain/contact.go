package domain

import "time"

// Contact is an address-book entry owned by one account.
type Contact struct {
	ID        string
	AccountID string
	Name      string
	Email     string
	CreatedAt time.Time
}

type ContactGroup struct {
	ID        string
	AccountID string
	Name      string
	CreatedAt time.Time
}

type GroupMemberType string

const (
	GroupMemberContact        GroupMemberType = "contact"
	GroupMemberSponsoredAgent GroupMemberType = "sponsored_agent"
)

type ContactGroupMember struct {
	GroupID    string
	MemberType GroupMemberType
	MemberID   string
}

// User is a login belonging to an account; sponsored-agent recipients
// resolve to the earliest-created user's email.
type User struct {
	ID        string
	AccountID string
	Email     string
	CreatedAt time.Time
}
