package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

type RecipientType string

const (
	RecipientContact        RecipientType = "contact"
	RecipientSponsoredAgent RecipientType = "sponsored_agent"
	RecipientGroup          RecipientType = "group"
	RecipientManualEmail    RecipientType = "manual_email"
)

// RecipientDescriptor is the tagged union stored inside
// Schedule.Recipients. Exactly one of ID or Email is meaningful
// depending on Type. The serialized form also accepts a legacy bare
// email string, decoded as a manual_email descriptor.
type RecipientDescriptor struct {
	Type  RecipientType `json:"type"`
	ID    string        `json:"id,omitempty"`
	Email string        `json:"email,omitempty"`
}

func ContactRecipient(contactID string) RecipientDescriptor {
	return RecipientDescriptor{Type: RecipientContact, ID: contactID}
}

func SponsoredAgentRecipient(accountID string) RecipientDescriptor {
	return RecipientDescriptor{Type: RecipientSponsoredAgent, ID: accountID}
}

func GroupRecipient(groupID string) RecipientDescriptor {
	return RecipientDescriptor{Type: RecipientGroup, ID: groupID}
}

func ManualEmailRecipient(email string) RecipientDescriptor {
	return RecipientDescriptor{Type: RecipientManualEmail, Email: email}
}

func (d *RecipientDescriptor) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var email string
		if err := json.Unmarshal(data, &email); err != nil {
			return fmt.Errorf("decode legacy recipient: %w", err)
		}
		*d = ManualEmailRecipient(email)
		return nil
	}

	type alias RecipientDescriptor
	var decoded alias
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("decode recipient descriptor: %w", err)
	}
	*d = RecipientDescriptor(decoded)
	return d.validate()
}

func (d RecipientDescriptor) validate() error {
	switch d.Type {
	case RecipientContact, RecipientSponsoredAgent, RecipientGroup:
		if d.ID == "" {
			return fmt.Errorf("recipient type %s requires an id", d.Type)
		}
	case RecipientManualEmail:
		if d.Email == "" {
			return fmt.Errorf("manual_email recipient requires an email")
		}
	default:
		return fmt.Errorf("unknown recipient type: %s", d.Type)
	}
	return nil
}

// DecodeRecipients parses the serialized recipients column.
func DecodeRecipients(data []byte) ([]RecipientDescriptor, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var descriptors []RecipientDescriptor
	if err := json.Unmarshal(data, &descriptors); err != nil {
		return nil, fmt.Errorf("decode recipients: %w", err)
	}
	return descriptors, nil
}

// EncodeRecipients serializes descriptors for the recipients column.
func EncodeRecipients(descriptors []RecipientDescriptor) ([]byte, error) {
	if len(descriptors) == 0 {
		return []byte("[]"), nil
	}
	encoded, err := json.Marshal(descriptors)
	if err != nil {
		return nil, fmt.Errorf("encode recipients: %w", err)
	}
	return encoded, nil
}
