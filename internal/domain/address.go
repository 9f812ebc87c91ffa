package domain

import "strings"

type Address struct {
	ID            int64  `json:"id,omitempty" bson:"-"`
	RecipientName string `json:"recipientName" bson:"recipient_name"`
	Province      string `json:"province" bson:"province"`
	District      string `json:"district" bson:"district"`
	Ward          string `json:"ward" bson:"ward"`
	AddressDetail string `json:"addressDetail" bson:"address_detail"`
	Phone         string `json:"phone" bson:"phone"`
	IsDefault     bool   `json:"isDefault" bson:"-"`
}

// Validate checks the required shipping fields.
func (a Address) Validate() error {
	required := []struct {
		field, value string
	}{
		{"recipient_name", a.RecipientName},
		{"phone", a.Phone},
		{"province", a.Province},
		{"district", a.District},
		{"ward", a.Ward},
		{"address_detail", a.AddressDetail},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return NewValidationError(r.field, r.field+" is required")
		}
	}
	return nil
}

// DefaultAddress returns the address marked default, if any.
func DefaultAddress(addresses []Address) (Address, bool) {
	for _, a := range addresses {
		if a.IsDefault {
			return a, true
		}
	}
	return Address{}, false
}
