package cache

import (
	"fmt"
	"strings"
	"time"
)

// Key is a semantic query identifier.
type Key string

func (k Key) String() string { return string(k) }

func UserCartKey(userID int64) Key       { return Key(fmt.Sprintf("user:%d:cart", userID)) }
func GuestCartKey(guestID string) Key    { return Key(fmt.Sprintf("guest:%s:cart", guestID)) }
func ProfileKey(userID int64) Key        { return Key(fmt.Sprintf("user:%d:profile", userID)) }
func AddressesKey(userID int64) Key      { return Key(fmt.Sprintf("user:%d:addresses", userID)) }
func SavedVouchersKey(userID int64) Key  { return Key(fmt.Sprintf("user:%d:vouchers", userID)) }
func GuestAddressKey(guestID string) Key { return Key(fmt.Sprintf("guest:%s:address", guestID)) }

const (
	CollectionsKey   Key = "admin:collections"
	AdminVouchersKey Key = "admin:vouchers"
	StaffKey         Key = "admin:staff"
)

func StatisticsKey(from, to time.Time) Key {
	return Key(fmt.Sprintf("admin:statistics:%s:%s", from.Format(time.DateOnly), to.Format(time.DateOnly)))
}

// IsCartKey reports whether k identifies a user or guest cart.
func IsCartKey(k Key) bool {
	return strings.HasSuffix(string(k), ":cart")
}
