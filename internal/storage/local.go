package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NguyenTrgKien/manage-sell-client-sub001/internal/domain"
)

// SchemaVersion is the current shape of a persisted guest document.
const SchemaVersion = 1

var (
	ErrUnsupportedSchema = errors.New("unsupported guest document schema")
	ErrEntryNotFound     = errors.New("cart entry not found")
)

// LocalStore holds the durable state of a guest device: the cart list and the
// single most-recent address.
//
// The entry operations change one variant in place, so writers on different
// instances never overwrite each other's edits to other entries.
type LocalStore interface {
	LoadCart(ctx context.Context, guestID string) ([]domain.LocalCartEntry, error)
	SaveCart(ctx context.Context, guestID string, entries []domain.LocalCartEntry) error
	// AddEntry adds quantity to the variant's entry, appending one if absent.
	// The stored quantity is capped at limit.
	AddEntry(ctx context.Context, guestID string, variantID int64, quantity, limit int) error
	// StepEntry moves the variant's quantity one unit in the direction of
	// delta and clamps it to [1, limit]. It returns ErrEntryNotFound when the
	// cart has no such entry.
	StepEntry(ctx context.Context, guestID string, variantID int64, delta, limit int) error
	// RemoveEntries drops the given variants. Absent variants are ignored.
	RemoveEntries(ctx context.Context, guestID string, variantIDs ...int64) error
	LoadGuestAddress(ctx context.Context, guestID string) (*domain.Address, error)
	SaveGuestAddress(ctx context.Context, guestID string, addr domain.Address) error
}

// guestDocument is the persisted shape of everything a guest device owns.
type guestDocument struct {
	GuestID       string                  `bson:"guest_id"`
	SchemaVersion int                     `bson:"schema_version"`
	Cart          []domain.LocalCartEntry `bson:"cart"`
	Address       *domain.Address         `bson:"address,omitempty"`
	UpdatedAt     time.Time               `bson:"updated_at"`
}

// upgrade brings a stored document to SchemaVersion and normalizes it.
// Version 0 documents predate the field and share the version 1 layout.
func (d *guestDocument) upgrade() error {
	switch {
	case d.SchemaVersion > SchemaVersion:
		return fmt.Errorf("%w: version %d", ErrUnsupportedSchema, d.SchemaVersion)
	case d.SchemaVersion == 0:
		d.SchemaVersion = SchemaVersion
	}
	d.Cart = NormalizeEntries(d.Cart)
	return nil
}

// NormalizeEntries drops entries with no variant or a non-positive quantity and
// folds duplicate variants into the first occurrence, keeping list order.
func NormalizeEntries(entries []domain.LocalCartEntry) []domain.LocalCartEntry {
	out := make([]domain.LocalCartEntry, 0, len(entries))
	index := make(map[int64]int, len(entries))
	for _, e := range entries {
		if e.VariantID <= 0 || e.Quantity <= 0 {
			continue
		}
		if i, ok := index[e.VariantID]; ok {
			out[i].Quantity += e.Quantity
			continue
		}
		index[e.VariantID] = len(out)
		out = append(out, e)
	}
	return out
}

func copyEntries(entries []domain.LocalCartEntry) []domain.LocalCartEntry {
	out := make([]domain.LocalCartEntry, len(entries))
	copy(out, entries)
	return out
}
