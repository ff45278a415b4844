package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID           uuid.UUID `gorm:"primaryKey"               json:"id"`
	Username     string    `gorm:"uniqueIndex;not null"     json:"username"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

type Preset struct {
	ID          uuid.UUID `gorm:"primaryKey"      json:"id"`
	OwnerID     uuid.UUID `gorm:"index;not null"  json:"owner_id"`
	Name        string    `gorm:"not null"        json:"name"`
	Description string    `json:"description"`
	Price       float64   `gorm:"not null"        json:"price"`
	FileKey     string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p *Preset) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// IsFree reports whether the preset can be downloaded without a purchase.
func (p *Preset) IsFree() bool { return p.Price <= 0 }

type PresetPack struct {
	ID          uuid.UUID `gorm:"primaryKey"      json:"id"`
	OwnerID     uuid.UUID `gorm:"index;not null"  json:"owner_id"`
	Name        string    `gorm:"not null"        json:"name"`
	Description string    `json:"description"`
	Price       float64   `gorm:"not null"        json:"price"`
	FileKey     string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p *PresetPack) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (p *PresetPack) IsFree() bool { return p.Price <= 0 }

// Cart is one of a user's two lists. At most one row per (user, kind).
type Cart struct {
	ID        uuid.UUID `gorm:"primaryKey"                          json:"id"`
	UserID    uuid.UUID `gorm:"uniqueIndex:idx_user_kind;not null"  json:"user_id"`
	Kind      ListKind  `gorm:"uniqueIndex:idx_user_kind;not null"  json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CartItem is one line in a cart or wishlist. The unique index is what keeps a
// catalog item from appearing twice in the same list under concurrent adds.
type CartItem struct {
	ID        uuid.UUID `gorm:"primaryKey"                         json:"id"`
	CartID    uuid.UUID `gorm:"uniqueIndex:idx_cart_ref;not null"  json:"cart_id"`
	ItemKind  ItemKind  `gorm:"uniqueIndex:idx_cart_ref;not null"  json:"item_kind"`
	ItemID    uuid.UUID `gorm:"uniqueIndex:idx_cart_ref;not null"  json:"item_id"`
	Quantity  uint      `gorm:"default:1;check:quantity>0"         json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *CartItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// PriceHistory rows are append-only. A new row is written only when the price
// actually changed for its owner.
type PriceHistory struct {
	ID        uuid.UUID      `gorm:"primaryKey"                      json:"id"`
	OwnerKind PriceOwnerKind `gorm:"index:idx_price_owner;not null"  json:"owner_kind"`
	OwnerID   uuid.UUID      `gorm:"index:idx_price_owner;not null"  json:"owner_id"`
	Price     float64        `gorm:"not null"                        json:"price"`
	CreatedAt time.Time      `json:"created_at"`
}

func (p *PriceHistory) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

const OrderStatusCompleted = "completed"

// Order is written exactly once per completed checkout session; the session id
// is the idempotency key for webhook redelivery.
type Order struct {
	ID                uuid.UUID `gorm:"primaryKey"           json:"id"`
	UserID            uuid.UUID `gorm:"index;not null"       json:"user_id"`
	ProviderSessionID string    `gorm:"uniqueIndex;not null" json:"provider_session_id"`
	ProviderEventID   string    `gorm:"not null"             json:"provider_event_id"`
	Total             int64     `gorm:"not null"             json:"total"`
	Currency          string    `gorm:"not null"             json:"currency"`
	Status            string    `gorm:"not null"             json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderItem snapshots the amount actually charged, in minor units, decoupled
// from the live price ledger.
type OrderItem struct {
	ID         uuid.UUID `gorm:"primaryKey"      json:"id"`
	OrderID    uuid.UUID `gorm:"index;not null"  json:"order_id"`
	ItemKind   ItemKind  `gorm:"not null"        json:"item_kind"`
	ItemID     uuid.UUID `gorm:"not null"        json:"item_id"`
	UnitAmount int64     `gorm:"not null"        json:"unit_amount"`
	Quantity   uint      `gorm:"default:1"       json:"quantity"`
}

func (o *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// PresetDownload existing for (user, preset) is the entitlement proof for a
// paid preset. AmountPaid is in minor units, zero for free downloads.
type PresetDownload struct {
	ID         uuid.UUID `gorm:"primaryKey"                            json:"id"`
	UserID     uuid.UUID `gorm:"uniqueIndex:idx_user_preset;not null"  json:"user_id"`
	PresetID   uuid.UUID `gorm:"uniqueIndex:idx_user_preset;not null"  json:"preset_id"`
	AmountPaid int64     `json:"amount_paid"`
	CreatedAt  time.Time `json:"created_at"`
}

func (d *PresetDownload) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

type PresetPackDownload struct {
	ID         uuid.UUID `gorm:"primaryKey"                          json:"id"`
	UserID     uuid.UUID `gorm:"uniqueIndex:idx_user_pack;not null"  json:"user_id"`
	PackID     uuid.UUID `gorm:"uniqueIndex:idx_user_pack;not null"  json:"pack_id"`
	AmountPaid int64     `json:"amount_paid"`
	CreatedAt  time.Time `json:"created_at"`
}

func (d *PresetPackDownload) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// All is the migration set, leaves first.
func All() []any {
	return []any{
		&User{},
		&Preset{},
		&PresetPack{},
		&Cart{},
		&CartItem{},
		&PriceHistory{},
		&Order{},
		&OrderItem{},
		&PresetDownload{},
		&PresetPackDownload{},
	}
}
