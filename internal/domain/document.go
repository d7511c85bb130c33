package domain

import (
	"fmt"
	"slices"
	"time"
)

// Document is the whole persisted state: owner and admin sets, economy
// records and the shop catalog.
type Document struct {
	Owners []string   `json:"owners"`
	Admins []string   `json:"admins"`
	Users  UserTable  `json:"users"`
	Shop   []ShopItem `json:"shop"`
}

// NewDocument is the state of a fresh deployment.
func NewDocument(supremeOwner string) *Document {
	d := &Document{
		Owners: []string{},
		Admins: []string{},
		Users:  NewUserTable(),
		Shop:   DefaultShop(),
	}
	if supremeOwner != "" {
		d.Owners = append(d.Owners, supremeOwner)
	}
	return d
}

func (d *Document) Clone() *Document {
	return &Document{
		Owners: append([]string{}, d.Owners...),
		Admins: append([]string{}, d.Admins...),
		Users:  d.Users.clone(),
		Shop:   append([]ShopItem{}, d.Shop...),
	}
}

// Validate rejects documents that could not have been produced by this
// program. Loading such a document is fatal.
func (d *Document) Validate() error {
	for _, id := range d.Owners {
		if id == "" {
			return fmt.Errorf("owners: empty actor id")
		}
	}
	for _, id := range d.Admins {
		if id == "" {
			return fmt.Errorf("admins: empty actor id")
		}
	}
	var err error
	d.Users.Each(func(id string, u *User) bool {
		switch {
		case id == "":
			err = fmt.Errorf("users: empty actor id")
		case u == nil:
			err = fmt.Errorf("users[%s]: null record", id)
		case u.Coins < 0:
			err = fmt.Errorf("users[%s]: negative coins %d", id, u.Coins)
		case u.MessageCount < 0:
			err = fmt.Errorf("users[%s]: negative messageCount %d", id, u.MessageCount)
		}
		return err == nil
	})
	if err != nil {
		return err
	}
	for _, item := range d.Shop {
		if item.Price < 0 {
			return fmt.Errorf("shop[%d]: negative price", item.ID)
		}
	}
	return nil
}

func (d *Document) IsOwner(id string) bool {
	return slices.Contains(d.Owners, id)
}

// AddOwner reports whether id was newly added.
func (d *Document) AddOwner(id string) bool {
	if d.IsOwner(id) {
		return false
	}
	d.Owners = append(d.Owners, id)
	return true
}

func (d *Document) IsAdmin(id string) bool {
	return slices.Contains(d.Admins, id)
}

func (d *Document) AddAdmin(id string) bool {
	if d.IsAdmin(id) {
		return false
	}
	d.Admins = append(d.Admins, id)
	return true
}

func (d *Document) RemoveAdmin(id string) bool {
	i := slices.Index(d.Admins, id)
	if i < 0 {
		return false
	}
	d.Admins = slices.Delete(d.Admins, i, i+1)
	return true
}

// EnsureUser returns the record for id, creating it if absent.
func (d *Document) EnsureUser(id string, now time.Time, initialCoins int64) *User {
	if u, ok := d.Users.Get(id); ok {
		return u
	}
	u := NewUser(now, initialCoins)
	d.Users.Put(id, u)
	return u
}
