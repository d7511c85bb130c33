package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UserTable is an insertion-ordered map of actor id to User. It encodes as a
// JSON object and decoding keeps the object's key order, so iteration order
// survives a save/load cycle.
type UserTable struct {
	order []string
	byID  map[string]*User
}

func NewUserTable() UserTable {
	return UserTable{byID: make(map[string]*User)}
}

func (t *UserTable) Len() int {
	return len(t.order)
}

func (t *UserTable) Get(id string) (*User, bool) {
	u, ok := t.byID[id]
	return u, ok
}

// Put inserts or replaces a record. Replacing keeps the original position.
func (t *UserTable) Put(id string, u *User) {
	if t.byID == nil {
		t.byID = make(map[string]*User)
	}
	if _, exists := t.byID[id]; !exists {
		t.order = append(t.order, id)
	}
	t.byID[id] = u
}

// Each visits records in insertion order until fn returns false.
func (t *UserTable) Each(fn func(id string, u *User) bool) {
	for _, id := range t.order {
		if !fn(id, t.byID[id]) {
			return
		}
	}
}

func (t *UserTable) IDs() []string {
	return append([]string(nil), t.order...)
}

func (t UserTable) clone() UserTable {
	out := UserTable{
		order: append([]string(nil), t.order...),
		byID:  make(map[string]*User, len(t.byID)),
	}
	for id, u := range t.byID {
		cp := *u
		out.byID[id] = &cp
	}
	return out
}

func (t UserTable) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range t.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(t.byID[id])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (t *UserTable) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("users: %w", err)
	}
	if tok == nil {
		*t = NewUserTable()
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("users: expected object, got %v", tok)
	}

	fresh := NewUserTable()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("users: %w", err)
		}
		id, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("users: expected key, got %v", keyTok)
		}
		var u User
		if err := dec.Decode(&u); err != nil {
			return fmt.Errorf("users[%s]: %w", id, err)
		}
		fresh.Put(id, &u)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("users: %w", err)
	}
	*t = fresh
	return nil
}
