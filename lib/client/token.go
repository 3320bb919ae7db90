package client

import (
	"encoding/json"

	"github.com/stagegate/stagegate-go/lib/base64ct"
)

// Token is an affine session credential: a sealed blob the client never
// inspects. Every operation that accepts a Token consumes it; consuming the
// same Token twice panics. Most flow steps yield a replacement; a
// successful RevokeTokens or ConfirmDeletion.Confirm, and Export, yield
// none. Tokens travel on the wire base64-unpadded through the
// constant-time codec.
type Token struct {
	raw      []byte
	consumed bool
}

// ImportToken restores a Token from its unpadded-base64 encoding, e.g.
// one previously persisted with Export.
func ImportToken(encoded string) (*Token, error) {
	raw, err := base64ct.Decode(encoded)
	if err != nil {
		return nil, err
	}
	return &Token{raw: raw}, nil
}

// take consumes the token. The panic on reuse is deliberate: a consumed
// token no longer exists as far as the provider is concerned, and sending
// it would silently log the user out.
func (t *Token) take() []byte {
	if t == nil {
		panic("client: use of nil session token")
	}
	if t.consumed {
		panic("client: session token already consumed")
	}
	t.consumed = true
	return t.raw
}

// takeEncoded consumes the token and returns its wire encoding.
func (t *Token) takeEncoded() string {
	return base64ct.Encode(t.take())
}

// Export consumes the token and returns its encoding for persistence.
// Restore with ImportToken.
func (t *Token) Export() string {
	return t.takeEncoded()
}

// MarshalJSON encodes the token without consuming it; serializing a flow
// state must leave the in-process state usable.
func (t *Token) MarshalJSON() ([]byte, error) {
	if t.consumed {
		panic("client: serializing a consumed session token")
	}
	return json.Marshal(base64ct.Encode(t.raw))
}

// UnmarshalJSON decodes a token from its wire encoding.
func (t *Token) UnmarshalJSON(data []byte) error {
	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return err
	}
	raw, err := base64ct.Decode(encoded)
	if err != nil {
		return err
	}
	t.raw = raw
	t.consumed = false
	return nil
}

// Ticket is a single-use recovery permit. It shares the Token wire shape
// but is redeemed as the envelope permit and invalidated server-side on
// first use.
type Ticket struct {
	raw      []byte
	consumed bool
}

// ImportTicket restores a Ticket from its unpadded-base64 encoding.
func ImportTicket(encoded string) (*Ticket, error) {
	raw, err := base64ct.Decode(encoded)
	if err != nil {
		return nil, err
	}
	return &Ticket{raw: raw}, nil
}

func (t *Ticket) take() []byte {
	if t == nil {
		panic("client: use of nil recovery ticket")
	}
	if t.consumed {
		panic("client: recovery ticket already consumed")
	}
	t.consumed = true
	return t.raw
}

func (t *Ticket) takeEncoded() string {
	return base64ct.Encode(t.take())
}

// Export consumes the ticket and returns its encoding for hand-off to the
// target user.
func (t *Ticket) Export() string {
	return t.takeEncoded()
}

// UnmarshalJSON decodes a ticket from its wire encoding.
func (t *Ticket) UnmarshalJSON(data []byte) error {
	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return err
	}
	raw, err := base64ct.Decode(encoded)
	if err != nil {
		return err
	}
	t.raw = raw
	t.consumed = false
	return nil
}

// PeekedToken is the outcome of a token check. NewToken replaces the
// checked token, which is dead; discarding NewToken silently logs the
// user out on the next check.
type PeekedToken struct {
	UserID   string `json:"user_id"`
	NewToken *Token `json:"new_token"`
}

// Opaque is a deliberately detail-free failure: the provider refuses to
// tell a potentially malicious caller why it said no.
type Opaque struct{}

func (Opaque) String() string {
	return "request refused"
}
