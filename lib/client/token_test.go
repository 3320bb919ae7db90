package client

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagegate/stagegate-go/lib/base64ct"
)

func TestTokenImportExport(t *testing.T) {
	encoded := encodedToken("sealed-blob")

	tok, err := ImportToken(encoded)
	require.NoError(t, err)
	assert.Equal(t, encoded, tok.Export())
}

func TestTokenAffinity(t *testing.T) {
	tok := importToken(t, "sealed-blob")
	_ = tok.Export()

	assert.Panics(t, func() { tok.Export() }, "second consumption panics")

	var nilTok *Token
	assert.Panics(t, func() { nilTok.Export() }, "nil token panics on use")
}

func TestTokenImportRejectsBadEncoding(t *testing.T) {
	_, err := ImportToken("!!invalid!!")
	assert.ErrorIs(t, err, base64ct.ErrInvalidEncoding)

	_, err = ImportTicket("!!invalid!!")
	assert.ErrorIs(t, err, base64ct.ErrInvalidEncoding)
}

func TestTokenJSONDoesNotConsume(t *testing.T) {
	tok := importToken(t, "sealed-blob")

	data, err := json.Marshal(tok)
	require.NoError(t, err)
	assert.Equal(t, `"`+encodedToken("sealed-blob")+`"`, string(data))

	// Marshalling peeks; the token is still live.
	assert.Equal(t, encodedToken("sealed-blob"), tok.Export())

	// But a consumed token must not be serialized.
	assert.Panics(t, func() { _, _ = json.Marshal(tok) })
}

func TestTokenJSONRoundTrip(t *testing.T) {
	var tok Token
	require.NoError(t, json.Unmarshal([]byte(`"`+encodedToken("wire-token")+`"`), &tok))
	assert.Equal(t, encodedToken("wire-token"), tok.Export())

	var bad Token
	assert.Error(t, json.Unmarshal([]byte(`"!!bad!!"`), &bad))
}

func TestTicketAffinity(t *testing.T) {
	ticket, err := ImportTicket(encodedToken("one-shot"))
	require.NoError(t, err)

	assert.Equal(t, encodedToken("one-shot"), ticket.Export())
	assert.Panics(t, func() { ticket.Export() }, "tickets are single-use")
}

func TestPeekedTokenDecodes(t *testing.T) {
	blob := `{"user_id":"u-42","new_token":"` + encodedToken("next") + `"}`

	var peeked PeekedToken
	require.NoError(t, json.Unmarshal([]byte(blob), &peeked))
	assert.Equal(t, "u-42", peeked.UserID)
	require.NotNil(t, peeked.NewToken)
	assert.Equal(t, encodedToken("next"), peeked.NewToken.Export())
}
