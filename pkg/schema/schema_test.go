package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transferParams struct {
	To     string  `json:"to" jsonschema_description:"Recipient address"`
	Amount string  `json:"amount" jsonschema_description:"Amount in human units, e.g. 1.5"`
	Memo   string  `json:"memo,omitempty"`
	Tip    float64 `json:"tip,omitempty"`
}

func TestForDescribesRequiredAndOptionalFields(t *testing.T) {
	s, err := For[transferParams]()
	require.NoError(t, err)

	doc := s.Map()
	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, false, doc["additionalProperties"])
	assert.NotContains(t, doc, "$schema")
	assert.ElementsMatch(t, []string{"to", "amount"}, s.Required())

	props := s.Properties()
	require.Contains(t, props, "memo")
	to := props["to"].(map[string]any)
	assert.Equal(t, "string", to["type"])
	assert.Equal(t, "Recipient address", to["description"])
	assert.Equal(t, "number", props["tip"].(map[string]any)["type"])
}

func TestForIsCachedPerType(t *testing.T) {
	a := MustFor[transferParams]()
	b := MustFor[transferParams]()
	assert.Same(t, a, b)
}

func TestForRejectsNonStruct(t *testing.T) {
	_, err := For[map[string]any]()
	require.Error(t, err)
}

func TestDescriptionRoundTrip(t *testing.T) {
	original := MustFor[transferParams]()

	// The published description, recompiled on its own, must agree with the
	// schema it came from.
	republished, err := FromJSON(original.JSON())
	require.NoError(t, err)

	good := map[string]any{"to": "0xabc", "amount": "1.5"}
	for _, s := range []*Schema{original, republished} {
		require.NoError(t, s.Validate(good))

		err := s.Validate(map[string]any{"to": 42})
		var fe FieldErrors
		require.ErrorAs(t, err, &fe)
		assert.ElementsMatch(t, []string{"amount", "to"}, fe.Fields())
	}
}

func TestValidateReportsEveryField(t *testing.T) {
	s := MustFor[transferParams]()

	err := s.Validate(`{"to": 7, "extra": true}`)
	var fe FieldErrors
	require.ErrorAs(t, err, &fe)

	byField := map[string]string{}
	for _, f := range fe {
		byField[f.Field] = f.Message
	}
	assert.Equal(t, "is required", byField["amount"])
	assert.Equal(t, "is not a known parameter", byField["extra"])
	assert.Contains(t, byField, "to")
}

func TestValidateRejectsMalformedJSON(t *testing.T) {
	err := MustFor[transferParams]().Validate("{not json")
	var fe FieldErrors
	require.ErrorAs(t, err, &fe)
	require.Len(t, fe, 1)
	assert.Equal(t, "", fe[0].Field)
}

func TestParseDecodesAcceptedInput(t *testing.T) {
	s := MustFor[transferParams]()

	var got transferParams
	require.NoError(t, s.Parse(json.RawMessage(`{"to":"0xabc","amount":"2","tip":0.5}`), &got))
	assert.Equal(t, transferParams{To: "0xabc", Amount: "2", Tip: 0.5}, got)

	var untouched transferParams
	require.Error(t, s.Parse(map[string]any{"to": "0xabc"}, &untouched))
	assert.Equal(t, transferParams{}, untouched)
}

func TestNormalize(t *testing.T) {
	for _, input := range []any{nil, "", "  ", []byte(nil), json.RawMessage(" ")} {
		raw, err := Normalize(input)
		require.NoError(t, err)
		assert.JSONEq(t, `{}`, string(raw))
	}
	raw, err := Normalize(struct {
		A int `json:"a"`
	}{A: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))
}

func TestHandBuiltSchemas(t *testing.T) {
	s, err := FromMap(Object(map[string]any{
		"symbol": StringEnum("Token symbol", "ETH", "USDC"),
		"limit":  Integer("Maximum results"),
		"ids":    Array("Coin ids", String("")),
	}, "symbol"))
	require.NoError(t, err)

	require.NoError(t, s.Validate(map[string]any{"symbol": "USDC", "limit": 3, "ids": []string{"a"}}))
	require.Error(t, s.Validate(map[string]any{"symbol": "DOGE"}))
	require.Error(t, s.Validate(map[string]any{"symbol": "ETH", "limit": 1.5}))
	assert.Equal(t, []string{"symbol"}, s.Required())

	require.NoError(t, Empty().Validate(nil))
	require.Error(t, Empty().Validate(map[string]any{"x": 1}))

	_, err = FromMap(map[string]any{"type": "string"})
	require.Error(t, err)
}
