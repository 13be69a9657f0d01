package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "12345:test-bot-token"

// signInitData builds init data signed the way Telegram signs Mini App launch params.
func signInitData(t *testing.T, botToken string, fields map[string]string) string {
	t.Helper()
	parts := make([]string, 0, len(fields))
	for k, v := range fields {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)

	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	h := hmac.New(sha256.New, secret.Sum(nil))
	h.Write([]byte(strings.Join(parts, "\n")))

	vals := url.Values{}
	for k, v := range fields {
		vals.Set(k, v)
	}
	vals.Set("hash", hex.EncodeToString(h.Sum(nil)))
	return vals.Encode()
}

func freshFields() map[string]string {
	return map[string]string{
		"auth_date":   strconv.FormatInt(time.Now().Unix(), 10),
		"query_id":    "AAHdF6IQAAAAAN0XohDhrOrc",
		"user":        `{"id":279058397,"first_name":"Vlad","last_name":"K","username":"vdkfrost"}`,
		"start_param": "ref_abc123",
	}
}

func TestAuthenticateValid(t *testing.T) {
	raw := signInitData(t, testToken, freshFields())

	id, err := Authenticate(raw, testToken, time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 279058397, id.UserID)
	assert.Equal(t, "Vlad K", id.DisplayName())
	assert.Equal(t, "ref_abc123", id.StartParam)
}

func TestAuthenticateRejects(t *testing.T) {
	raw := signInitData(t, testToken, freshFields())

	_, err := Authenticate(raw+"&x=1", testToken, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidInitData)

	_, err = Authenticate(raw, "other-token", time.Hour)
	assert.ErrorIs(t, err, ErrInvalidInitData)

	_, err = Authenticate("", testToken, time.Hour)
	assert.ErrorIs(t, err, ErrMissingInitData)

	_, err = Authenticate(raw, "", time.Hour)
	assert.ErrorIs(t, err, ErrNotConfigured)

	old := freshFields()
	old["auth_date"] = strconv.FormatInt(time.Now().Add(-2*time.Hour).Unix(), 10)
	_, err = Authenticate(signInitData(t, testToken, old), testToken, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidInitData)
}

func TestReferralCode(t *testing.T) {
	cases := map[string]string{
		"ref_abc123":   "ABC123",
		"REF_XY":       "XY",
		"QWE9":         "QWE9",
		"":             "",
		"ref_":         "",
		"bad code":     "",
		"ref_<script>": "",
	}
	for in, want := range cases {
		assert.Equal(t, want, ReferralCode(in), in)
	}
}

func TestReferralLink(t *testing.T) {
	assert.Equal(t, "https://t.me/TON_CloudMiner_Bot/app?startapp=ref_ABC", ReferralLink("TON_CloudMiner_Bot", "app", "ABC"))
	assert.Equal(t, "https://t.me/bot?startapp=ref_ABC", ReferralLink("bot", "", "ABC"))
}

func TestDisplayNameFallback(t *testing.T) {
	assert.Equal(t, "@user", Identity{Username: "user"}.DisplayName())
	assert.Empty(t, Identity{}.DisplayName())
}

func TestParseUnverified(t *testing.T) {
	raw := signInitData(t, "other:token", freshFields())

	id, err := ParseUnverified(raw)
	require.NoError(t, err)
	assert.EqualValues(t, 279058397, id.UserID)

	_, err = ParseUnverified("")
	assert.ErrorIs(t, err, ErrMissingInitData)

	_, err = ParseUnverified("auth_date=1&hash=00")
	assert.ErrorIs(t, err, ErrNoUser)
}
