package telegram

import (
	"errors"
	"strings"
	"time"

	initdata "github.com/telegram-mini-apps/init-data-golang"
)

var (
	ErrMissingInitData = errors.New("missing init data")
	ErrInvalidInitData = errors.New("invalid init data")
	ErrNoUser          = errors.New("init data has no user")
	ErrNotConfigured   = errors.New("init data validation is not configured")
)

// Identity is what the Mini App host tells us about the user who opened it
type Identity struct {
	UserID     int64
	FirstName  string
	LastName   string
	Username   string
	StartParam string
}

// DisplayName prefers the full name, then the username
func (i Identity) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(i.FirstName) + " " + strings.TrimSpace(i.LastName))
	if name != "" {
		return name
	}
	if i.Username != "" {
		return "@" + i.Username
	}
	return ""
}

// Authenticate validates signed init data and extracts the identity.
// ttl == 0 disables the auth_date freshness check.
func Authenticate(raw, botToken string, ttl time.Duration) (Identity, error) {
	if botToken == "" {
		return Identity{}, ErrNotConfigured
	}
	if raw == "" {
		return Identity{}, ErrMissingInitData
	}
	if err := initdata.Validate(raw, botToken, ttl); err != nil {
		return Identity{}, errors.Join(ErrInvalidInitData, err)
	}

	parsed, err := initdata.Parse(raw)
	if err != nil {
		return Identity{}, errors.Join(ErrInvalidInitData, err)
	}
	if parsed.User.ID == 0 {
		return Identity{}, ErrNoUser
	}

	return identityFrom(parsed), nil
}

// ParseUnverified reads the identity without checking the signature. DEV_MODE only.
func ParseUnverified(raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, ErrMissingInitData
	}
	parsed, err := initdata.Parse(raw)
	if err != nil {
		return Identity{}, errors.Join(ErrInvalidInitData, err)
	}
	if parsed.User.ID == 0 {
		return Identity{}, ErrNoUser
	}
	return identityFrom(parsed), nil
}

func identityFrom(parsed initdata.InitData) Identity {
	return Identity{
		UserID:     parsed.User.ID,
		FirstName:  parsed.User.FirstName,
		LastName:   parsed.User.LastName,
		Username:   parsed.User.Username,
		StartParam: parsed.StartParam,
	}
}

const refPrefix = "ref_"

// ReferralCode extracts a referral code from a start_param ("ref_CODE" or bare "CODE").
// Anything that is not a short alphanumeric token yields "".
func ReferralCode(startParam string) string {
	code := strings.TrimSpace(startParam)
	if len(code) > len(refPrefix) && strings.EqualFold(code[:len(refPrefix)], refPrefix) {
		code = code[len(refPrefix):]
	}
	if code == "" || len(code) > 32 {
		return ""
	}
	for _, r := range code {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return ""
		}
	}
	return strings.ToUpper(code)
}

// StartParam is the value placed in a referral deep link
func StartParam(code string) string {
	return refPrefix + code
}

// ReferralLink builds the Mini App deep link carrying code
func ReferralLink(botUsername, appShortName, code string) string {
	link := "https://t.me/" + botUsername
	if appShortName != "" {
		link += "/" + appShortName
	}
	return link + "?startapp=" + StartParam(code)
}
