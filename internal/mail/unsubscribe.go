package mail

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
)

// UnsubscribeToken is an HMAC-SHA256 over (account_id, email) so the
// unsubscribe endpoint can validate a link without any stored state.
func UnsubscribeToken(secret, accountID, email string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s:%s", accountID, email)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyUnsubscribeToken reports whether token matches the pair in
// constant time.
func VerifyUnsubscribeToken(secret, accountID, email, token string) bool {
	expected := UnsubscribeToken(secret, accountID, email)
	return hmac.Equal([]byte(expected), []byte(token))
}

// UnsubscribeURL builds the signed opt-out link embedded in every
// report email.
func UnsubscribeURL(base, secret, accountID, email string) string {
	values := url.Values{}
	values.Set("account", accountID)
	values.Set("email", email)
	values.Set("token", UnsubscribeToken(secret, accountID, email))
	return base + "?" + values.Encode()
}
