package obs

import (
	"net/url"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestIsSensitiveField(t *testing.T) {
	cases := map[string]bool{
		"password":      true,
		"Pass_Word":     true,
		"api-key":       true,
		"Authorization": true,
		"Set-Cookie":    true,
		"user-name":     false,
		"login-button":  false,
	}
	for key, want := range cases {
		if got := IsSensitiveField(key); got != want {
			t.Fatalf("IsSensitiveField(%q) = %t, want %t", key, got, want)
		}
	}
}

func TestFormatForm_RedactsPassword(t *testing.T) {
	got := FormatForm(url.Values{
		"user-name": {"standard_user"},
		"password":  {"secret_sauce"},
	})
	want := `password="[REDACTED]" user-name="standard_user"`
	if got != want {
		t.Fatalf("FormatForm = %s, want %s", got, want)
	}
	if FormatForm(nil) != "{}" {
		t.Fatalf("empty form should render as {}")
	}
}

func testFormatForm_NeverLeaksPassword(t *rapid.T) {
	secret := rapid.StringMatching(`[a-z]{12,20}`).Draw(t, "secret")
	user := rapid.StringMatching(`[a-z_]{1,10}`).Draw(t, "user")

	out := FormatForm(url.Values{"user-name": {user}, "password": {secret}})
	if strings.Contains(out, secret) {
		t.Fatalf("password leaked: %s", out)
	}
	if !strings.Contains(out, user) {
		t.Fatalf("user name missing: %s", out)
	}
}

func TestFormatForm_NeverLeaksPassword(t *testing.T) {
	rapid.Check(t, testFormatForm_NeverLeaksPassword)
}
