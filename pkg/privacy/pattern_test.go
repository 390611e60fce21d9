package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSensitiveDetectsEmail(t *testing.T) {
	assert.True(t, IsSensitive("reach me at a@b.com"))
}

func TestIsSensitiveDetectsSSN(t *testing.T) {
	assert.True(t, IsSensitive("ssn 123-45-6789 on file"))
}

func TestIsSensitiveDetectsKeywords(t *testing.T) {
	assert.True(t, IsSensitive("here is the API Key you asked for"))
	assert.True(t, IsSensitive("don't share your password"))
	assert.True(t, IsSensitive("rotate the secret quarterly"))
	assert.True(t, IsSensitive("pass the token along"))
}

func TestIsSensitiveFalseOnPlainText(t *testing.T) {
	assert.False(t, IsSensitive("deploy the service tomorrow"))
}

func TestAnonymiseReplacesEmail(t *testing.T) {
	assert.Equal(t, "contact [EMAIL] please", Anonymise("contact a@b.com please"))
}

func TestAnonymiseReplacesSSN(t *testing.T) {
	assert.Equal(t, "ssn is [SSN] on file", Anonymise("ssn is 123-45-6789 on file"))
}

func TestAnonymiseReplacesAPIKeyTokenPassword(t *testing.T) {
	assert.Equal(t, "here: [API_KEY]", Anonymise("here: api key: sk-abc123"))
	assert.Equal(t, "auth [TOKEN]", Anonymise("auth token: xyz"))
	assert.Equal(t, "login [PASSWORD]", Anonymise("login password: hunter2"))
}

func TestAnonymiseSpecExample(t *testing.T) {
	got := Anonymise("my email is a@b.com and token: xyz")
	assert.Equal(t, "my email is [EMAIL] and [TOKEN]", got)
}

func TestAnonymiseIsIdempotent(t *testing.T) {
	inputs := []string{
		"my email is a@b.com and token: xyz",
		"ssn 123-45-6789, api key: sk-test, password: hunter2",
		"nothing sensitive here",
	}
	for _, in := range inputs {
		once := Anonymise(in)
		twice := Anonymise(once)
		assert.Equal(t, once, twice, "input: %q", in)
	}
}
