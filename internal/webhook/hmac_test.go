package webhook

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	secret := "test-secret-key"
	body := []byte(`{"patient_name":"Jane"}`)
	expectedSig := ComputeSignature(body, secret)

	tests := []struct {
		name      string
		signature string
		body      []byte
		secret    string
		want      bool
	}{
		{name: "valid signature", signature: expectedSig, body: body, secret: secret, want: true},
		{name: "wrong signature", signature: strings.Repeat("0", 64), body: body, secret: secret},
		{name: "tampered body", signature: expectedSig, body: []byte(`{"patient_name":"Eve"}`), secret: secret},
		{name: "wrong secret", signature: expectedSig, body: body, secret: "other"},
		{name: "uppercase hex is not accepted", signature: strings.ToUpper(expectedSig), body: body, secret: secret},
		{name: "prefixed form is not accepted", signature: "sha256=" + expectedSig, body: body, secret: secret},
		{name: "empty signature", signature: "", body: body, secret: secret},
		{name: "empty secret", signature: expectedSig, body: body, secret: ""},
		{name: "empty body", signature: ComputeSignature(nil, secret), body: []byte{}, secret: secret, want: true},
		{name: "truncated signature", signature: expectedSig[:32], body: body, secret: secret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifySignature(tt.signature, tt.body, tt.secret))
		})
	}
}

func TestComputeSignature_KnownVector(t *testing.T) {
	// RFC 4231 test case 2.
	got := ComputeSignature([]byte("what do ya want for nothing?"), "Jefe")
	assert.Equal(t, "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843", got)
}
