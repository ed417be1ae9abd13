package keys

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	jwk "github.com/lestrrat-go/jwx/v2/jwk"
)

const minSecretBytes = 32

// manager lazily resolves the HMAC key that signs member confirmation links.
var (
	once       sync.Once
	initErr    error
	signingKey jwk.Key
)

// Init resolves the process-wide signing key from a base64 secret, generating
// one when b64 is empty. kid defaults to a random UUID.
func Init(b64, kid string) error {
	once.Do(func() {
		signingKey, initErr = Load(b64, kid)
	})
	return initErr
}

// SigningKey returns the key set up by Init, or nil before Init.
func SigningKey() jwk.Key { return signingKey }

// Load decodes b64 into an HS256 key. An empty b64 generates a fresh secret
// and prints how to persist it, since links signed with it stop verifying
// after a restart.
func Load(b64, kid string) (jwk.Key, error) {
	if kid == "" {
		kid = os.Getenv("CONFIRM_LINK_KID")
	}
	if kid == "" {
		kid = uuid.NewString()
	}
	var secret []byte
	if b64 != "" {
		b, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("decode confirm link key: %w", err)
		}
		secret = b
	} else {
		secret = make([]byte, minSecretBytes)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
		// Print helpers so the operator can capture and persist the key.
		fmt.Println("[keys] Generated ephemeral confirm link key (dev mode). To persist, set:")
		fmt.Printf("export CONFIRM_LINK_KEY_B64='%s'\n", base64.StdEncoding.EncodeToString(secret))
		fmt.Printf("export CONFIRM_LINK_KID='%s'\n", kid)
	}
	return FromSecret(secret, kid)
}

// FromSecret wraps raw secret bytes as a signing JWK.
func FromSecret(secret []byte, kid string) (jwk.Key, error) {
	if len(secret) < minSecretBytes {
		return nil, errors.New("confirm link key must be at least 32 bytes")
	}
	key, err := jwk.FromRaw(secret)
	if err != nil {
		return nil, err
	}
	_ = key.Set(jwk.KeyIDKey, kid)
	_ = key.Set(jwk.AlgorithmKey, jwa.HS256)
	_ = key.Set(jwk.KeyUsageKey, "sig")
	return key, nil
}
