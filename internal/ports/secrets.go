package ports

import "context"

// SecretSource resolves secrets by name at invocation time. The core never
// persists or caches secret material; processors receive a source per call
// and discard it when the call returns.
type SecretSource interface {
	Get(ctx context.Context, name string) (string, error)
}

// Encryptor is the opaque encrypt/decrypt capability used for credentials
// at rest (webhook URLs and similar connection secrets)
type Encryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
