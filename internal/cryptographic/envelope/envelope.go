// Package envelope implements the cipher envelope format carried in
// message bodies: "enc:" + base64(nonce || ciphertext) for direct
// messages and "genc:" + groupID + ":" + base64(...) for group-keyed
// ones. The distinct prefixes guarantee group and direct envelopes are
// never cross-decrypted.
package envelope

import (
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"

	"ledgerchat/internal/cryptographic/encryption"
)

const (
	// Prefix marks a direct-keyed envelope.
	Prefix = "enc:"
	// GroupPrefix marks a group-keyed envelope with an embedded group id.
	GroupPrefix = "genc:"
)

var (
	// ErrCryptoUnavailable means the runtime could not construct the
	// AEAD primitive. The send path degrades to plaintext on it.
	ErrCryptoUnavailable = errors.New("crypto primitive unavailable")
	// ErrKeyUnavailable means no symmetric key could be obtained.
	ErrKeyUnavailable = errors.New("symmetric key unavailable")
)

// KeySource hands out symmetric key material. Implemented by the keyring.
type KeySource interface {
	UserKey() ([]byte, error)
	GroupKey(groupID string) ([]byte, error)
}

// Opened is the tagged result of opening a message body. StillEncrypted
// means the input was an envelope that could not be authenticated with
// the available key; Text then still holds the original envelope string
// so callers can render a "cannot decrypt" indicator.
type Opened struct {
	Text           string
	StillEncrypted bool
}

type Codec struct {
	keys    KeySource
	enabled bool
}

// NewCodec returns a codec. With enabled=false Encrypt is a pass-through;
// Decrypt still opens envelopes so pre-existing ciphertext stays readable.
func NewCodec(keys KeySource, enabled bool) *Codec {
	return &Codec{keys: keys, enabled: enabled}
}

// IsEnvelope reports whether text carries either envelope prefix. Pure
// prefix check; used by the merge and notification layers to avoid
// matching on ciphertext.
func IsEnvelope(text string) bool {
	return strings.HasPrefix(text, Prefix) || strings.HasPrefix(text, GroupPrefix)
}

// IsGroupEnvelope reports whether text is a group-keyed envelope.
func IsGroupEnvelope(text string) bool {
	return strings.HasPrefix(text, GroupPrefix)
}

// GroupID extracts the embedded group id from a group envelope, or ""
// when text is not one.
func GroupID(text string) string {
	if !strings.HasPrefix(text, GroupPrefix) {
		return ""
	}
	rest := text[len(GroupPrefix):]
	idx := strings.IndexByte(rest, ':')
	if idx <= 0 {
		return ""
	}
	return rest[:idx]
}

// Encrypt seals plaintext under the user key. Pass-through when
// encryption is disabled. Fails with ErrKeyUnavailable when no key can
// be obtained and ErrCryptoUnavailable when the primitive cannot be
// constructed.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	if !c.enabled {
		return plaintext, nil
	}
	key, err := c.keys.UserKey()
	if err != nil {
		return "", errors.Wrap(ErrKeyUnavailable, err.Error())
	}
	sealed, err := encryption.AEADEncrypt(key, []byte(plaintext))
	if err != nil {
		return "", errors.Wrap(ErrCryptoUnavailable, err.Error())
	}
	return Prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// EncryptGroup seals plaintext under the group's key and embeds the
// group id in the envelope.
func (c *Codec) EncryptGroup(groupID, plaintext string) (string, error) {
	if !c.enabled {
		return plaintext, nil
	}
	key, err := c.keys.GroupKey(groupID)
	if err != nil {
		return "", errors.Wrap(ErrKeyUnavailable, err.Error())
	}
	sealed, err := encryption.AEADEncrypt(key, []byte(plaintext))
	if err != nil {
		return "", errors.Wrap(ErrCryptoUnavailable, err.Error())
	}
	return GroupPrefix + groupID + ":" + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts input if it is an envelope. It never fails: any input
// that is not an envelope comes back unchanged, and an envelope that
// cannot be authenticated (wrong key, truncation, corruption) comes
// back unchanged with StillEncrypted set. A single foreign-device
// message must never block the rest of the timeline.
func (c *Codec) Open(input string) Opened {
	var keyFn func() ([]byte, error)
	var payload string

	switch {
	case strings.HasPrefix(input, Prefix):
		keyFn = c.keys.UserKey
		payload = input[len(Prefix):]
	case strings.HasPrefix(input, GroupPrefix):
		gid := GroupID(input)
		if gid == "" {
			return Opened{Text: input, StillEncrypted: true}
		}
		keyFn = func() ([]byte, error) { return c.keys.GroupKey(gid) }
		payload = input[len(GroupPrefix)+len(gid)+1:]
	default:
		// pre-encryption plaintext, pass through
		return Opened{Text: input}
	}

	key, err := keyFn()
	if err != nil {
		return Opened{Text: input, StillEncrypted: true}
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Opened{Text: input, StillEncrypted: true}
	}
	plain, err := encryption.AEADDecrypt(key, raw)
	if err != nil {
		return Opened{Text: input, StillEncrypted: true}
	}
	return Opened{Text: string(plain)}
}

// Decrypt is the plain-string form of Open for callers that only need
// the text. The envelope prefix on the result signals "still encrypted".
func (c *Codec) Decrypt(input string) string {
	return c.Open(input).Text
}
