package gateway

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// ParseDataURI splits a data:<mime>;base64,<payload> reference into its
// mime type and decoded bytes.
func ParseDataURI(s string) (string, []byte, error) {
	header, payload, found := strings.Cut(s, ",")
	if !found || payload == "" {
		return "", nil, fmt.Errorf("invalid base64 string for image")
	}
	mime, ok := strings.CutPrefix(header, "data:")
	if !ok {
		return "", nil, fmt.Errorf("invalid base64 string for image")
	}
	mime, ok = strings.CutSuffix(mime, ";base64")
	if !ok || mime == "" {
		return "", nil, fmt.Errorf("invalid base64 string for image")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some producers omit padding.
		data, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, fmt.Errorf("invalid base64 string for image: %w", err)
		}
	}
	return mime, data, nil
}

// FormatDataURI builds a self-contained image reference from raw bytes.
func FormatDataURI(mime string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}

// formatDataURIB64 builds a reference from an already-encoded payload.
func formatDataURIB64(mime, b64 string) string {
	return fmt.Sprintf("data:%s;base64,%s", mime, b64)
}
