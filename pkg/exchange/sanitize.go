package exchange

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/outline/pkg/domain"
)

var (
	// DefaultMaxTextSize bounds a single label, description or payload value.
	DefaultMaxTextSize = 4096
	// EnvMaxTextSize overrides DefaultMaxTextSize.
	EnvMaxTextSize = "OUTLINE_MAX_TEXT_SIZE"
)

var (
	ErrTextTooLarge = errors.New("text exceeds maximum allowed size")
	ErrInvalidUTF8  = errors.New("text contains invalid UTF-8 sequences")
)

// SanitizeText enforces the size limit, rejects invalid UTF-8 and strips
// control characters other than newline, tab and carriage return.
// Oversized text is rejected, never truncated.
func SanitizeText(input string) (string, error) {
	limit := maxTextSize()
	if len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrTextTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	clean := true
	for _, r := range input {
		if unicode.IsControl(r) && !isSafeControl(r) {
			clean = false
			break
		}
	}
	if clean {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return b.String(), nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

func maxTextSize() int {
	if val := os.Getenv(EnvMaxTextSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxTextSize
}

func sanitizeField(field string, s *string) error {
	clean, err := SanitizeText(*s)
	if err != nil {
		return &domain.ValidationError{Field: field, Reason: err.Error()}
	}
	*s = clean
	return nil
}

func sanitizeMap(field string, m map[string]string) (map[string]string, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		ck, err := SanitizeText(k)
		if err != nil {
			return nil, &domain.ValidationError{Field: field, Reason: err.Error()}
		}
		cv, err := SanitizeText(v)
		if err != nil {
			return nil, &domain.ValidationError{Field: field + "." + ck, Reason: err.Error()}
		}
		out[ck] = cv
	}
	return out, nil
}

// SanitizeNode returns n with its free text cleaned.
func SanitizeNode(n domain.Node) (domain.Node, error) {
	if err := sanitizeField("label", &n.Label); err != nil {
		return n, err
	}
	if err := sanitizeField("description", &n.Description); err != nil {
		return n, err
	}
	payload, err := sanitizeMap("payload", n.Payload)
	if err != nil {
		return n, err
	}
	n.Payload = payload
	return n, nil
}

// SanitizePatch returns p with the free text it would write cleaned.
func SanitizePatch(p domain.NodePatch) (domain.NodePatch, error) {
	for field, dst := range map[string]**string{"label": &p.Label, "description": &p.Description} {
		if *dst == nil {
			continue
		}
		v := **dst
		if err := sanitizeField(field, &v); err != nil {
			return p, err
		}
		*dst = &v
	}
	var err error
	if p.Payload, err = sanitizeMap("payload", p.Payload); err != nil {
		return p, err
	}
	if p.SetPayload, err = sanitizeMap("set_payload", p.SetPayload); err != nil {
		return p, err
	}
	return p, nil
}
