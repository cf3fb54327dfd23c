package storage

import (
	"fmt"
	"net/url"
	"strings"
)

// RefKind classifies the shape of a stored document reference.
type RefKind int

const (
	// RefRelative is a plain bucket-relative key ("orders/123/scan.pdf").
	RefRelative RefKind = iota
	// RefPublicURL is an absolute public object URL.
	RefPublicURL
	// RefSignedURL is an absolute signed object URL carrying a token.
	RefSignedURL
)

// Ref is a typed storage reference. Historical data holds a mix of relative
// keys, public URLs and signed URLs for the same documents; Ref makes the
// classification explicit and funnels every shape through one tested
// normalization instead of ad-hoc string surgery at each call site.
type Ref struct {
	Kind RefKind
	raw  string
}

// String returns the reference as originally stored.
func (r Ref) String() string { return r.raw }

// ParseRef classifies a raw reference string.
func ParseRef(raw string) Ref {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		return Ref{Kind: RefRelative, raw: trimmed}
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		// Unparseable URL: treated as relative so the existence check
		// downstream fails closed on the bogus key.
		return Ref{Kind: RefRelative, raw: trimmed}
	}

	q := u.Query()
	if q.Get("token") != "" || strings.Contains(u.Path, "/object/sign/") {
		return Ref{Kind: RefSignedURL, raw: trimmed}
	}
	return Ref{Kind: RefPublicURL, raw: trimmed}
}

// Key normalizes the reference to a key relative to bucket.
// URL shapes strip any of the known object-endpoint prefixes; relative
// references only lose a leading slash or redundant bucket prefix.
func (r Ref) Key(bucket string) (string, error) {
	switch r.Kind {
	case RefRelative:
		key := strings.TrimPrefix(r.raw, "/")
		key = strings.TrimPrefix(key, bucket+"/")
		if key == "" {
			return "", fmt.Errorf("empty storage reference")
		}
		return key, nil

	case RefPublicURL, RefSignedURL:
		u, err := url.Parse(r.raw)
		if err != nil {
			return "", fmt.Errorf("invalid storage URL %q: %w", r.raw, err)
		}
		path := u.Path

		prefixes := []string{
			"/storage/v1/object/public/" + bucket + "/",
			"/storage/v1/object/sign/" + bucket + "/",
			"/storage/v1/object/" + bucket + "/",
			"/object/public/" + bucket + "/",
			"/object/sign/" + bucket + "/",
			"/object/" + bucket + "/",
		}
		for _, p := range prefixes {
			if idx := strings.Index(path, p); idx >= 0 {
				key := path[idx+len(p):]
				if unescaped, err := url.PathUnescape(key); err == nil {
					key = unescaped
				}
				if key == "" {
					return "", fmt.Errorf("storage URL %q has empty key", r.raw)
				}
				return key, nil
			}
		}
		return "", fmt.Errorf("storage URL %q does not address bucket %q", r.raw, bucket)

	default:
		return "", fmt.Errorf("unknown storage reference kind %d", r.Kind)
	}
}

// NormalizeKey is the one-call convenience used by the pipeline: parse a raw
// reference and resolve it to a bucket-relative key.
func NormalizeKey(raw, bucket string) (string, error) {
	return ParseRef(raw).Key(bucket)
}
