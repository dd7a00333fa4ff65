// Package token binds document metadata to content hashes and handles the QR
// payload formats. The bound hash is an unkeyed content digest, not a MAC or
// signature: anyone with registry write access (or knowledge of the five
// binding fields) can mint a matching token. That gap is inherited from the
// system this registry interoperates with and is kept as-is rather than
// silently upgraded.
package token

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// MakeBoundHash digests the five binding fields in fixed pipe-joined order.
// Changing any single field changes the output unpredictably; there is no
// partial-match leakage.
func MakeBoundHash(docID, holder, docType, issueDate, fileHash string) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%s", docID, holder, docType, issueDate, fileHash)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// BuildVerifyURL produces the locator embedded in QR stamps. The format is a
// bit-exact contract between issuance and verification:
// <base>/?verify=<doc_id>&hash=<bound_hash>.
func BuildVerifyURL(base, docID, boundHash string) string {
	return fmt.Sprintf("%s/?verify=%s&hash=%s",
		strings.TrimRight(base, "/"),
		url.QueryEscape(docID),
		url.QueryEscape(boundHash))
}

// PayloadKind tags how a QR payload was parsed.
type PayloadKind int

const (
	PayloadUnparseable PayloadKind = iota
	PayloadURL
	PayloadJSON
)

// Payload is the decoded QR content. DocID and Hash may be individually
// empty; hints supplied out-of-band fill the gaps.
type Payload struct {
	Kind  PayloadKind
	DocID string
	Hash  string
}

type jsonPayload struct {
	DocID string `json:"doc_id"`
	Hash  string `json:"hash"`
}

// ParsePayload decodes a QR payload string. URL-with-query-params is tried
// first, then the legacy compact JSON object; the order is deterministic and
// matches how stamps have historically been encoded.
func ParsePayload(s string) Payload {
	s = strings.TrimSpace(s)
	if s == "" {
		return Payload{Kind: PayloadUnparseable}
	}

	if u, err := url.Parse(s); err == nil {
		q := u.Query()
		if q.Has("verify") {
			return Payload{
				Kind:  PayloadURL,
				DocID: strings.TrimSpace(q.Get("verify")),
				Hash:  strings.TrimSpace(q.Get("hash")),
			}
		}
	}

	var jp jsonPayload
	if err := json.Unmarshal([]byte(s), &jp); err == nil {
		docID := strings.TrimSpace(jp.DocID)
		if docID != "" {
			return Payload{
				Kind:  PayloadJSON,
				DocID: docID,
				Hash:  strings.TrimSpace(jp.Hash),
			}
		}
	}
	return Payload{Kind: PayloadUnparseable}
}
