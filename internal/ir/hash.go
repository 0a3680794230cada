package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for checksums. The version suffix leaves room for
// changing what goes into a checksum without colliding with old values.
const (
	DomainItem    = "quire/item/v1"
	DomainLayout  = "quire/layout/v1"
	DomainCode    = "quire/code/v1"
	DomainConfig  = "quire/config/v1"
	DomainRules   = "quire/rules/v1"
	DomainPlan    = "quire/plan/v1"
	DomainContent = "quire/content/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data) as hex.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Checksum hashes the canonical form of v under the given domain.
func Checksum(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("checksum %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// ContentChecksum hashes raw content bytes. Binary content is hashed as is.
func ContentChecksum(c Content) string {
	return hashWithDomain(DomainContent, c.Bytes())
}

func entityChecksum(domain string, c Content, attrs IRObject) (string, error) {
	return Checksum(domain, IRObject{
		"content":    IRString(ContentChecksum(c)),
		"binary":     IRBool(c.Binary),
		"attributes": attrs.Clone(),
	})
}

// ItemChecksum covers an item's content and attributes.
func ItemChecksum(item *Item) (string, error) {
	return entityChecksum(DomainItem, item.Content, item.Attributes)
}

// LayoutChecksum covers a layout's content and attributes.
func LayoutChecksum(layout *Layout) (string, error) {
	return entityChecksum(DomainLayout, layout.Content, layout.Attributes)
}

// CodeSnippetChecksum covers a code snippet's data.
func CodeSnippetChecksum(cs *CodeSnippet) string {
	return hashWithDomain(DomainCode, []byte(cs.Data))
}

// ConfigChecksum covers the whole site configuration.
func ConfigChecksum(cfg IRObject) (string, error) {
	return Checksum(DomainConfig, cfg.Clone())
}

// RulesChecksum covers the declarative source the rule table was built from.
func RulesChecksum(source []byte) string {
	return hashWithDomain(DomainRules, source)
}

// PlanDigest hashes a serialized plan.
func PlanDigest(p *Plan) (string, error) {
	return Checksum(DomainPlan, p.Serialize())
}
