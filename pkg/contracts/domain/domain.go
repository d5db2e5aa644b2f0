package domain

import (
	"fmt"
	"strings"
)

// Domain is a business domain used to pick cleaning rules, charts and report shape.
type Domain string

const (
	Finance   Domain = "Finance"
	HR        Domain = "HR"
	Biology   Domain = "Biology"
	Education Domain = "Education"
	Sales     Domain = "Sales"
	Inventory Domain = "Inventory"
	Retail    Domain = "Retail"
	Tech      Domain = "Tech"
	General   Domain = "General"
)

// Candidates lists the detectable domains in scoring order. General is the
// fallback and is not a candidate.
func Candidates() []Domain {
	return []Domain{Finance, HR, Biology, Education, Sales, Inventory, Retail, Tech}
}

// ParseDomain matches s case-insensitively. An empty string yields "" so
// callers can treat it as "detect automatically".
func ParseDomain(s string) (Domain, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "auto") {
		return "", nil
	}
	for _, d := range append(Candidates(), General) {
		if strings.EqualFold(string(d), s) {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown domain %q", s)
}

// Slug is the lowercase form used in URLs and SOP bundle keys.
func (d Domain) Slug() string {
	return strings.ToLower(string(d))
}
