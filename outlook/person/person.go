package person

import (
	"strings"
	"time"
)

// Now is the clock used for record timestamps and ranking recency.
var Now = time.Now

// EmailAddress is one address known for a person.
type EmailAddress struct {
	Address     string `json:"address"`
	Label       string `json:"label,omitempty"`
	IsPrimary   bool   `json:"isPrimary"`
	RoutingType string `json:"routingType,omitempty"`
}

// PhoneNumber is one phone number known for a person.
type PhoneNumber struct {
	Number string `json:"number"`
	Type   string `json:"type,omitempty"`
}

// CommunicationStats aggregates mail exchanged with a person.
type CommunicationStats struct {
	TotalEmails    int        `json:"totalEmails"`
	EmailsSent     int        `json:"emailsSent"`
	EmailsReceived int        `json:"emailsReceived"`
	FirstContact   *time.Time `json:"firstContact,omitempty"`
	LastContact    *time.Time `json:"lastContact,omitempty"`
	EmailsPerMonth float64    `json:"emailsPerMonth"`
	ResponseRate   *float64   `json:"responseRate,omitempty"`
}

// Person is the canonical, deduplicated record of one human.
type Person struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	DisplayName        string              `json:"displayName,omitempty"`
	GivenName          string              `json:"givenName,omitempty"`
	Surname            string              `json:"surname,omitempty"`
	EmailAddresses     []EmailAddress      `json:"emailAddresses"`
	PhoneNumbers       []PhoneNumber       `json:"phoneNumbers,omitempty"`
	Organization       string              `json:"organization,omitempty"`
	Department         string              `json:"department,omitempty"`
	JobTitle           string              `json:"jobTitle,omitempty"`
	OfficeLocation     string              `json:"officeLocation,omitempty"`
	CommunicationStats *CommunicationStats `json:"communicationStats,omitempty"`
	Sources            []Source            `json:"sources"`
	IsInternal         bool                `json:"isInternal"`
	IsVIP              bool                `json:"isVip"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
	Metadata           map[string]any      `json:"metadata,omitempty"`
}

// PrimaryEmail returns the address flagged primary, falling back to the first one.
func (p *Person) PrimaryEmail() string {
	for _, e := range p.EmailAddresses {
		if e.IsPrimary {
			return e.Address
		}
	}
	if len(p.EmailAddresses) > 0 {
		return p.EmailAddresses[0].Address
	}
	return ""
}

// FullName returns the best available name.
func (p *Person) FullName() string {
	if p.Name != "" {
		return p.Name
	}
	if p.GivenName != "" && p.Surname != "" {
		return p.GivenName + " " + p.Surname
	}
	return firstNonEmpty(p.DisplayName, p.PrimaryEmail(), "Unknown")
}

// SourcePriority returns the highest priority among the record's sources.
func (p *Person) SourcePriority() int {
	priority := 0
	for _, s := range p.Sources {
		if v := s.Priority(); v > priority {
			priority = v
		}
	}
	return priority
}

// HasSource reports whether the record was observed in source.
func (p *Person) HasSource(source Source) bool {
	for _, s := range p.Sources {
		if s == source {
			return true
		}
	}
	return false
}

// AddSource tags the record with source; adding a known source is a no-op.
func (p *Person) AddSource(source Source) {
	if p.HasSource(source) {
		return
	}
	p.Sources = append(p.Sources, source)
	p.UpdatedAt = Now()
}

// MergeWith returns a new record combining p and other.
// The operand with the higher source priority is the base (p on ties); base values win
// except for metadata, where the donor overwrites colliding keys. Neither input is modified.
func (p *Person) MergeWith(other *Person) *Person {
	if other == nil {
		return p.Clone()
	}
	base, donor := p, other
	if other.SourcePriority() > p.SourcePriority() {
		base, donor = other, p
	}
	merged := base.Clone()

	known := make(map[string]bool, len(merged.EmailAddresses))
	for _, e := range merged.EmailAddresses {
		known[strings.ToLower(e.Address)] = true
	}
	for _, e := range donor.EmailAddresses {
		key := strings.ToLower(e.Address)
		if known[key] {
			continue
		}
		known[key] = true
		merged.EmailAddresses = append(merged.EmailAddresses, e)
	}

	phones := make(map[string]bool, len(merged.PhoneNumbers))
	for _, ph := range merged.PhoneNumbers {
		phones[ph.Number] = true
	}
	for _, ph := range donor.PhoneNumbers {
		if phones[ph.Number] {
			continue
		}
		phones[ph.Number] = true
		merged.PhoneNumbers = append(merged.PhoneNumbers, ph)
	}

	for _, s := range donor.Sources {
		merged.AddSource(s)
	}

	merged.Organization = firstNonEmpty(merged.Organization, donor.Organization)
	merged.Department = firstNonEmpty(merged.Department, donor.Department)
	merged.JobTitle = firstNonEmpty(merged.JobTitle, donor.JobTitle)
	merged.OfficeLocation = firstNonEmpty(merged.OfficeLocation, donor.OfficeLocation)

	switch {
	case donor.CommunicationStats == nil:
	case merged.CommunicationStats == nil:
		merged.CommunicationStats = donor.CommunicationStats.clone()
	default:
		merged.CommunicationStats.absorb(donor.CommunicationStats)
	}

	merged.IsVIP = merged.IsVIP || donor.IsVIP

	if len(donor.Metadata) > 0 {
		if merged.Metadata == nil {
			merged.Metadata = make(map[string]any, len(donor.Metadata))
		}
		for k, v := range donor.Metadata {
			merged.Metadata[k] = v
		}
	}
	merged.UpdatedAt = Now()
	return merged
}

// Clone returns a deep copy of p.
func (p *Person) Clone() *Person {
	if p == nil {
		return nil
	}
	cp := *p
	cp.EmailAddresses = append([]EmailAddress(nil), p.EmailAddresses...)
	cp.PhoneNumbers = append([]PhoneNumber(nil), p.PhoneNumbers...)
	cp.Sources = append([]Source(nil), p.Sources...)
	cp.CommunicationStats = p.CommunicationStats.clone()
	if p.Metadata != nil {
		cp.Metadata = make(map[string]any, len(p.Metadata))
		for k, v := range p.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// RelationshipStrength scores closeness in [0, 1] from volume, recency, responsiveness and VIP status.
func (p *Person) RelationshipStrength() float64 {
	stats := p.CommunicationStats
	if stats == nil {
		return 0
	}
	score := min(float64(stats.TotalEmails)/100, 0.3)
	if stats.LastContact != nil {
		days := daysBetween(*stats.LastContact, Now())
		score += max(0, 0.3*(1-days/365))
	}
	if stats.ResponseRate != nil {
		score += *stats.ResponseRate * 0.2
	}
	if p.IsVIP {
		score += 0.2
	}
	return min(score, 1.0)
}

func (s *CommunicationStats) clone() *CommunicationStats {
	if s == nil {
		return nil
	}
	cp := *s
	cp.FirstContact = copyTime(s.FirstContact)
	cp.LastContact = copyTime(s.LastContact)
	if s.ResponseRate != nil {
		rate := *s.ResponseRate
		cp.ResponseRate = &rate
	}
	return &cp
}

func (s *CommunicationStats) absorb(other *CommunicationStats) {
	s.TotalEmails += other.TotalEmails
	s.EmailsSent += other.EmailsSent
	s.EmailsReceived += other.EmailsReceived
	if other.FirstContact != nil && (s.FirstContact == nil || other.FirstContact.Before(*s.FirstContact)) {
		s.FirstContact = copyTime(other.FirstContact)
	}
	if other.LastContact != nil && (s.LastContact == nil || other.LastContact.After(*s.LastContact)) {
		s.LastContact = copyTime(other.LastContact)
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// daysBetween returns whole days elapsed from then to now, both taken in UTC.
func daysBetween(then, now time.Time) float64 {
	elapsed := now.UTC().Sub(then.UTC())
	days := int64(elapsed / (24 * time.Hour))
	if elapsed < 0 && elapsed%(24*time.Hour) != 0 {
		days--
	}
	return float64(days)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
