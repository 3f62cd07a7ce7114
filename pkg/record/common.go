package record

import (
	"encoding/binary"
	"strings"
)

// PostalAddress is a mailing address made of separate device fields.
type PostalAddress struct {
	Address1   string `json:"address1,omitempty"`
	Address2   string `json:"address2,omitempty"`
	Address3   string `json:"address3,omitempty"`
	City       string `json:"city,omitempty"`
	Province   string `json:"province,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// HasData reports whether any part of the address is set.
func (p PostalAddress) HasData() bool {
	return p != PostalAddress{}
}

// Label formats the address as a multi line mailing label, skipping
// missing parts.
func (p PostalAddress) Label() string {
	var lines []string
	for _, l := range []string{p.Address1, p.Address2, p.Address3} {
		if l != "" {
			lines = append(lines, l)
		}
	}

	var place []string
	for _, s := range []string{p.City, p.Province, p.Country} {
		if s != "" {
			place = append(place, s)
		}
	}
	if len(place) > 0 {
		lines = append(lines, strings.Join(place, " "))
	}
	if p.PostalCode != "" {
		lines = append(lines, p.PostalCode)
	}
	return strings.Join(lines, "\n")
}

// GroupLink references another contact record that is a member of a group.
type GroupLink struct {
	Link    uint32 `json:"link"`
	Unknown uint16 `json:"unknown"`
}

const groupLinkSize = 6

func parseGroupLink(data []byte) (GroupLink, bool) {
	if len(data) < groupLinkSize {
		return GroupLink{}, false
	}
	return GroupLink{
		Link:    binary.BigEndian.Uint32(data),
		Unknown: binary.BigEndian.Uint16(data[4:]),
	}, true
}

func (g GroupLink) bytes() []byte {
	var p [groupLinkSize]byte
	binary.BigEndian.PutUint32(p[:], g.Link)
	binary.BigEndian.PutUint16(p[4:], g.Unknown)
	return p[:]
}

// CategoryList is a list of category names, stored on the device as one
// comma separated string.
type CategoryList []string

// ParseCategories splits a comma separated category string, trimming the
// spaces around each name and dropping empty ones.
func ParseCategories(s string) CategoryList {
	var list CategoryList
	for _, c := range strings.Split(s, ",") {
		c = strings.TrimSpace(c)
		if c != "" {
			list = append(list, c)
		}
	}
	return list
}

// String joins the categories with ", ".
func (c CategoryList) String() string {
	return strings.Join(c, ", ")
}
