package record

import (
	"strings"

	"github.com/ssargent/bbsync/pkg/buffer"
	"github.com/ssargent/bbsync/pkg/codec"
)

// Contact field codes
const (
	contactEmail             = 0x01
	contactPhone             = 0x02
	contactFax               = 0x03
	contactWorkPhone         = 0x06
	contactHomePhone         = 0x07
	contactMobilePhone       = 0x08
	contactPager             = 0x09
	contactPIN               = 0x0a
	contactRadio             = 0x0e
	contactWorkPhone2        = 0x10
	contactHomePhone2        = 0x11
	contactOtherPhone        = 0x12
	contactName              = 0x20 // used twice, first name then last name
	contactCompany           = 0x21
	contactDefaultCommMethod = 0x22
	contactAddress1          = 0x23
	contactAddress2          = 0x24
	contactAddress3          = 0x25
	contactCity              = 0x26
	contactProvince          = 0x27
	contactPostalCode        = 0x28
	contactCountry           = 0x29
	contactTitle             = 0x2a
	contactPublicKey         = 0x2b
	contactGroupFlag         = 0x2c
	contactGroupLink         = 0x34
	contactURL               = 0x36
	contactPrefix            = 0x37
	contactCategory          = 0x3b
	contactHomeAddress1      = 0x3d
	contactHomeAddress2      = 0x3e
	contactHomeAddress3      = 0x3f
	contactNotes             = 0x40
	contactUserDefined1      = 0x41
	contactUserDefined2      = 0x42
	contactUserDefined3      = 0x43
	contactUserDefined4      = 0x44
	contactHomeCity          = 0x45
	contactHomeProvince      = 0x46
	contactHomePostalCode    = 0x47
	contactHomeCountry       = 0x48
	contactImage             = 0x4d
)

// ContactDBName is the address book database.
const ContactDBName = "Address Book"

// Contact is an address book entry.
type Contact struct {
	Base
	noHeader

	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Fax         string `json:"fax,omitempty"`
	WorkPhone   string `json:"work_phone,omitempty"`
	HomePhone   string `json:"home_phone,omitempty"`
	MobilePhone string `json:"mobile_phone,omitempty"`
	Pager       string `json:"pager,omitempty"`
	PIN         string `json:"pin,omitempty"`
	Radio       string `json:"radio,omitempty"`
	WorkPhone2  string `json:"work_phone2,omitempty"`
	HomePhone2  string `json:"home_phone2,omitempty"`
	OtherPhone  string `json:"other_phone,omitempty"`

	FirstName         string `json:"first_name,omitempty"`
	LastName          string `json:"last_name,omitempty"`
	Company           string `json:"company,omitempty"`
	DefaultCommMethod string `json:"default_comm_method,omitempty"`
	JobTitle          string `json:"job_title,omitempty"`
	PublicKey         string `json:"public_key,omitempty"`
	URL               string `json:"url,omitempty"`
	Prefix            string `json:"prefix,omitempty"`
	Notes             string `json:"notes,omitempty"`
	UserDefined1      string `json:"user_defined1,omitempty"`
	UserDefined2      string `json:"user_defined2,omitempty"`
	UserDefined3      string `json:"user_defined3,omitempty"`
	UserDefined4      string `json:"user_defined4,omitempty"`
	Image             string `json:"image,omitempty"`

	WorkAddress PostalAddress `json:"work_address"`
	HomeAddress PostalAddress `json:"home_address"`

	Categories CategoryList `json:"categories,omitempty"`
	GroupLinks []GroupLink  `json:"group_links,omitempty"`

	firstNameSeen bool
}

var contactLinks = []fieldLink[Contact]{
	{typ: contactEmail, name: "Email", str: func(c *Contact) *string { return &c.Email }},
	{typ: contactPhone, name: "Phone", str: func(c *Contact) *string { return &c.Phone }},
	{typ: contactFax, name: "Fax", str: func(c *Contact) *string { return &c.Fax }},
	{typ: contactWorkPhone, name: "WorkPhone", str: func(c *Contact) *string { return &c.WorkPhone }},
	{typ: contactHomePhone, name: "HomePhone", str: func(c *Contact) *string { return &c.HomePhone }},
	{typ: contactMobilePhone, name: "MobilePhone", str: func(c *Contact) *string { return &c.MobilePhone }},
	{typ: contactPager, name: "Pager", str: func(c *Contact) *string { return &c.Pager }},
	{typ: contactPIN, name: "PIN", str: func(c *Contact) *string { return &c.PIN }},
	{typ: contactRadio, name: "Radio", str: func(c *Contact) *string { return &c.Radio }},
	{typ: contactWorkPhone2, name: "WorkPhone2", str: func(c *Contact) *string { return &c.WorkPhone2 }},
	{typ: contactHomePhone2, name: "HomePhone2", str: func(c *Contact) *string { return &c.HomePhone2 }},
	{typ: contactOtherPhone, name: "OtherPhone", str: func(c *Contact) *string { return &c.OtherPhone }},
	{typ: contactCompany, name: "Company", str: func(c *Contact) *string { return &c.Company }, iconv: true},
	{typ: contactDefaultCommMethod, name: "DefaultCommMethod", str: func(c *Contact) *string { return &c.DefaultCommMethod }},
	{typ: contactAddress1, name: "WorkAddress1", str: func(c *Contact) *string { return &c.WorkAddress.Address1 }, iconv: true},
	{typ: contactAddress2, name: "WorkAddress2", str: func(c *Contact) *string { return &c.WorkAddress.Address2 }, iconv: true},
	{typ: contactAddress3, name: "WorkAddress3", str: func(c *Contact) *string { return &c.WorkAddress.Address3 }, iconv: true},
	{typ: contactCity, name: "WorkCity", str: func(c *Contact) *string { return &c.WorkAddress.City }, iconv: true},
	{typ: contactProvince, name: "WorkProvince", str: func(c *Contact) *string { return &c.WorkAddress.Province }, iconv: true},
	{typ: contactPostalCode, name: "WorkPostalCode", str: func(c *Contact) *string { return &c.WorkAddress.PostalCode }},
	{typ: contactCountry, name: "WorkCountry", str: func(c *Contact) *string { return &c.WorkAddress.Country }, iconv: true},
	{typ: contactTitle, name: "JobTitle", str: func(c *Contact) *string { return &c.JobTitle }, iconv: true},
	{typ: contactPublicKey, name: "PublicKey", str: func(c *Contact) *string { return &c.PublicKey }},
	{typ: contactURL, name: "URL", str: func(c *Contact) *string { return &c.URL }},
	{typ: contactPrefix, name: "Prefix", str: func(c *Contact) *string { return &c.Prefix }, iconv: true},
	{typ: contactHomeAddress1, name: "HomeAddress1", str: func(c *Contact) *string { return &c.HomeAddress.Address1 }, iconv: true},
	{typ: contactHomeAddress2, name: "HomeAddress2", str: func(c *Contact) *string { return &c.HomeAddress.Address2 }, iconv: true},
	{typ: contactHomeAddress3, name: "HomeAddress3", str: func(c *Contact) *string { return &c.HomeAddress.Address3 }, iconv: true},
	{typ: contactNotes, name: "Notes", str: func(c *Contact) *string { return &c.Notes }, iconv: true},
	{typ: contactUserDefined1, name: "UserDefined1", str: func(c *Contact) *string { return &c.UserDefined1 }, iconv: true},
	{typ: contactUserDefined2, name: "UserDefined2", str: func(c *Contact) *string { return &c.UserDefined2 }, iconv: true},
	{typ: contactUserDefined3, name: "UserDefined3", str: func(c *Contact) *string { return &c.UserDefined3 }, iconv: true},
	{typ: contactUserDefined4, name: "UserDefined4", str: func(c *Contact) *string { return &c.UserDefined4 }, iconv: true},
	{typ: contactHomeCity, name: "HomeCity", str: func(c *Contact) *string { return &c.HomeAddress.City }, iconv: true},
	{typ: contactHomeProvince, name: "HomeProvince", str: func(c *Contact) *string { return &c.HomeAddress.Province }, iconv: true},
	{typ: contactHomePostalCode, name: "HomePostalCode", str: func(c *Contact) *string { return &c.HomeAddress.PostalCode }},
	{typ: contactHomeCountry, name: "HomeCountry", str: func(c *Contact) *string { return &c.HomeAddress.Country }, iconv: true},
	{typ: contactImage, name: "Image", str: func(c *Contact) *string { return &c.Image }},
}

func init() {
	register(ContactDBName, func() Record { return NewContact() })
}

// NewContact returns an empty contact.
func NewContact() *Contact {
	c := &Contact{}
	c.Clear()
	return c
}

// DBName implements Record.
func (c *Contact) DBName() string { return ContactDBName }

// Clear implements Record.
func (c *Contact) Clear() {
	*c = Contact{}
	c.reset(0)
}

// ParseFields implements Record.
func (c *Contact) ParseFields(data []byte, off int, conv codec.Converter) (int, error) {
	end, err := codec.Walk(data, off, func(f codec.Field) error {
		c.parseField(f, conv)
		return nil
	})
	c.firstNameSeen = false
	return end, err
}

func (c *Contact) parseField(f codec.Field, conv codec.Converter) {
	if parseLinked(contactLinks, c, f, conv) {
		return
	}

	switch f.Type {
	case contactName:
		// first occurrence is the first name, the next one the last name
		if c.FirstName != "" || c.firstNameSeen {
			c.LastName = codec.DecodeString(conv, f.Data)
			c.firstNameSeen = false
		} else {
			c.FirstName = codec.DecodeString(conv, f.Data)
			c.firstNameSeen = true
		}
		return
	case contactGroupLink:
		if link, ok := parseGroupLink(f.Data); ok {
			c.GroupLinks = append(c.GroupLinks, link)
			return
		}
	case contactGroupFlag:
		// group links stand in for the flag
		return
	case contactCategory:
		c.Categories = ParseCategories(codec.DecodeString(conv, f.Data))
		return
	}

	c.Unknowns.Add(f)
}

// Validate implements Record. A contact needs a name or a company.
func (c *Contact) Validate() error {
	if c.FirstName == "" && c.LastName == "" && c.Company == "" {
		return validationErrorf("contact", "first name, last name or company is required")
	}
	return nil
}

// BuildFields implements Record.
func (c *Contact) BuildFields(buf *buffer.Buffer, off int, conv codec.Converter) (int, error) {
	b := codec.NewBuilder(buf, off).WithConverter(conv)

	if len(c.GroupLinks) > 0 {
		b.Uint8(contactGroupFlag, 'G')
	}

	if c.FirstName != "" {
		b.String(contactName, c.FirstName)
	}
	if c.LastName != "" {
		if c.FirstName == "" {
			// keeps the last name in second position
			b.String(contactName, "")
		}
		b.String(contactName, c.LastName)
	}

	buildLinked(contactLinks, c, b)

	for _, link := range c.GroupLinks {
		b.Raw(contactGroupLink, link.bytes())
	}
	if len(c.Categories) > 0 {
		b.String(contactCategory, c.Categories.String())
	}
	b.Unknowns(c.Unknowns)

	if err := b.Finish(); err != nil {
		return off, err
	}
	return b.Offset(), nil
}

// FullName returns "First Last", or whichever part is set.
func (c *Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Description implements Record.
func (c *Contact) Description() string {
	if name := c.FullName(); name != "" {
		return name
	}
	return c.Company
}

// SplitName splits a full name at its last space: everything before is the
// first name, the last word is the last name.
func SplitName(full string) (first, last string) {
	i := strings.LastIndexByte(full, ' ')
	if i < 0 {
		return full, ""
	}
	return full[:i], full[i+1:]
}

// Less orders contacts by last name, then first name, then company.
func (c *Contact) Less(o *Contact) bool {
	if c.LastName != o.LastName {
		return c.LastName < o.LastName
	}
	if c.FirstName != o.FirstName {
		return c.FirstName < o.FirstName
	}
	return c.Company < o.Company
}
